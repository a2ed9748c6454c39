// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package security screens questions for instruction-override attempts
// before any retrieval or generation work is done.
package security

import (
	"strings"

	"golang.org/x/text/cases"
)

// Gate matches questions against a fixed list of prohibited phrases.
// It is safe for concurrent use.
type Gate struct {
	patterns []string // case-folded
	raw      []string
}

// NewGate creates a gate for the given phrases. Blank phrases are ignored.
func NewGate(patterns []string) *Gate {
	g := &Gate{}
	fold := cases.Fold()
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g.patterns = append(g.patterns, fold.String(p))
		g.raw = append(g.raw, p)
	}
	return g
}

// Check reports whether the question contains any prohibited phrase.
func (g *Gate) Check(question string) bool {
	_, ok := g.Match(question)
	return ok
}

// Match returns the first prohibited phrase found in the question, in
// configuration order. Matching is a case-insensitive substring test.
func (g *Gate) Match(question string) (string, bool) {
	if question == "" {
		return "", false
	}
	// cases.Caser is stateful, so each call folds with its own.
	folded := cases.Fold().String(question)
	for i, p := range g.patterns {
		if strings.Contains(folded, p) {
			return g.raw[i], true
		}
	}
	return "", false
}
