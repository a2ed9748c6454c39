// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package draft

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/grounded-copilot/pkg/types"
)

// Failure categorizes why a draft was not grounded.
type Failure string

const (
	FailureNone            Failure = ""
	FailureEmptyDraft      Failure = "empty_draft"
	FailureNoEvidence      Failure = "no_evidence"
	FailurePlaceholder     Failure = "placeholder_citation"
	FailureNoCitations     Failure = "no_citations"
	FailureUnknownCitation Failure = "unknown_citation"
	FailureMissingSummary  Failure = "missing_summary"
	FailureSummaryTooLong  Failure = "summary_too_long"
)

// Policy selects the optional checks layered on top of citation matching.
type Policy struct {
	RejectPlaceholder bool
	PlaceholderMarker string

	RequireSummary  bool
	SummaryHeading  string
	MaxSummaryWords int
}

// PolicyFromConfig converts the verification settings into a Policy.
func PolicyFromConfig(cfg types.VerificationConfig) Policy {
	return Policy{
		RejectPlaceholder: cfg.RejectPlaceholder,
		PlaceholderMarker: cfg.PlaceholderMarker,
		RequireSummary:    cfg.RequireSummary,
		SummaryHeading:    cfg.SummaryHeading,
		MaxSummaryWords:   cfg.MaxSummaryWords,
	}
}

// Verdict is the outcome of verifying one draft.
type Verdict struct {
	Grounded bool
	Failure  Failure
	Detail   string

	// Citations lists the trimmed tags found in the draft.
	Citations []string
}

// sectionEnd matches the start of the next numbered item or heading.
var sectionEnd = regexp.MustCompile(`\n[ \t]*(#{1,6}[ \t]|\d+\.)`)

// Verifier checks drafts against the evidence used to write them. It
// holds no state between calls and is safe for concurrent use.
type Verifier struct {
	policy  Policy
	marker  *regexp.Regexp
	heading *regexp.Regexp
}

// NewVerifier creates a verifier for the given policy. Empty marker and
// heading fall back to "[source" and "Executive Summary".
func NewVerifier(p Policy) *Verifier {
	if p.PlaceholderMarker == "" {
		p.PlaceholderMarker = "[source"
	}
	if p.SummaryHeading == "" {
		p.SummaryHeading = "Executive Summary"
	}
	return &Verifier{
		policy:  p,
		marker:  regexp.MustCompile(`(?i)` + regexp.QuoteMeta(p.PlaceholderMarker)),
		heading: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(p.SummaryHeading)),
	}
}

// Verify reports whether every citation in text matches a rendered tag
// of records. The same inputs always give the same verdict.
func (v *Verifier) Verify(text string, records []types.EvidenceRecord) Verdict {
	if len(records) == 0 {
		return fail(FailureNoEvidence, "no evidence was retrieved")
	}
	if strings.TrimSpace(text) == "" {
		return fail(FailureEmptyDraft, "draft is empty")
	}

	valid := ValidTags(records)

	if v.policy.RejectPlaceholder && v.hasPlaceholder(text, valid) {
		return fail(FailurePlaceholder, fmt.Sprintf("draft contains placeholder marker %q", v.policy.PlaceholderMarker))
	}

	raw := ScanCitations(text)
	if len(raw) == 0 {
		return fail(FailureNoCitations, "draft contains no citation tags")
	}

	citations := make([]string, len(raw))
	for i, r := range raw {
		tag := strings.TrimSpace(r)
		citations[i] = tag
		if !valid[tag] {
			verdict := fail(FailureUnknownCitation, fmt.Sprintf("citation [%s] does not match any retrieved evidence", tag))
			verdict.Citations = citations[:i+1]
			return verdict
		}
	}

	if v.policy.RequireSummary {
		summary, ok := v.summary(text)
		if !ok {
			verdict := fail(FailureMissingSummary, fmt.Sprintf("no %q section found", v.policy.SummaryHeading))
			verdict.Citations = citations
			return verdict
		}
		if n := len(strings.Fields(summary)); n > v.policy.MaxSummaryWords {
			verdict := fail(FailureSummaryTooLong, fmt.Sprintf("%s has %d words, limit is %d", v.policy.SummaryHeading, n, v.policy.MaxSummaryWords))
			verdict.Citations = citations
			return verdict
		}
	}

	return Verdict{Grounded: true, Citations: citations}
}

// hasPlaceholder reports whether text contains the placeholder marker
// anywhere other than at the start of a valid tag, so a real source such
// as "Sourcebook.pdf" is not mistaken for a placeholder.
func (v *Verifier) hasPlaceholder(text string, valid map[string]bool) bool {
	for _, loc := range v.marker.FindAllStringIndex(text, -1) {
		if !startsValidTag(text, loc[0], valid) {
			return true
		}
	}
	return false
}

// startsValidTag reports whether a tag opens at text[pos] and its trimmed
// content is a valid tag.
func startsValidTag(text string, pos int, valid map[string]bool) bool {
	if text[pos] != '[' {
		return false
	}
	end := strings.IndexByte(text[pos+1:], ']')
	if end < 0 {
		return false
	}
	return valid[strings.TrimSpace(text[pos+1:pos+1+end])]
}

// summary returns the body of the summary section: the text after the
// heading up to the next numbered item or markdown heading.
func (v *Verifier) summary(text string) (string, bool) {
	loc := v.heading.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	body := text[loc[1]:]

	// Drop a parenthetical on the heading line, e.g. "(≤150 words)".
	if trimmed := strings.TrimLeft(body, " \t"); strings.HasPrefix(trimmed, "(") {
		if end := strings.IndexByte(trimmed, ')'); end >= 0 && !strings.Contains(trimmed[:end], "\n") {
			body = trimmed[end+1:]
		}
	}
	body = strings.TrimLeft(body, "*:_ \t")

	if m := sectionEnd.FindStringIndex(body); m != nil {
		body = body[:m[0]]
	}
	body = strings.TrimSpace(body)
	return body, body != ""
}

func fail(f Failure, detail string) Verdict {
	return Verdict{Failure: f, Detail: detail}
}
