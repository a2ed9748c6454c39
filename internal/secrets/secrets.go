// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Recognized key files: anthropic-api-key, evidence-api-token.
package secrets

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/grounded-copilot/pkg/types"
)

// DefaultDir is where the CLI looks for secret files.
const DefaultDir = ".secrets"

const (
	AnthropicAPIKey  = "anthropic-api-key"
	EvidenceAPIToken = "evidence-api-token"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, eris.Wrapf(err, "reading secrets directory %s", dir)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			zap.L().Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Apply fills credentials in cfg that the config file and environment
// left empty. It returns the names of the secrets it used, sorted.
func Apply(cfg *types.Config, secrets map[string]string) []string {
	var used []string
	if cfg.Generation.APIKey == "" {
		if v, ok := secrets[AnthropicAPIKey]; ok {
			cfg.Generation.APIKey = v
			used = append(used, AnthropicAPIKey)
		}
	}
	if cfg.Evidence.APIToken == "" {
		if v, ok := secrets[EvidenceAPIToken]; ok {
			cfg.Evidence.APIToken = v
			used = append(used, EvidenceAPIToken)
		}
	}
	sort.Strings(used)
	return used
}
