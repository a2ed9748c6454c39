// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/grounded-copilot/internal/httputil"
	"github.com/pdiddy/grounded-copilot/pkg/types"
)

// RemoteSearcher queries a vector search service over HTTP. The service
// receives {"query": ..., "k": ...} and answers with
// {"results": [{"text", "source", "page", "chunk_id", "score"}, ...]},
// ranked best first with distance scores.
type RemoteSearcher struct {
	Client    *http.Client
	URL       string
	UserAgent string
	Token     string

	// MaxRetries bounds retries on 429 and gateway errors. Zero uses the
	// httputil default.
	MaxRetries int
}

// NewRemoteSearcher creates a searcher from the evidence settings.
func NewRemoteSearcher(cfg types.EvidenceConfig) *RemoteSearcher {
	return &RemoteSearcher{
		Client:    &http.Client{Timeout: cfg.Timeout},
		URL:       cfg.URL,
		UserAgent: cfg.UserAgent,
		Token:     cfg.APIToken,
	}
}

type remoteRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type remoteResponse struct {
	Results []types.EvidenceRecord `json:"results"`
}

// Search posts the query and returns at most width records. Records
// with a negative page or score, or without a source or chunk id, are
// rejected as a malformed response.
func (r *RemoteSearcher) Search(ctx context.Context, query string, width int) ([]types.EvidenceRecord, error) {
	body, err := json.Marshal(remoteRequest{Query: query, K: width})
	if err != nil {
		return nil, eris.Wrap(err, "remote search: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "remote search: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, r.MaxRetries)
	if err != nil {
		return nil, eris.Wrap(err, "remote search: request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("remote search: HTTP %d", resp.StatusCode)
	}

	var rr remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, eris.Wrap(err, "remote search: parse response")
	}

	for i, rec := range rr.Results {
		if err := validateRecord(rec); err != nil {
			return nil, eris.Wrapf(err, "remote search: result %d", i)
		}
	}

	if width > 0 && len(rr.Results) > width {
		rr.Results = rr.Results[:width]
	}
	return rr.Results, nil
}

func validateRecord(r types.EvidenceRecord) error {
	switch {
	case r.Source == "":
		return fmt.Errorf("missing source")
	case r.ChunkID == "":
		return fmt.Errorf("missing chunk_id")
	case r.Page < 0:
		return fmt.Errorf("negative page %d", r.Page)
	case r.Score < 0:
		return fmt.Errorf("negative score %g", r.Score)
	}
	return nil
}
