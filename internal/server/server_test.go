// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/grounded-copilot/internal/ledger"
	"github.com/pdiddy/grounded-copilot/internal/pipeline"
	"github.com/pdiddy/grounded-copilot/pkg/types"
)

type fakeAsker struct {
	state    types.PipelineState
	err      error
	question string
	k        int
}

func (f *fakeAsker) Run(_ context.Context, question string, k int) (types.PipelineState, error) {
	f.question, f.k = question, k
	return f.state, f.err
}

type fakeRuns struct {
	runs  map[string]*ledger.Run
	limit int
}

func (f *fakeRuns) List(_ context.Context, limit int) ([]ledger.Summary, error) {
	f.limit = limit
	var out []ledger.Summary
	for id, r := range f.runs {
		out = append(out, ledger.Summary{RunID: id, Question: r.State.Question, Outcome: r.Outcome})
	}
	return out, nil
}

func (f *fakeRuns) Get(_ context.Context, id string) (*ledger.Run, error) {
	if r, ok := f.runs[id]; ok {
		return r, nil
	}
	return nil, ledger.ErrNotFound
}

func newTestServer(t *testing.T, asker Asker, runs RunStore) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(New(asker, runs, types.ServerConfig{AllowedOrigins: []string{"http://localhost:3000"}}, nil))
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/v1/ask", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &fakeAsker{}, nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestAsk(t *testing.T) {
	asker := &fakeAsker{state: types.PipelineState{
		RunID:       "run-1",
		Question:    "What is alert fatigue?",
		K:           5,
		Verified:    true,
		Attempts:    1,
		FinalAnswer: "Alerts need context [B.pdf p.0 chunk_2].",
		Trace:       []string{"start", "planning", "researching", "drafting", "verifying", "delivered"},
	}}
	ts := newTestServer(t, asker, nil)

	resp, body := post(t, ts, `{"question": "  What is alert fatigue?  ", "k": 5}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "What is alert fatigue?", asker.question)
	assert.Equal(t, 5, asker.k)
	assert.Equal(t, "run-1", body["run_id"])
	assert.Equal(t, "verified", body["outcome"])
	assert.Equal(t, true, body["verified"])
	assert.Equal(t, "Alerts need context [B.pdf p.0 chunk_2].", body["final_answer"])
}

func TestAskBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"question":`, "invalid request body"},
		{"unknown field", `{"question": "Q", "top_k": 3}`, "invalid request body"},
		{"missing question", `{"k": 3}`, "question is required"},
		{"blank question", `{"question": "   "}`, "question is required"},
		{"negative k", `{"question": "Q", "k": -1}`, "k must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asker := &fakeAsker{}
			ts := newTestServer(t, asker, nil)

			resp, body := post(t, ts, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.want, body["error"])
			assert.Empty(t, asker.question, "pipeline must not run")
		})
	}
}

func TestAskAdapterFault(t *testing.T) {
	asker := &fakeAsker{
		state: types.PipelineState{RunID: "run-2", Question: "Q", K: 5, Trace: []string{"start", "planning"}},
		err:   fmt.Errorf("%w: researching: connection refused", pipeline.ErrAdapterFault),
	}
	ts := newTestServer(t, asker, nil)

	resp, body := post(t, ts, `{"question": "Q"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body["error"], "adapter fault")
	state, ok := body["state"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "run-2", state["run_id"])
}

func TestAskInternalError(t *testing.T) {
	ts := newTestServer(t, &fakeAsker{err: errors.New("boom")}, nil)

	resp, _ := post(t, ts, `{"question": "Q"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestRuns(t *testing.T) {
	runs := &fakeRuns{runs: map[string]*ledger.Run{
		"run-1": {State: types.PipelineState{RunID: "run-1", Question: "Q1"}, Outcome: types.OutcomeFallback},
	}}
	ts := newTestServer(t, &fakeAsker{}, runs)

	resp, err := http.Get(ts.URL + "/v1/runs/run-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var run ledger.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.Equal(t, "Q1", run.State.Question)
	assert.Equal(t, types.OutcomeFallback, run.Outcome)

	resp, err = http.Get(ts.URL + "/v1/runs/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/v1/runs?limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, runs.limit)
	var list struct {
		Runs []ledger.Summary `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, "run-1", list.Runs[0].RunID)

	resp, err = http.Get(ts.URL + "/v1/runs?limit=zero")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunsDisabled(t *testing.T) {
	ts := newTestServer(t, &fakeAsker{}, nil)

	for _, path := range []string{"/v1/runs", "/v1/runs/run-1"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, &fakeAsker{}, nil)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/v1/ask", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &fakeAsker{}, nil)

	resp, err := http.Get(ts.URL + "/v1/ask")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
