// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the pipeline and the run ledger over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/pdiddy/grounded-copilot/internal/ledger"
	"github.com/pdiddy/grounded-copilot/internal/pipeline"
	"github.com/pdiddy/grounded-copilot/pkg/types"
)

// maxBodyBytes bounds the /v1/ask request body.
const maxBodyBytes = 64 << 10

// Asker runs one question. *pipeline.Orchestrator satisfies it.
type Asker interface {
	Run(ctx context.Context, question string, k int) (types.PipelineState, error)
}

// RunStore reads recorded runs. *ledger.Ledger satisfies it.
type RunStore interface {
	List(ctx context.Context, limit int) ([]ledger.Summary, error)
	Get(ctx context.Context, runID string) (*ledger.Run, error)
}

type askRequest struct {
	Question string `json:"question"`
	K        int    `json:"k"`
}

// AskResponse is the body of a completed /v1/ask call.
type AskResponse struct {
	types.PipelineState
	Outcome types.Outcome `json:"outcome"`
}

type errorResponse struct {
	Error string               `json:"error"`
	State *types.PipelineState `json:"state,omitempty"`
}

type handler struct {
	asker Asker
	runs  RunStore
	log   *zap.Logger
}

// New builds the router. runs may be nil when the ledger is disabled;
// the /v1/runs routes then answer 404.
func New(asker Asker, runs RunStore, cfg types.ServerConfig, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.L()
	}
	h := &handler{asker: asker, runs: runs, log: logger.Named("server")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/ask", h.ask)
		r.Get("/runs", h.listRuns)
		r.Get("/runs/{id}", h.getRun)
	})
	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required", nil)
		return
	}
	if req.K < 0 {
		writeError(w, http.StatusBadRequest, "k must not be negative", nil)
		return
	}

	state, err := h.asker.Run(r.Context(), req.Question, req.K)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, AskResponse{PipelineState: state, Outcome: state.Outcome()})
	case errors.Is(err, pipeline.ErrAdapterFault):
		h.log.Error("ask failed", zap.String("run_id", state.RunID), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error(), &state)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled", &state)
	default:
		h.log.Error("ask failed", zap.String("run_id", state.RunID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error(), &state)
	}
}

func (h *handler) listRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusNotFound, "run ledger is disabled", nil)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", nil)
			return
		}
		limit = n
	}
	runs, err := h.runs.List(r.Context(), limit)
	if err != nil {
		h.log.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list runs", nil)
		return
	}
	if runs == nil {
		runs = []ledger.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *handler) getRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusNotFound, "run ledger is disabled", nil)
		return
	}
	id := chi.URLParam(r, "id")
	run, err := h.runs.Get(r.Context(), id)
	if errors.Is(err, ledger.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found", nil)
		return
	}
	if err != nil {
		h.log.Error("get run failed", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load run", nil)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, state *types.PipelineState) {
	writeJSON(w, status, errorResponse{Error: msg, State: state})
}
