package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/opensource-commerce/kite/internal/domain"
	"github.com/opensource-commerce/kite/internal/pipeline"
	"github.com/opensource-commerce/kite/internal/repository"
	"github.com/opensource-commerce/kite/internal/rules"
)

// Cache keys for the latest-artifact endpoints. Both are invalidated after
// every run so readers never see a stale snapshot past one TTL.
const (
	summaryCacheKey = "latest:summary"
	queueCacheKey   = "latest:queue"
)

// RunFunc triggers one pipeline run with the active policy. The server does
// not own the runner; main wires it in so serve mode and one-shot mode share
// the same pipeline.
type RunFunc func(ctx context.Context, cfg *domain.RulesConfig, risk *rules.RiskEngine) (*pipeline.Result, error)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	run       RunFunc
	holder    *rules.Holder
	rulesPath string
	version   string
	mode      domain.AdapterMode
	cacheTTL  time.Duration
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, run RunFunc, holder *rules.Holder, rulesPath, version string, mode domain.AdapterMode, cacheTTL time.Duration) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		run:       run,
		holder:    holder,
		rulesPath: rulesPath,
		version:   version,
		mode:      mode,
		cacheTTL:  cacheTTL,
	}
}

// RunResponse is the response for POST /runs.
type RunResponse struct {
	RunID    string             `json:"runId"`
	Summary  *domain.RunSummary `json:"summary"`
	Metadata struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// TriggerRun handles POST /runs: executes one pipeline pass with the active
// policy and returns the run summary.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	cfg, risk := h.holder.Get()

	result, err := h.run(ctx, cfg, risk)
	if err != nil {
		slog.Error("pipeline run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "pipeline run failed: " + err.Error(),
		})
		return
	}

	// Drop cached latest artifacts; the next read repopulates from the
	// repository.
	h.invalidateLatest(ctx)

	resp := RunResponse{
		RunID:   result.RunID,
		Summary: result.Summary,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// LatestRun handles GET /runs/latest: the most recent run summary, served
// from cache when warm.
func (h *Handler) LatestRun(w http.ResponseWriter, r *http.Request) {
	h.latest(w, r, summaryCacheKey, func(ctx context.Context) (any, error) {
		return h.repo.LatestRunSummary(ctx)
	})
}

// LatestQueue handles GET /approval-queue/latest.
func (h *Handler) LatestQueue(w http.ResponseWriter, r *http.Request) {
	h.latest(w, r, queueCacheKey, func(ctx context.Context) (any, error) {
		return h.repo.LatestApprovalQueue(ctx)
	})
}

func (h *Handler) latest(w http.ResponseWriter, r *http.Request, key string, load func(ctx context.Context) (any, error)) {
	ctx := r.Context()

	if h.cache != nil {
		if data, err := h.cache.Get(ctx, key); err == nil && data != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(data)
			return
		}
	}

	value, err := load(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no runs recorded yet",
		})
		return
	}
	if err != nil {
		slog.Error("failed to load latest artifact", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load latest artifact",
		})
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode artifact",
		})
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, key, data, h.cacheTTL); err != nil {
			slog.Warn("failed to cache latest artifact", "key", key, "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) invalidateLatest(ctx context.Context) {
	if h.cache == nil {
		return
	}
	for _, key := range []string{summaryCacheKey, queueCacheKey} {
		if err := h.cache.Delete(ctx, key); err != nil {
			slog.Warn("failed to invalidate cache", "key", key, "error", err)
		}
	}
}

// ListDecisions handles GET /decisions: the triage audit trail, newest first.
func (h *Handler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	records, err := h.repo.ListDecisions(ctx, limit)
	if err != nil {
		slog.Error("failed to list decisions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list decisions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"decisions": records,
		"count":     len(records),
	})
}

// GetRules handles GET /rules: the active policy document.
func (h *Handler) GetRules(w http.ResponseWriter, r *http.Request) {
	cfg, risk := h.holder.Get()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules":           cfg,
		"customRiskRules": risk.RuleCount(),
		"source":          h.rulesPath,
	})
}

// ReloadRules handles POST /rules/reload: re-reads the policy document from
// disk, recompiles the custom risk rules and swaps both in atomically. The
// active policy is untouched when validation fails.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	cfg, err := rules.Load(h.rulesPath)
	if err != nil {
		slog.Error("policy reload failed", "path", h.rulesPath, "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "policy reload failed: " + err.Error(),
		})
		return
	}

	risk, err := rules.NewRiskEngine(cfg.CustomRiskRules)
	if err != nil {
		slog.Error("risk rule compilation failed", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "risk rule compilation failed: " + err.Error(),
		})
		return
	}

	h.holder.Set(cfg, risk)

	slog.Info("policy reloaded", "path", h.rulesPath, "custom_risk_rules", risk.RuleCount())
	writeJSON(w, http.StatusOK, map[string]any{
		"message":         "rules reloaded successfully",
		"customRiskRules": risk.RuleCount(),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
		"mode":    string(h.mode),
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
