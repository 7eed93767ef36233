package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ESHealthChecker reports the cluster color along with the error.
type ESHealthChecker interface {
	HealthCheck(ctx context.Context) (string, error)
}

// HealthHandler serves liveness and readiness. Components registered as
// optional report their state but never fail readiness.
type HealthHandler struct {
	checks   map[string]HealthChecker
	optional map[string]bool
	esCheck  ESHealthChecker
	logger   *zap.Logger
}

func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		checks:   make(map[string]HealthChecker),
		optional: make(map[string]bool),
		logger:   logger,
	}
}

func (h *HealthHandler) Register(name string, checker HealthChecker) {
	h.checks[name] = checker
}

// RegisterOptional adds a component whose failure degrades the service
// without taking it out of rotation, e.g. the analytics sink.
func (h *HealthHandler) RegisterOptional(name string, checker HealthChecker) {
	h.checks[name] = checker
	h.optional[name] = true
}

func (h *HealthHandler) RegisterES(checker ESHealthChecker) {
	h.esCheck = checker
}

type componentHealth struct {
	Status   string `json:"status"`
	Latency  string `json:"latency,omitempty"`
	Error    string `json:"error,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	results := make(map[string]componentHealth)
	var mu sync.Mutex
	// checks never return an error to the group; each records its own result
	var g errgroup.Group

	for name, checker := range h.checks {
		g.Go(func() error {
			start := time.Now()
			err := checker.HealthCheck(ctx)
			ch := componentHealth{
				Status:   "healthy",
				Latency:  time.Since(start).String(),
				Optional: h.optional[name],
			}
			if err != nil {
				ch.Status = "unhealthy"
				ch.Error = err.Error()
			}
			mu.Lock()
			results[name] = ch
			mu.Unlock()
			return nil
		})
	}

	if h.esCheck != nil {
		g.Go(func() error {
			start := time.Now()
			status, err := h.esCheck.HealthCheck(ctx)
			ch := componentHealth{
				Status:  status,
				Latency: time.Since(start).String(),
			}
			if err != nil {
				ch.Error = err.Error()
				if ch.Status == "" {
					ch.Status = "unhealthy"
				}
			}
			mu.Lock()
			results["elasticsearch"] = ch
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	var degraded, unavailable bool
	for name, ch := range results {
		if ch.Status != "unhealthy" && ch.Status != "red" {
			continue
		}
		if ch.Optional {
			degraded = true
			continue
		}
		h.logger.Warn("readiness check failed", zap.String("component", name), zap.String("error", ch.Error))
		unavailable = true
	}

	overallStatus := http.StatusOK
	overall := "healthy"
	switch {
	case unavailable:
		overallStatus = http.StatusServiceUnavailable
		overall = "unavailable"
	case degraded:
		overall = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(overallStatus)
	json.NewEncoder(w).Encode(map[string]any{
		"status":     overall,
		"components": results,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}
