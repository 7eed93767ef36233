package api

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shubhsaxena/chat-search/internal/catalog"
	"github.com/shubhsaxena/chat-search/internal/clickhouse"
	"github.com/shubhsaxena/chat-search/internal/config"
	"github.com/shubhsaxena/chat-search/internal/models"
	"github.com/shubhsaxena/chat-search/internal/observability"
	"github.com/shubhsaxena/chat-search/internal/orchestrator"
)

const (
	maxRequestBodySize = 1 << 20 // 1 MB
	defaultPerPage     = 20
	maxPerPage         = 100
)

// Version is reported by the index endpoint.
const Version = "1.0.0"

// HistoryStore keeps the per-session chat transcript.
type HistoryStore interface {
	AppendHistory(ctx context.Context, sessionID string, entry models.HistoryEntry) error
	GetHistory(ctx context.Context, sessionID string, limit int) ([]models.HistoryEntry, error)
	ResetHistory(ctx context.Context, sessionID string) error
}

type LadderReporter interface {
	LadderStats(ctx context.Context, since time.Time) ([]clickhouse.LadderStat, error)
}

// HandlerOptions carries the collaborators behind the non-chat routes.
// Ladder may be nil when analytics are disabled.
type HandlerOptions struct {
	Products catalog.Browser
	History  HistoryStore
	Ladder   LadderReporter
	Service  string
}

type Handler struct {
	orchestrator *orchestrator.Orchestrator
	products     catalog.Browser
	history      HistoryStore
	ladder       LadderReporter
	service      string
	cfg          config.ChatConfig
	logger       *zap.Logger
}

func NewHandler(orch *orchestrator.Orchestrator, cfg config.ChatConfig, opts HandlerOptions, logger *zap.Logger) *Handler {
	return &Handler{
		orchestrator: orch,
		products:     opts.Products,
		history:      opts.History,
		ladder:       opts.Ladder,
		service:      opts.Service,
		cfg:          cfg,
		logger:       logger,
	}
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"service": h.service,
		"version": Version,
		"endpoints": map[string]string{
			"chat":     "/api/v1/chat/message",
			"history":  "/api/v1/chat/history/{session_id}",
			"reset":    "/api/v1/chat/reset/{session_id}",
			"products": "/api/v1/products",
			"search":   "/api/v1/products/search",
			"health":   "/readyz",
		},
	})
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := RequestIDFromContext(ctx)

	req, code, err := h.parseChatRequest(r)
	if err != nil {
		observability.RejectedRequestsTotal.WithLabelValues(code).Inc()
		h.writeError(w, http.StatusBadRequest, code, err.Error())
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	resp := h.orchestrator.ProcessMessage(orchestrator.WithSessionID(ctx, sessionID), req.Message)
	resp.SessionID = sessionID
	resp.MessageID = uuid.NewString()

	if h.history != nil {
		entry := models.HistoryEntry{
			MessageID: resp.MessageID,
			SessionID: sessionID,
			Message:   strings.TrimSpace(req.Message),
			Response:  resp.Response,
			Type:      resp.Type,
			Timestamp: time.Now().UTC(),
		}
		if err := h.history.AppendHistory(ctx, sessionID, entry); err != nil {
			h.logger.Warn("appending chat history failed",
				zap.String("request_id", requestID),
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type requestError string

func (e requestError) Error() string { return string(e) }

// parseChatRequest decodes and validates the chat body. The returned code is
// the machine readable error code when err is non-nil.
func (h *Handler) parseChatRequest(r *http.Request) (*models.ChatRequest, string, error) {
	var req models.ChatRequest
	limited := io.LimitReader(r.Body, maxRequestBodySize)
	if err := json.NewDecoder(limited).Decode(&req); err != nil {
		return nil, "invalid_request", requestError("Request body must be a JSON object with a message")
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, "missing_message", requestError("Message is required")
	}
	if h.cfg.MaxMessageLength > 0 && utf8.RuneCountInString(req.Message) > h.cfg.MaxMessageLength {
		return nil, "message_too_long", requestError("Message exceeds " + strconv.Itoa(h.cfg.MaxMessageLength) + " characters")
	}
	return &req, "", nil
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	limit := h.cfg.HistoryLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && (limit <= 0 || v < limit) {
		limit = v
	}

	entries, err := h.history.GetHistory(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("reading chat history failed", zap.String("session_id", sessionID), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "history_error", "Chat history temporarily unavailable")
		return
	}
	if len(entries) == 0 {
		h.writeError(w, http.StatusNotFound, "session_not_found", "Session not found")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"messages":   entries,
		"count":      len(entries),
	})
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	if err := h.history.ResetHistory(r.Context(), sessionID); err != nil {
		h.logger.Error("resetting chat history failed", zap.String("session_id", sessionID), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "history_error", "Chat history temporarily unavailable")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"message":    "Chat session reset successfully",
		"session_id": sessionID,
	})
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r)
	category := strings.TrimSpace(r.URL.Query().Get("category"))

	products, total, err := h.products.List(r.Context(), category, page, perPage)
	if err != nil {
		h.logger.Error("listing products failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "catalog_error", "Catalog temporarily unavailable")
		return
	}

	h.writeJSON(w, http.StatusOK, pageBody(products, total, page, perPage))
}

func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := strings.TrimSpace(q.Get("q"))
	if text == "" {
		h.writeError(w, http.StatusBadRequest, "missing_query", "Query parameter 'q' is required")
		return
	}

	search := catalog.ProductSearch{
		Text:     text,
		Category: strings.TrimSpace(q.Get("category")),
		Brand:    strings.TrimSpace(q.Get("brand")),
	}
	var err error
	if search.PriceMin, err = priceParam(q.Get("min_price")); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_price", "min_price must be a number")
		return
	}
	if search.PriceMax, err = priceParam(q.Get("max_price")); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_price", "max_price must be a number")
		return
	}
	search.Page, search.PerPage = pageParams(r)

	products, total, err := h.products.Search(r.Context(), search)
	if err != nil {
		h.logger.Error("searching products failed", zap.String("query", text), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "catalog_error", "Catalog temporarily unavailable")
		return
	}

	body := pageBody(products, total, search.Page, search.PerPage)
	body["query"] = text
	h.writeJSON(w, http.StatusOK, body)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "Product id must be a positive integer")
		return
	}

	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		if catalog.IsNotFound(err) {
			h.writeError(w, http.StatusNotFound, "not_found", "Product not found")
			return
		}
		h.logger.Error("getting product failed", zap.Int64("id", id), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "catalog_error", "Catalog temporarily unavailable")
		return
	}

	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.products.Categories(r.Context())
	if err != nil {
		h.logger.Error("listing categories failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "catalog_error", "Catalog temporarily unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"categories": nonNil(categories)})
}

func (h *Handler) Brands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.products.Brands(r.Context())
	if err != nil {
		h.logger.Error("listing brands failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "catalog_error", "Catalog temporarily unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"brands": nonNil(brands)})
}

// LadderStats reports which relaxation steps answered searches over the
// trailing window (?hours=, default 24).
func (h *Handler) LadderStats(w http.ResponseWriter, r *http.Request) {
	if h.ladder == nil {
		h.writeError(w, http.StatusServiceUnavailable, "analytics_disabled", "Analytics are not enabled")
		return
	}

	hours := 24
	if v, err := strconv.Atoi(r.URL.Query().Get("hours")); err == nil && v > 0 {
		hours = v
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	stats, err := h.ladder.LadderStats(r.Context(), since)
	if err != nil {
		h.logger.Error("ladder stats failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "analytics_error", "Analytics temporarily unavailable")
		return
	}
	if stats == nil {
		stats = []clickhouse.LadderStat{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"since": since.UTC().Format(time.RFC3339),
		"steps": stats,
	})
}

func pageParams(r *http.Request) (int, int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(r.URL.Query().Get("per_page"))
	if err != nil || perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func priceParam(v string) (*float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, requestError("invalid price " + v)
	}
	return &f, nil
}

func pageBody(products []models.Product, total, page, perPage int) map[string]any {
	if products == nil {
		products = []models.Product{}
	}
	return map[string]any{
		"products":     products,
		"total":        total,
		"pages":        (total + perPage - 1) / perPage,
		"current_page": page,
		"per_page":     perPage,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("writing json response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}
