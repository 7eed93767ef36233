package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/shubhsaxena/chat-search/internal/catalog"
	"github.com/shubhsaxena/chat-search/internal/config"
	"github.com/shubhsaxena/chat-search/internal/lexicon"
	"github.com/shubhsaxena/chat-search/internal/models"
	"github.com/shubhsaxena/chat-search/internal/observability"
)

// ResponseCache stores finished responses keyed by normalized message.
type ResponseCache interface {
	GetResponse(ctx context.Context, message string) (*models.ChatResponse, error)
	SetResponse(ctx context.Context, message string, resp *models.ChatResponse) error
}

type AnalyticsWriter interface {
	WriteChatEvent(ctx context.Context, event *models.ChatEvent) error
}

// Hydrator enriches catalog products with fields kept outside the catalog.
type Hydrator interface {
	HydrateProducts(ctx context.Context, products []models.Product) ([]models.Product, error)
}

// Options carries the optional collaborators. Nil fields are skipped.
type Options struct {
	Cache     ResponseCache
	Analytics AnalyticsWriter
	Hydrator  Hydrator
	SlowQuery *observability.SlowQueryDetector
	// Source names the catalog backend in analytics, e.g. "sqlite".
	Source string
}

type Orchestrator struct {
	lex        *lexicon.Lexicon
	extractor  *Extractor
	classifier *IntentClassifier
	resolver   *Resolver
	composer   *Composer
	opts       Options
	cfg        config.ChatConfig
	timeout    time.Duration
	logger     *zap.Logger

	inflight singleflight.Group
}

func New(
	lex *lexicon.Lexicon,
	cat catalog.Catalog,
	cfg config.ChatConfig,
	searchCfg config.SearchConfig,
	logger *zap.Logger,
	opts Options,
) *Orchestrator {
	limits := Limits{Search: cfg.SearchLimit, Recommendation: cfg.RecommendationLimit}
	return &Orchestrator{
		lex:        lex,
		extractor:  NewExtractor(lex),
		classifier: NewIntentClassifier(lex),
		resolver:   NewResolver(cat, limits, logger),
		composer:   NewComposer(lex),
		opts:       opts,
		cfg:        cfg,
		timeout:    searchCfg.QueryTimeout,
		logger:     logger,
	}
}

// Extract exposes entity extraction for callers that only need the parse.
func (o *Orchestrator) Extract(message string) models.EntitySet {
	return o.extractor.Extract(message)
}

// ProcessMessage answers one chat message. It never fails: resolution
// errors come back as a response of type error.
func (o *Orchestrator) ProcessMessage(ctx context.Context, raw string) *models.ChatResponse {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "orchestrator.process_message",
		attribute.Int("message.length", len(raw)),
	)
	defer span.End()

	msg := strings.ToLower(strings.TrimSpace(raw))

	if o.useCache() {
		cached, err := o.opts.Cache.GetResponse(ctx, msg)
		if err != nil {
			o.logger.Warn("cache lookup error", zap.Error(err))
		}
		if cached != nil {
			cached.CacheHit = true
			cached.TookMs = time.Since(start).Milliseconds()
			o.record(ctx, msg, cached, start)
			return cached
		}
	}

	var resp *models.ChatResponse
	if o.useCache() {
		// Identical messages arriving together share one resolution. It runs
		// detached from any single caller; each caller only waits on its own ctx.
		ch := o.inflight.DoChan(msg, func() (any, error) {
			return o.dispatch(context.WithoutCancel(ctx), msg), nil
		})
		select {
		case r := <-ch:
			shared := *r.Val.(*models.ChatResponse)
			resp = &shared
		case <-ctx.Done():
			o.logger.Warn("caller gave up waiting for shared resolution", zap.Error(ctx.Err()))
			resp = o.composer.Error(o.classifier.Classify(msg))
		}
	} else {
		resp = o.dispatch(ctx, msg)
	}

	resp.TookMs = time.Since(start).Milliseconds()

	if o.useCache() && resp.Type != models.ResponseError {
		if err := o.opts.Cache.SetResponse(ctx, msg, resp); err != nil {
			o.logger.Warn("cache set error", zap.Error(err))
		}
	}

	span.SetAttributes(
		attribute.String("chat.intent", resp.Intent),
		attribute.String("chat.type", string(resp.Type)),
		attribute.Int("chat.products", len(resp.Products)),
	)
	o.record(ctx, msg, resp, start)
	return resp
}

// dispatch routes a normalized message. Any category or price signal sends
// the message to search regardless of phrase-based intent.
func (o *Orchestrator) dispatch(ctx context.Context, msg string) *models.ChatResponse {
	if lexicon.MatchAny(o.lex.Greeting, msg) {
		return o.composer.Greeting()
	}
	if lexicon.MatchAny(o.lex.Help, msg) {
		return o.composer.Help()
	}

	entities := o.extractor.Extract(msg)
	intent := o.classifier.Classify(msg)

	o.logger.Debug("message classified",
		zap.String("intent", intent.String()),
		zap.Strings("categories", entities.Categories),
		zap.Strings("brands", entities.Brands),
		zap.Strings("keywords", entities.Keywords),
	)

	if entities.HasCategories() || entities.HasPriceBounds() {
		return o.search(ctx, entities, intent)
	}
	if lexicon.MatchAny(o.lex.Search, msg) || intent.SearchLike() {
		return o.search(ctx, entities, intent)
	}

	switch intent {
	case models.IntentAvailability:
		return o.composer.Availability()
	case models.IntentFeatures:
		return o.composer.Features()
	}
	return o.composer.Default(msg, entities)
}

func (o *Orchestrator) search(ctx context.Context, entities models.EntitySet, intent models.Intent) *models.ChatResponse {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	res, err := o.resolver.Resolve(ctx, entities, intent)
	if err != nil {
		o.logger.Error("product resolution failed",
			zap.String("intent", intent.String()),
			zap.Error(err),
		)
		observability.FallbackCounter.WithLabelValues("resolver_error").Inc()
		return o.composer.Error(intent)
	}

	if len(res.Products) == 0 {
		return o.composer.NoResults(entities, intent)
	}
	if res.Fallback {
		observability.FallbackCounter.WithLabelValues("popular").Inc()
	}

	if o.opts.Hydrator != nil {
		hydrated, err := o.opts.Hydrator.HydrateProducts(ctx, res.Products)
		if err != nil {
			o.logger.Warn("hydration failed", zap.Error(err))
		} else {
			res.Products = hydrated
		}
	}

	return o.composer.Products(entities, intent, res)
}

func (o *Orchestrator) useCache() bool {
	return o.cfg.CacheResponses && o.opts.Cache != nil
}

func (o *Orchestrator) record(ctx context.Context, msg string, resp *models.ChatResponse, start time.Time) {
	elapsed := time.Since(start)
	intent := resp.Intent
	if intent == "" {
		intent = models.IntentGeneral.String()
	}

	observability.ChatMessagesTotal.WithLabelValues(intent, string(resp.Type)).Inc()
	observability.ChatRequestDuration.WithLabelValues(intent, string(resp.Type)).Observe(elapsed.Seconds())

	if o.opts.SlowQuery != nil {
		o.opts.SlowQuery.Intercept(ctx, observability.SlowSample{
			Message:  msg,
			Intent:   intent,
			Duration: elapsed,
			Products: len(resp.Products),
			Steps:    ladderDepth(resp.LadderStep),
			TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
			Source:   o.opts.Source,
		})
	}

	if o.opts.Analytics == nil {
		return
	}
	event := &models.ChatEvent{
		MessageHash:  MessageHash(msg),
		SessionID:    SessionIDFromContext(ctx),
		Intent:       intent,
		ResponseType: string(resp.Type),
		LadderStep:   resp.LadderStep,
		ProductCount: len(resp.Products),
		Fallback:     resp.Fallback,
		DurationMs:   float64(elapsed.Microseconds()) / 1000,
		Timestamp:    time.Now().UTC(),
	}
	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := o.opts.Analytics.WriteChatEvent(writeCtx, event); err != nil {
			o.logger.Warn("failed to write chat event", zap.Error(err))
		}
	}()
}

type sessionKey struct{}

// WithSessionID tags ctx with the chat session the message belongs to.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// MessageHash is the stable identifier of a normalized message used in
// analytics and cache keys.
func MessageHash(msg string) string {
	h := fnv.New64a()
	h.Write([]byte(msg))
	return fmt.Sprintf("%016x", h.Sum64())
}

func ladderDepth(step string) int {
	for i, name := range []string{StepStrict, StepCategoryPrice, StepCategory, StepKeywordsAll, StepKeywordsAny, StepPopular} {
		if name == step {
			return i + 1
		}
	}
	return 0
}
