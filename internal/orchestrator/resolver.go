package orchestrator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/chat-search/internal/catalog"
	"github.com/shubhsaxena/chat-search/internal/models"
	"github.com/shubhsaxena/chat-search/internal/observability"
)

// Limits caps the number of products returned per intent.
type Limits struct {
	Search         int
	Recommendation int
}

func (l Limits) For(intent models.Intent) int {
	if intent == models.IntentRecommendation {
		return l.Recommendation
	}
	return l.Search
}

// Attempt records one executed ladder step.
type Attempt struct {
	Step  string `json:"step"`
	Count int    `json:"count"`
}

type Resolution struct {
	Products []models.Product
	// Step is the ladder step that produced Products, empty when none did.
	Step     string
	Fallback bool
	Attempts []Attempt
}

// Resolver walks the relaxation ladder against a Catalog and stops at the
// first step that returns anything.
type Resolver struct {
	catalog catalog.Catalog
	builder *QueryBuilder
	limits  Limits
	logger  *zap.Logger
}

func NewResolver(cat catalog.Catalog, limits Limits, logger *zap.Logger) *Resolver {
	return &Resolver{
		catalog: cat,
		builder: NewQueryBuilder(),
		limits:  limits,
		logger:  logger,
	}
}

func (r *Resolver) Resolve(ctx context.Context, e models.EntitySet, intent models.Intent) (*Resolution, error) {
	ctx, span := observability.StartSpan(ctx, "resolver.resolve",
		attribute.String("intent", intent.String()),
	)
	defer span.End()

	res := &Resolution{Products: []models.Product{}}
	for _, step := range r.builder.Ladder(e, r.limits.For(intent)) {
		products, err := r.catalog.Query(ctx, step.Query)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("ladder step %s: %w", step.Name, err)
		}

		res.Attempts = append(res.Attempts, Attempt{Step: step.Name, Count: len(products)})
		r.logger.Debug("ladder step",
			zap.String("step", step.Name),
			zap.Int("results", len(products)),
		)

		if len(products) > 0 {
			res.Products = products
			res.Step = step.Name
			// popular only counts as a fallback when a filtered step ran first
			res.Fallback = step.Name == StepPopular && len(res.Attempts) > 1
			break
		}
	}

	label := res.Step
	if label == "" {
		label = "none"
	}
	observability.LadderStepTotal.WithLabelValues(label).Inc()
	span.SetAttributes(
		attribute.String("ladder.step", label),
		attribute.Int("ladder.attempts", len(res.Attempts)),
	)
	return res, nil
}
