package orchestrator

import (
	"github.com/shubhsaxena/chat-search/internal/catalog"
	"github.com/shubhsaxena/chat-search/internal/models"
)

// Ladder step names, in evaluation order.
const (
	StepStrict        = "strict"
	StepCategoryPrice = "category_price"
	StepCategory      = "category"
	StepKeywordsAll   = "keywords_all"
	StepKeywordsAny   = "keywords_any"
	StepPopular       = "popular"
)

// LadderStep is one catalog query of the relaxation ladder.
type LadderStep struct {
	Name  string
	Query catalog.Query
}

type QueryBuilder struct{}

func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

// Ladder returns the relaxation steps for entities, most specific first,
// always ending with the unfiltered popularity step. A filtered step is
// omitted when its preconditions fail, when it carries no filter at all,
// or when it repeats a step already in the ladder.
func (qb *QueryBuilder) Ladder(e models.EntitySet, limit int) []LadderStep {
	candidates := []LadderStep{
		{StepStrict, catalog.Query{
			Categories:  e.Categories,
			Brands:      e.Brands,
			Keywords:    e.Keywords,
			KeywordMode: catalog.MatchAllKeywords,
			PriceMin:    e.PriceMin,
			PriceMax:    e.PriceMax,
			Limit:       limit,
		}},
		{StepCategoryPrice, catalog.Query{
			Categories: e.Categories,
			PriceMin:   e.PriceMin,
			PriceMax:   e.PriceMax,
			Limit:      limit,
		}},
	}

	if len(e.Categories) > 0 {
		candidates = append(candidates, LadderStep{StepCategory, catalog.Query{
			Categories: e.Categories,
			Limit:      limit,
		}})
	}

	if len(e.Keywords) > 0 {
		candidates = append(candidates,
			LadderStep{StepKeywordsAll, catalog.Query{
				Keywords:    e.Keywords,
				KeywordMode: catalog.MatchAllKeywords,
				PriceMin:    e.PriceMin,
				PriceMax:    e.PriceMax,
				Limit:       limit,
			}},
			LadderStep{StepKeywordsAny, catalog.Query{
				Keywords:    e.Keywords,
				KeywordMode: catalog.MatchAnyKeyword,
				PriceMin:    e.PriceMin,
				PriceMax:    e.PriceMax,
				Limit:       limit,
			}},
		)
	}

	var steps []LadderStep
	for _, c := range candidates {
		if c.Query.Unfiltered() || containsQuery(steps, c.Query) {
			continue
		}
		steps = append(steps, c)
	}

	return append(steps, LadderStep{StepPopular, catalog.Query{Limit: limit}})
}

func containsQuery(steps []LadderStep, q catalog.Query) bool {
	for _, s := range steps {
		if s.Query.Equal(q) {
			return true
		}
	}
	return false
}
