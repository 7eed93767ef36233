package orchestrator

import (
	"regexp"
	"strings"

	"github.com/shubhsaxena/chat-search/internal/lexicon"
	"github.com/shubhsaxena/chat-search/internal/models"
)

// wordPattern splits on Unicode word runs; only all-ASCII-letter runs become
// keywords, so "café" yields nothing rather than "caf".
var (
	wordPattern  = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	asciiLetters = regexp.MustCompile(`^[a-z]+$`)
)

const minKeywordLen = 3

// Extractor reads categories, brands, price bounds and free keywords out of
// a chat message. It is a pure function of the message and the Lexicon.
type Extractor struct {
	lex        *lexicon.Lexicon
	classifier *IntentClassifier
}

func NewExtractor(lex *lexicon.Lexicon) *Extractor {
	return &Extractor{lex: lex, classifier: NewIntentClassifier(lex)}
}

func (e *Extractor) Extract(message string) models.EntitySet {
	msg := strings.ToLower(strings.TrimSpace(message))

	entities := models.EntitySet{Intent: e.classifier.Classify(msg)}
	var categories, brands, keywords orderedSet

	foundCompound := false
	for _, c := range e.lex.Compounds {
		if strings.Contains(msg, c.Phrase) {
			categories.add(c.Category)
			keywords.add(c.Keyword)
			foundCompound = true
		}
	}

	if !foundCompound {
		for _, c := range e.lex.Categories {
			if containsAny(msg, c.Variants) {
				categories.add(c.Name)
			}
		}
	}

	for _, b := range e.lex.Brands {
		if containsAny(msg, b.Variants) {
			brands.add(b.Name)
		}
	}

	e.extractPrice(msg, &entities)

	clean := msg
	for _, s := range e.lex.Price.Strip {
		clean = s.Strip(clean)
	}
	for _, word := range wordPattern.FindAllString(clean, -1) {
		if !asciiLetters.MatchString(word) || len(word) < minKeywordLen || e.lex.IsStopWord(word) {
			continue
		}
		keywords.add(word)
	}

	// A category signal must not be filtered twice, once as category and
	// once as keyword.
	covered := make(map[string]struct{})
	for _, c := range categories.items {
		covered[c] = struct{}{}
		for _, v := range e.lex.CategoryVariants(c) {
			covered[v] = struct{}{}
		}
	}
	keywords.removeIf(func(kw string) bool {
		_, ok := covered[kw]
		return ok
	})

	entities.Categories = categories.slice()
	entities.Brands = brands.slice()
	entities.Keywords = keywords.slice()
	return entities
}

// extractPrice applies numeric bounds first, then the cheap and expensive
// qualifiers. Qualifiers overwrite numeric bounds when both are present.
func (e *Extractor) extractPrice(msg string, entities *models.EntitySet) {
	p := e.lex.Price

	if n := numbers(p.Under, msg); len(n) >= 1 {
		entities.PriceMax = bound(n[0])
	}
	if n := numbers(p.Over, msg); len(n) >= 1 {
		entities.PriceMin = bound(n[0])
	}
	if n := numbers(p.Between, msg); len(n) >= 2 {
		entities.PriceMin = bound(n[0])
		entities.PriceMax = bound(n[1])
	}

	if p.Cheap != nil && p.Cheap.Match(msg) {
		entities.PriceMax = bound(p.CheapMax)
	}
	if p.Expensive != nil && p.Expensive.Match(msg) {
		entities.PriceMin = bound(p.ExpensiveMin)
	}
}

func numbers(m lexicon.NumberMatcher, text string) []float64 {
	if m == nil {
		return nil
	}
	return m.Numbers(text)
}

func bound(v float64) *float64 {
	return &v
}

func containsAny(text string, variants []string) bool {
	for _, v := range variants {
		if v != "" && strings.Contains(text, v) {
			return true
		}
	}
	return false
}

// orderedSet keeps first-insertion order and drops duplicates.
type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func (s *orderedSet) add(v string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

func (s *orderedSet) removeIf(drop func(string) bool) {
	kept := s.items[:0]
	for _, v := range s.items {
		if drop(v) {
			delete(s.seen, v)
			continue
		}
		kept = append(kept, v)
	}
	s.items = kept
}

func (s *orderedSet) slice() []string {
	if len(s.items) == 0 {
		return []string{}
	}
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}
