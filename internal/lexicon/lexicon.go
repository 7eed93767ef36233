// Package lexicon holds the static word tables the chat engine reads
// messages with. A Lexicon is built once and never mutated, so a single
// value is shared by every request.
package lexicon

import (
	"github.com/shubhsaxena/chat-search/internal/models"
)

// Synonyms maps one canonical name to the lowercase variants that imply it.
type Synonyms struct {
	Name     string
	Variants []string
}

// CompoundPhrase is a multi-word phrase that pins a single category and
// contributes one extra keyword.
type CompoundPhrase struct {
	Phrase   string
	Category string
	Keyword  string
}

// IntentPhrase ties an intent to the phrase that signals it.
type IntentPhrase struct {
	Intent  models.Intent
	Matcher Matcher
}

type PriceRules struct {
	Under   NumberMatcher
	Over    NumberMatcher
	Between NumberMatcher

	Cheap        Matcher
	Expensive    Matcher
	CheapMax     float64
	ExpensiveMin float64

	// Strip removes price phrases before keyword tokenization.
	Strip []Stripper
}

type Lexicon struct {
	// Tables are slices, not maps: iteration order is part of the contract.
	Categories []Synonyms
	Compounds  []CompoundPhrase
	Brands     []Synonyms
	Price      PriceRules

	Greeting []Matcher
	Help     []Matcher
	Search   []Matcher
	Intents  []IntentPhrase

	StopWords         map[string]struct{}
	PopularCategories []string
}

// CategoryVariants returns the synonyms listed for a canonical category.
func (l *Lexicon) CategoryVariants(name string) []string {
	for _, c := range l.Categories {
		if c.Name == name {
			return c.Variants
		}
	}
	return nil
}

func (l *Lexicon) IsStopWord(word string) bool {
	_, ok := l.StopWords[word]
	return ok
}

func NewStopWords(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Default returns the store lexicon.
func Default() *Lexicon {
	return &Lexicon{
		Categories: []Synonyms{
			{"electronics", []string{"electronics", "electronic", "tech", "technology", "gadget", "gadgets", "device", "devices"}},
			{"smartphones", []string{"phone", "phones", "smartphone", "smartphones", "mobile", "mobiles", "cell", "cellular", "iphone", "android"}},
			{"laptops", []string{"laptop", "laptops", "notebook", "notebooks", "computer", "computers", "pc", "macbook"}},
			{"tablets", []string{"tablet", "tablets", "ipad", "ipads"}},
			{"headphones", []string{"headphones", "headphone", "earphones", "earphone", "earbuds", "earbud", "headset", "headsets", "audio"}},
			{"smartwatches", []string{"watch", "watches", "smartwatch", "smartwatches", "wearable", "wearables", "fitness", "tracker"}},
			{"gaming", []string{"gaming", "game", "games", "console", "consoles", "xbox", "playstation", "nintendo", "controller"}},
			{"cameras", []string{"camera", "cameras", "photography", "photo", "photos", "dslr", "mirrorless"}},
			{"books", []string{"book", "books", "novel", "novels", "literature", "reading", "ebook", "ebooks"}},
			{"clothing", []string{"clothing", "clothes", "apparel", "fashion", "wear"}},
			{"shoes", []string{"shoes", "shoe", "footwear", "sneakers", "sneaker", "boots", "sandals"}},
			{"accessories", []string{"accessories", "accessory", "jewelry", "jewellery", "bag", "bags", "wallet", "wallets"}},
			{"home", []string{"home", "furniture", "decor", "decoration", "kitchen", "bedroom", "living"}},
			{"sports", []string{"sports", "sport", "fitness", "exercise", "workout", "athletic", "outdoor"}},
			{"beauty", []string{"beauty", "cosmetics", "makeup", "skincare", "perfume", "fragrance"}},
		},
		Compounds: []CompoundPhrase{
			{Phrase: "gaming laptops", Category: "laptops", Keyword: "gaming"},
			{Phrase: "smart watches", Category: "smartwatches", Keyword: "smart"},
			{Phrase: "wireless headphones", Category: "headphones", Keyword: "wireless"},
			{Phrase: "smartphone accessories", Category: "accessories", Keyword: "smartphone"},
		},
		Brands: []Synonyms{
			{"apple", []string{"apple", "iphone", "ipad", "macbook", "mac", "imac"}},
			{"samsung", []string{"samsung", "galaxy"}},
			{"sony", []string{"sony", "playstation", "ps4", "ps5"}},
			{"microsoft", []string{"microsoft", "xbox", "surface"}},
			{"google", []string{"google", "pixel", "nest"}},
			{"amazon", []string{"amazon", "kindle", "echo", "alexa"}},
			{"nike", []string{"nike", "air", "jordan"}},
			{"adidas", []string{"adidas"}},
			{"dell", []string{"dell", "alienware"}},
			{"hp", []string{"hp", "hewlett", "packard"}},
			{"lenovo", []string{"lenovo", "thinkpad"}},
			{"lg", []string{"lg"}},
			{"canon", []string{"canon"}},
			{"nikon", []string{"nikon"}},
		},
		Price: PriceRules{
			Under:        Pattern(`\b(under|below|less\s*than|cheaper\s*than|maximum)\s*\$?(\d+)\b`),
			Over:         Pattern(`\b(above|over|more\s*than|expensive\s*than|minimum)\s*\$?(\d+)\b`),
			Between:      Pattern(`\b(between)\s*\$?(\d+)\s*(?:and|to|\-)\s*\$?(\d+)\b`),
			Cheap:        Pattern(`\b(cheap|affordable|budget|inexpensive|low\s*cost|economical)\b`),
			Expensive:    Pattern(`\b(expensive|premium|high\s*end|luxury|top\s*tier|flagship)\b`),
			CheapMax:     200,
			ExpensiveMin: 500,
			Strip: []Stripper{
				Pattern(`\b(under|below|above|over|between|less\s+than|more\s+than|cheaper\s+than|expensive\s+than)\s*\$?\d+(?:\s*(?:and|to|\-)\s*\$?\d+)?\b`),
				Pattern(`\$\d+`),
			},
		},
		Greeting: []Matcher{
			Pattern(`\b(hi|hello|hey|greetings|good\s*(morning|afternoon|evening)|howdy|sup)\b`),
			Pattern(`\b(how\s*are\s*you|what's\s*up|how\s*do\s*you\s*do)\b`),
		},
		Help: []Matcher{
			Pattern(`\b(help|assist|support|guide)\b`),
			Pattern(`\b(how\s*to|what\s*can\s*you\s*do|capabilities)\b`),
		},
		Search: []Matcher{
			Pattern(`\b(search|find|look\s*for|show\s*me|i\s*want|need|looking\s*for|browsing|shopping\s*for)\b`),
			Pattern(`\b(recommend|suggest|advice|help\s*me\s*choose)\b`),
			Pattern(`\b(compare|difference|which\s*is\s*better)\b`),
		},
		Intents: []IntentPhrase{
			{models.IntentComparison, Pattern(`\b(compare|vs|versus|which\s*is\s*better|difference|between)\b`)},
			{models.IntentRecommendation, Pattern(`\b(recommend|suggest|best|top|good|advice|help\s*me\s*choose)\b`)},
			{models.IntentAvailability, Pattern(`\b(available|in\s*stock|stock|inventory)\b`)},
			{models.IntentFeatures, Pattern(`\b(features|specs|specifications|details|about)\b`)},
		},
		StopWords: NewStopWords(
			"i", "want", "need", "find", "search", "for", "show", "me", "under", "above",
			"below", "over", "than", "less", "more", "the", "a", "an", "and", "or", "with",
			"good", "best", "nice", "great", "awesome", "cool", "cheap", "expensive", "can",
			"you", "help", "please", "looking", "some", "any", "is", "are", "have", "has",
		),
		PopularCategories: []string{"smartphones", "laptops", "headphones", "books", "gaming"},
	}
}
