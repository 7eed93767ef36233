package models

import (
	"fmt"
	"time"
)

type Intent int

const (
	IntentGeneral Intent = iota
	IntentGreeting
	IntentHelp
	IntentSearch
	IntentComparison
	IntentRecommendation
	IntentAvailability
	IntentFeatures
)

func (i Intent) String() string {
	switch i {
	case IntentGeneral:
		return "general"
	case IntentGreeting:
		return "greeting"
	case IntentHelp:
		return "help"
	case IntentSearch:
		return "search"
	case IntentComparison:
		return "comparison"
	case IntentRecommendation:
		return "recommendation"
	case IntentAvailability:
		return "availability"
	case IntentFeatures:
		return "features"
	default:
		return "unknown"
	}
}

// ParseIntent is the inverse of String. Unknown names map to IntentGeneral.
func ParseIntent(s string) Intent {
	for i := IntentGeneral; i <= IntentFeatures; i++ {
		if i.String() == s {
			return i
		}
	}
	return IntentGeneral
}

func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Intent) UnmarshalText(b []byte) error {
	*i = ParseIntent(string(b))
	return nil
}

// SearchLike reports whether the intent alone is enough to route a message
// to the product search path.
func (i Intent) SearchLike() bool {
	return i == IntentSearch || i == IntentRecommendation || i == IntentComparison
}

type ResponseType string

const (
	ResponseGreeting      ResponseType = "greeting"
	ResponseHelp          ResponseType = "help"
	ResponseProductSearch ResponseType = "product_search"
	ResponseAvailability  ResponseType = "availability"
	ResponseFeatures      ResponseType = "features"
	ResponseDefault       ResponseType = "default"
	ResponseNoResults     ResponseType = "no_results"
	ResponseError         ResponseType = "error"
)

// EntitySet is the structured reading of one chat message.
type EntitySet struct {
	Categories []string `json:"categories"`
	Brands     []string `json:"brands"`
	PriceMin   *float64 `json:"price_min"`
	PriceMax   *float64 `json:"price_max"`
	Keywords   []string `json:"keywords"`
	Intent     Intent   `json:"intent"`
}

func (e *EntitySet) HasPriceBounds() bool {
	return e.PriceMin != nil || e.PriceMax != nil
}

func (e *EntitySet) HasCategories() bool {
	return len(e.Categories) > 0
}

type Product struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Price         float64        `json:"price"`
	Category      string         `json:"category"`
	Brand         string         `json:"brand"`
	StockQuantity int            `json:"stock_quantity"`
	ImageURL      string         `json:"image_url,omitempty"`
	Rating        float64        `json:"rating"`
	Features      []string       `json:"features"`
	CreatedAt     time.Time      `json:"created_at,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
}

func (p Product) DocumentID() string {
	return fmt.Sprintf("%d", p.ID)
}

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type ChatResponse struct {
	Response    string       `json:"response"`
	Type        ResponseType `json:"type"`
	Products    []Product    `json:"products"`
	Intent      string       `json:"intent,omitempty"`
	Entities    *EntitySet   `json:"entities,omitempty"`
	Suggestions []string     `json:"suggestions,omitempty"`
	Fallback    bool         `json:"fallback,omitempty"`
	LadderStep  string       `json:"ladder_step,omitempty"`
	SessionID   string       `json:"session_id,omitempty"`
	MessageID   string       `json:"message_id,omitempty"`
	TookMs      int64        `json:"took_ms"`
	CacheHit    bool         `json:"cache_hit,omitempty"`
}

type HistoryEntry struct {
	MessageID string       `json:"message_id"`
	SessionID string       `json:"session_id"`
	Message   string       `json:"message"`
	Response  string       `json:"response"`
	Type      ResponseType `json:"message_type"`
	Timestamp time.Time    `json:"timestamp"`
}

type ProductChangeEvent struct {
	Type      string    `json:"type"` // CREATE, UPDATE, DELETE
	ProductID int64     `json:"product_id"`
	Product   *Product  `json:"product,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Version   int64     `json:"version"`
}

type IndexAction struct {
	Action    string         `json:"action"` // index, delete
	Index     string         `json:"index"`
	ID        string         `json:"id"`
	Body      map[string]any `json:"body,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type ChatEvent struct {
	MessageHash  string    `json:"message_hash"`
	SessionID    string    `json:"session_id"`
	Intent       string    `json:"intent"`
	ResponseType string    `json:"response_type"`
	LadderStep   string    `json:"ladder_step"`
	ProductCount int       `json:"product_count"`
	Fallback     bool      `json:"fallback"`
	DurationMs   float64   `json:"duration_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

type AnalyticsEvent struct {
	EventType  string    `json:"event_type"`
	QueryHash  string    `json:"query_hash"`
	QueryType  string    `json:"query_type"`
	DurationMs float64   `json:"duration_ms"`
	TotalHits  int64     `json:"total_hits"`
	Steps      int       `json:"steps"`
	TimedOut   bool      `json:"timed_out"`
	Timestamp  time.Time `json:"timestamp"`
	TraceID    string    `json:"trace_id"`
	Source     string    `json:"source"`
}
