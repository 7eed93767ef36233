package orchestrator

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/shubhsaxena/chat-search/internal/lexicon"
	"github.com/shubhsaxena/chat-search/internal/models"
)

const (
	greetingText = "Hello! Welcome to our premium e-commerce store! 👋✨ I'm your AI shopping assistant, and I'm here to help you discover amazing products. Whether you're looking for the latest smartphones, powerful laptops, stylish clothing, or anything else, just tell me what you need! How can I help you find the perfect product today?"

	helpText = `🤖 **Your AI Shopping Assistant Capabilities:**

🔍 **Smart Product Search**
   • "Show me gaming laptops under $1500"
   • "Find wireless headphones"
   • "I need a smartphone with good camera"

💰 **Price Intelligence**
   • "Cheap smartphones" (budget-friendly options)
   • "Premium headphones" (high-end products)
   • "Between $200 and $500"

🏷️ **Brand & Category Search**
   • "Apple products"
   • "Samsung phones vs iPhone"
   • "Gaming accessories"

🎯 **Smart Recommendations**
   • "Recommend a good laptop for programming"
   • "Best phones for photography"
   • "Top-rated books"

📊 **Product Comparison**
   • "Compare iPhone vs Samsung"
   • "Which laptop is better for gaming?"

Just describe what you're looking for in natural language, and I'll find the perfect products for you! 🛍️`

	availabilityText = "I can help you check product availability! Please specify which product you're interested in, and I'll let you know if it's in stock."
	featuresText     = "I'd be happy to help you learn about product features! Please tell me which specific product you're interested in, and I'll provide detailed specifications."
	fallbackText     = "I couldn't find an exact match, but here are some of our most popular products:"
	defaultTemplate  = "I'd love to help you find what you're looking for! %s. Try being more specific about what product you need, or type 'help' to see all my capabilities! 🛍️"
	errorText        = "I'm having trouble processing your search request. Please try rephrasing your query or ask for help to see what I can do."
)

// Composer renders the user-facing text and payload of a chat response.
type Composer struct {
	lex *lexicon.Lexicon
}

func NewComposer(lex *lexicon.Lexicon) *Composer {
	return &Composer{lex: lex}
}

func (c *Composer) Greeting() *models.ChatResponse {
	return static(greetingText, models.ResponseGreeting, models.IntentGreeting)
}

func (c *Composer) Help() *models.ChatResponse {
	return static(helpText, models.ResponseHelp, models.IntentHelp)
}

func (c *Composer) Availability() *models.ChatResponse {
	return static(availabilityText, models.ResponseAvailability, models.IntentAvailability)
}

func (c *Composer) Features() *models.ChatResponse {
	return static(featuresText, models.ResponseFeatures, models.IntentFeatures)
}

func (c *Composer) Error(intent models.Intent) *models.ChatResponse {
	return static(errorText, models.ResponseError, intent)
}

// Products renders a resolved ladder. Fallback results get the fixed
// popularity prefix and no criteria clause.
func (c *Composer) Products(e models.EntitySet, intent models.Intent, res *Resolution) *models.ChatResponse {
	resp := &models.ChatResponse{
		Type:       models.ResponseProductSearch,
		Products:   res.Products,
		Intent:     intent.String(),
		Entities:   &e,
		Fallback:   res.Fallback,
		LadderStep: res.Step,
	}
	if res.Fallback {
		resp.Response = fallbackText
		return resp
	}

	count := len(res.Products)
	var b strings.Builder
	switch intent {
	case models.IntentRecommendation:
		fmt.Fprintf(&b, "Based on your preferences, I recommend these %d products", count)
	case models.IntentComparison:
		fmt.Fprintf(&b, "Here are %d products you can compare", count)
	default:
		fmt.Fprintf(&b, "I found %d products", count)
	}

	if criteria := criteriaClause(e); criteria != "" {
		b.WriteString(" ")
		b.WriteString(criteria)
	}
	b.WriteString(":")

	if intent == models.IntentRecommendation && count > 0 {
		top := res.Products[0]
		fmt.Fprintf(&b, "\n\n💡 Top pick: **%s** (⭐ %s/5) - $%.2f",
			top.Name, strconv.FormatFloat(top.Rating, 'f', -1, 64), top.Price)
	}

	resp.Response = b.String()
	return resp
}

func criteriaClause(e models.EntitySet) string {
	var parts []string
	if len(e.Categories) > 0 {
		parts = append(parts, "in "+strings.Join(e.Categories, ", "))
	}
	if len(e.Brands) > 0 {
		parts = append(parts, "from "+strings.Join(e.Brands, ", "))
	}
	switch {
	case e.PriceMin != nil && e.PriceMax != nil:
		parts = append(parts, fmt.Sprintf("between $%.2f-$%.2f", *e.PriceMin, *e.PriceMax))
	case e.PriceMin != nil:
		parts = append(parts, fmt.Sprintf("above $%.2f", *e.PriceMin))
	case e.PriceMax != nil:
		parts = append(parts, fmt.Sprintf("under $%.2f", *e.PriceMax))
	}
	return strings.Join(parts, " ")
}

// NoResults is used only when even the unfiltered popularity step came back
// empty.
func (c *Composer) NoResults(e models.EntitySet, intent models.Intent) *models.ChatResponse {
	var suggestions []string
	if len(e.Categories) > 0 {
		suggestions = append(suggestions, "Try searching in different categories like 'electronics', 'books', or 'clothing'")
	}
	if e.PriceMax != nil {
		suggestions = append(suggestions, fmt.Sprintf("Consider increasing your budget above $%.0f", *e.PriceMax))
	}
	if e.PriceMin != nil {
		suggestions = append(suggestions, fmt.Sprintf("Try looking for products under $%.0f", *e.PriceMin))
	}
	if len(e.Categories) == 0 && len(e.Brands) == 0 {
		suggestions = append(suggestions, "Try searching for popular categories like "+quotedList(first(c.lex.PopularCategories, 3)))
	}

	var b strings.Builder
	b.WriteString("Sorry, I couldn't find any products matching your criteria.")
	if len(suggestions) > 0 {
		b.WriteString(" You can also ")
		b.WriteString(strings.Join(suggestions, ", or "))
	}
	b.WriteString(". Would you like me to show you our popular products instead?")

	return &models.ChatResponse{
		Response:    b.String(),
		Type:        models.ResponseNoResults,
		Products:    []models.Product{},
		Intent:      intent.String(),
		Entities:    &e,
		Suggestions: suggestions,
	}
}

// Default answers messages that carry no search trigger. Suggestions are
// built from the first keywords plus three popular categories, rotated by a
// hash of the message so the same message always gets the same answer.
func (c *Composer) Default(message string, e models.EntitySet) *models.ChatResponse {
	var suggestions []string
	if len(e.Keywords) > 0 {
		suggestions = append(suggestions, "search for "+strings.Join(first(e.Keywords, 3), ", "))
	}
	for _, cat := range c.rotatedPopular(message, 3) {
		suggestions = append(suggestions, "browse "+cat)
	}

	text := "You can ask me to search for products, browse categories, or get recommendations!"
	if len(suggestions) > 0 {
		text = "You could try: " + strings.Join(first(suggestions, 4), ", ")
	}

	return &models.ChatResponse{
		Response:    fmt.Sprintf(defaultTemplate, text),
		Type:        models.ResponseDefault,
		Products:    []models.Product{},
		Intent:      e.Intent.String(),
		Entities:    &e,
		Suggestions: suggestions,
	}
}

func (c *Composer) rotatedPopular(message string, n int) []string {
	popular := c.lex.PopularCategories
	if len(popular) == 0 {
		return nil
	}
	h := fnv.New32a()
	h.Write([]byte(message))
	offset := int(h.Sum32() % uint32(len(popular)))

	if n > len(popular) {
		n = len(popular)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, popular[(offset+i)%len(popular)])
	}
	return out
}

func static(text string, typ models.ResponseType, intent models.Intent) *models.ChatResponse {
	return &models.ChatResponse{
		Response: text,
		Type:     typ,
		Products: []models.Product{},
		Intent:   intent.String(),
	}
}

func first(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// quotedList renders a, b, c as "'a', 'b', or 'c'".
func quotedList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + s + "'"
	}
	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return quoted[0]
	case 2:
		return quoted[0] + " or " + quoted[1]
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + ", or " + quoted[len(quoted)-1]
}
