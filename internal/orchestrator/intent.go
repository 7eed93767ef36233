package orchestrator

import (
	"strings"

	"github.com/shubhsaxena/chat-search/internal/lexicon"
	"github.com/shubhsaxena/chat-search/internal/models"
)

// IntentClassifier assigns a coarse intent to a message. First match wins:
// greeting, help, the Lexicon intent phrases in table order, then any
// category mention counts as a search.
type IntentClassifier struct {
	lex *lexicon.Lexicon
}

func NewIntentClassifier(lex *lexicon.Lexicon) *IntentClassifier {
	return &IntentClassifier{lex: lex}
}

func (ic *IntentClassifier) Classify(message string) models.Intent {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return models.IntentGeneral
	}

	if lexicon.MatchAny(ic.lex.Greeting, msg) {
		return models.IntentGreeting
	}
	if lexicon.MatchAny(ic.lex.Help, msg) {
		return models.IntentHelp
	}

	for _, ip := range ic.lex.Intents {
		if ip.Matcher.Match(msg) {
			return ip.Intent
		}
	}

	for _, c := range ic.lex.Categories {
		if containsAny(msg, c.Variants) {
			return models.IntentSearch
		}
	}

	return models.IntentGeneral
}
