package orchestrator

import (
	"testing"

	"github.com/shubhsaxena/chat-search/internal/lexicon"
	"github.com/shubhsaxena/chat-search/internal/models"
)

func TestIntentClassifier_Classify(t *testing.T) {
	ic := NewIntentClassifier(lexicon.Default())

	tests := []struct {
		message string
		want    models.Intent
	}{
		{"", models.IntentGeneral},
		{"   ", models.IntentGeneral},
		{"hi", models.IntentGreeting},
		{"Hello there", models.IntentGreeting},
		{"good morning", models.IntentGreeting},
		{"can you help me", models.IntentHelp},
		{"what can you do", models.IntentHelp},
		{"compare iphone vs samsung", models.IntentComparison},
		{"recommend a laptop", models.IntentRecommendation},
		{"top rated books", models.IntentRecommendation},
		{"is the ps5 in stock", models.IntentAvailability},
		{"tell me about specs", models.IntentFeatures},
		{"laptops", models.IntentSearch},
		{"wireless earbuds", models.IntentSearch},
		{"asdkjasd", models.IntentGeneral},
		// word boundaries: "this" does not contain the greeting "hi"
		{"this thing", models.IntentGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := ic.Classify(tt.message); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.message, got, tt.want)
			}
		})
	}
}

func TestIntentClassifier_Classify_TableOrderWins(t *testing.T) {
	ic := NewIntentClassifier(lexicon.Default())

	// "best" is a recommendation phrase, "between" a comparison phrase;
	// comparison comes first in the table.
	if got := ic.Classify("best laptops between 100 and 200"); got != models.IntentComparison {
		t.Errorf("expected comparison, got %s", got)
	}
	// greeting beats everything else
	if got := ic.Classify("hey, compare these laptops"); got != models.IntentGreeting {
		t.Errorf("expected greeting, got %s", got)
	}
	// help beats intent phrases
	if got := ic.Classify("help me compare phones"); got != models.IntentHelp {
		t.Errorf("expected help, got %s", got)
	}
}

func TestIntentClassifier_Classify_CaseInsensitive(t *testing.T) {
	ic := NewIntentClassifier(lexicon.Default())

	if got := ic.Classify("RECOMMEND A LAPTOP"); got != models.IntentRecommendation {
		t.Errorf("expected recommendation, got %s", got)
	}
}

func TestIntentClassifier_Classify_EmptyLexicon(t *testing.T) {
	ic := NewIntentClassifier(&lexicon.Lexicon{})

	if got := ic.Classify("compare laptops"); got != models.IntentGeneral {
		t.Errorf("expected general for empty lexicon, got %s", got)
	}
}
