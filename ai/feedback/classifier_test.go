package feedback

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Scenarios(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantCategory Category
		wantSent     Sentiment
		wantPriority Priority
		wantEntities []string
		wantRoute    string
	}{
		{
			name:         "complaint about app",
			input:        "This app is terrible and broken",
			wantCategory: CategoryComplaint,
			wantSent:     SentimentNegative,
			wantPriority: PriorityHigh,
			wantEntities: []string{"app"},
			wantRoute:    "Customer Service Team",
		},
		{
			name:         "praise for support",
			input:        "I love the excellent support",
			wantCategory: CategoryPraise,
			wantSent:     SentimentPositive,
			wantPriority: PriorityMedium,
			wantEntities: []string{"support"},
			wantRoute:    "HR/Employee Recognition",
		},
		{
			name:         "suggestion for website",
			input:        "You should improve the website",
			wantCategory: CategorySuggestion,
			wantSent:     SentimentNeutral,
			wantPriority: PriorityMedium,
			wantEntities: []string{"website"},
			wantRoute:    "Product Development",
		},
		{
			name:         "plain query",
			input:        "What are your hours?",
			wantCategory: CategoryQuery,
			wantSent:     SentimentNeutral,
			wantPriority: PriorityLow,
			wantEntities: []string{"general feedback"},
			wantRoute:    "FAQ/Knowledge Base Update",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.input)
			require.NotNil(t, got)
			assert.Equal(t, tt.input, got.Feedback)
			assert.Equal(t, tt.wantCategory, got.Category)
			assert.Equal(t, tt.wantSent, got.Sentiment)
			assert.Equal(t, tt.wantPriority, got.Priority)
			assert.Equal(t, tt.wantRoute, got.Route)
			if diff := cmp.Diff(tt.wantEntities, got.Entities); diff != "" {
				t.Errorf("entities mismatch (-want +got):\n%s", diff)
			}
			assert.Len(t, got.ActionItems, 3)
		})
	}
}

func TestClassify_Precedence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Category
	}{
		{"complaint beats praise", "I love the product but the delivery was terrible", CategoryComplaint},
		{"complaint beats suggestion", "You should fix this problem", CategoryComplaint},
		{"praise beats suggestion", "Great idea, you could add dark mode", CategoryPraise},
		{"all three sets", "Amazing staff, awful price, could be cheaper", CategoryComplaint},
		{"case insensitive", "TERRIBLE SERVICE", CategoryComplaint},
		{"substring match", "This looks issue-free", CategoryComplaint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.input).Category)
		})
	}
}

func TestClassify_DerivedFieldsFollowCategory(t *testing.T) {
	inputs := []string{
		"The worst delivery ever",
		"Fantastic quality",
		"Maybe an idea for the app",
		"Do you ship abroad?",
	}
	for _, input := range inputs {
		got := Classify(input)
		p := profiles[got.Category]
		assert.Equal(t, p.sentiment, got.Sentiment, input)
		assert.Equal(t, p.priority, got.Priority, input)
		assert.Equal(t, p.route, got.Route, input)
		assert.Equal(t, p.actionItems, got.ActionItems, input)
	}
}

func TestClassify_TemplatedText(t *testing.T) {
	got := Classify("The staff and delivery were awful")

	assert.Equal(t, []string{"staff", "delivery"}, got.Entities)
	assert.Equal(t, "Customer provided negative feedback regarding staff, delivery", got.Summary)
	assert.Equal(t, "Negative customer sentiment in complaint category", got.TrendAnalysis)

	query := Classify("Where is my order?")
	assert.Equal(t, "Customer provided neutral feedback regarding general feedback", query.Summary)
	assert.Equal(t, "Neutral customer sentiment in query category", query.TrendAnalysis)
}

func TestExtractEntities_VocabularyOrder(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"price before app in text", "The price is too high for this app", []string{"app", "price"}},
		{"app before price in text", "This app has a fair price", []string{"app", "price"}},
		{"mixed case", "SUPPORT and Product", []string{"product", "support"}},
		{"none", "hello there", []string{"general feedback"}},
		{"repeated keyword once", "app app app", []string{"app"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ExtractEntities(tt.input)); diff != "" {
				t.Errorf("ExtractEntities(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestClassify_Idempotent(t *testing.T) {
	input := "Excellent service, but the website could improve"
	first := Classify(input)
	second := Classify(input)
	assert.Equal(t, first, second)

	// Mutating a result must not leak into later results.
	first.ActionItems[0] = "changed"
	assert.NotEqual(t, "changed", Classify(input).ActionItems[0])
}

func TestClassify_Concurrent(t *testing.T) {
	want := Classify("The app is broken")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, Classify("The app is broken"))
		}()
	}
	wg.Wait()
}

func TestParseEnums(t *testing.T) {
	c, ok := ParseCategory("Praise")
	assert.True(t, ok)
	assert.Equal(t, CategoryPraise, c)
	_, ok = ParseCategory("praise")
	assert.False(t, ok)

	s, ok := ParseSentiment("Neutral")
	assert.True(t, ok)
	assert.Equal(t, SentimentNeutral, s)
	_, ok = ParseSentiment("Mixed")
	assert.False(t, ok)

	p, ok := ParsePriority("Low")
	assert.True(t, ok)
	assert.Equal(t, PriorityLow, p)
	_, ok = ParsePriority("Urgent")
	assert.False(t, ok)
}

func TestRouteFor(t *testing.T) {
	assert.Equal(t, RouteCustomerService, RouteFor(CategoryComplaint))
	assert.Equal(t, RouteRecognition, RouteFor(CategoryPraise))
	assert.Equal(t, RouteProduct, RouteFor(CategorySuggestion))
	assert.Equal(t, RouteKnowledgeBase, RouteFor(CategoryQuery))
	assert.Equal(t, RouteGeneralSupport, RouteFor(Category("Other")))
}

func TestCharCount(t *testing.T) {
	assert.Equal(t, 5, CharCount("héllo"))
	assert.Equal(t, 2, CharCount("你好"))
}
