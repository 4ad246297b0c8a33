package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallback(t *testing.T) {
	got := Fallback("The app keeps crashing")

	assert.Equal(t, "The app keeps crashing", got.Feedback)
	assert.Equal(t, CategoryQuery, got.Category)
	assert.Equal(t, []string{"general feedback"}, got.Entities)
	assert.Equal(t, SentimentNeutral, got.Sentiment)
	assert.Equal(t, PriorityMedium, got.Priority)
	assert.Equal(t, "General Support", got.Route)
	assert.Equal(t, []string{"Review customer feedback manually"}, got.ActionItems)
	assert.Equal(t, "Fallback analysis due to system limitations", got.TrendAnalysis)
}

func TestFallback_IgnoresContent(t *testing.T) {
	a := Fallback("I love it")
	b := Fallback("This is terrible")

	a.Feedback, b.Feedback = "", ""
	assert.Equal(t, a, b)
}

func TestAnalysis_Clone(t *testing.T) {
	orig := Classify("Great app")
	c := orig.Clone()
	c.Entities[0] = "x"
	c.ActionItems[0] = "y"

	assert.Equal(t, "app", orig.Entities[0])
	assert.NotEqual(t, "y", orig.ActionItems[0])
	assert.Nil(t, (*Analysis)(nil).Clone())
}
