package analyzer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/feedbacksense/ai/feedback"
	"github.com/hrygo/feedbacksense/internal/profile"
	"github.com/hrygo/feedbacksense/store"
	"github.com/hrygo/feedbacksense/store/db/sqlite"
)

type memorySink struct {
	mu      sync.Mutex
	records []record
	err     error
	block   chan struct{}
}

func (s *memorySink) Sink() Sink {
	return Sink{
		Name: "memory",
		Record: func(_ context.Context, source string, analysis *feedback.Analysis) error {
			if s.block != nil {
				<-s.block
			}
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.err != nil {
				return s.err
			}
			s.records = append(s.records, record{source: source, analysis: analysis})
			return nil
		},
	}
}

func (s *memorySink) Records() []record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]record(nil), s.records...)
}

func TestRecorder_DeliversToAllSinks(t *testing.T) {
	first, second := &memorySink{}, &memorySink{}
	r := NewRecorder(10, nil, nil, first.Sink(), second.Sink())

	for _, text := range []string{"one", "two", "three"} {
		assert.True(t, r.Enqueue(feedback.Classify(text), store.SourceClassifier))
	}
	require.NoError(t, r.Close(time.Second))

	for _, sink := range []*memorySink{first, second} {
		records := sink.Records()
		require.Len(t, records, 3)
		assert.Equal(t, "one", records[0].analysis.Feedback)
		assert.Equal(t, "three", records[2].analysis.Feedback)
	}
	assert.Equal(t, []string{"memory", "memory"}, r.Sinks())
}

func TestRecorder_SinkErrorIsCounted(t *testing.T) {
	m := newTestMetrics()
	failing, ok := &memorySink{err: errors.New("disk full")}, &memorySink{}
	r := NewRecorder(10, nil, m, failing.Sink(), ok.Sink())

	r.Enqueue(feedback.Classify("hello"), store.SourceClassifier)
	require.NoError(t, r.Close(time.Second))

	// A failing sink does not stop the others.
	assert.Len(t, ok.Records(), 1)
	expected := `
# HELP feedbacksense_recorder_errors_total Total number of failed recorder sink writes
# TYPE feedbacksense_recorder_errors_total counter
feedbacksense_recorder_errors_total{sink="memory"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "feedbacksense_recorder_errors_total"))
}

func TestRecorder_SlowSinkDoesNotDelayOthers(t *testing.T) {
	slow, fast := &memorySink{block: make(chan struct{})}, &memorySink{}
	r := NewRecorder(10, nil, nil, slow.Sink(), fast.Sink())

	for _, text := range []string{"one", "two", "three", "four", "five"} {
		require.True(t, r.Enqueue(feedback.Classify(text), store.SourceClassifier))
	}

	// The fast sink keeps up while the slow one is still stuck on the first record.
	require.Eventually(t, func() bool { return len(fast.Records()) == 5 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, slow.Records())
	require.Eventually(t, func() bool { return r.QueueSize() == 4 }, time.Second, 5*time.Millisecond)

	close(slow.block)
	require.NoError(t, r.Close(time.Second))
	assert.Len(t, slow.Records(), 5)
}

func TestRecorder_QueueFull(t *testing.T) {
	sink := &memorySink{block: make(chan struct{})}
	r := NewRecorder(1, nil, nil, sink.Sink())

	// The worker takes the first item and blocks; the second fills the queue.
	require.True(t, r.Enqueue(feedback.Classify("one"), store.SourceClassifier))
	require.Eventually(t, func() bool { return r.QueueSize() == 0 }, time.Second, 5*time.Millisecond)
	require.True(t, r.Enqueue(feedback.Classify("two"), store.SourceClassifier))
	assert.False(t, r.Enqueue(feedback.Classify("three"), store.SourceClassifier))

	close(sink.block)
	require.NoError(t, r.Close(time.Second))
	assert.Len(t, sink.Records(), 2)
}

func TestRecorder_EnqueueAfterClose(t *testing.T) {
	r := NewRecorder(1, nil, nil)
	require.NoError(t, r.Close(time.Second))
	require.NoError(t, r.Close(time.Second))
	assert.False(t, r.Enqueue(feedback.Classify("late"), store.SourceClassifier))
}

func TestRecorder_CloseTimeout(t *testing.T) {
	sink := &memorySink{block: make(chan struct{})}
	r := NewRecorder(1, nil, nil, sink.Sink())
	r.Enqueue(feedback.Classify("stuck"), store.SourceClassifier)

	assert.ErrorIs(t, r.Close(20*time.Millisecond), context.DeadlineExceeded)
	close(sink.block)
	require.NoError(t, r.Close(time.Second))
}

func TestStoreSink(t *testing.T) {
	driver, err := sqlite.NewDB(&profile.Profile{DSN: filepath.Join(t.TempDir(), "recorder.db")})
	require.NoError(t, err)
	s := store.New(driver)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	r := NewRecorder(10, nil, nil, StoreSink(s))
	r.Enqueue(feedback.Fallback("pipeline down"), store.SourceFallback)
	require.NoError(t, r.Close(time.Second))

	list, err := s.ListFeedbackAnalyses(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "pipeline down", list[0].Feedback)
	assert.Equal(t, store.SourceFallback, list[0].Source)
	assert.Equal(t, feedback.RouteGeneralSupport, list[0].Route)
}
