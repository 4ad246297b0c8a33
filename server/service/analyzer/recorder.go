package analyzer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hrygo/feedbacksense/ai/feedback"
	"github.com/hrygo/feedbacksense/ai/metrics"
	"github.com/hrygo/feedbacksense/plugin/kafka"
	"github.com/hrygo/feedbacksense/plugin/webhook"
	"github.com/hrygo/feedbacksense/store"
)

const (
	// DefaultQueueSize is the recorder backlog used when none is configured.
	DefaultQueueSize = 256

	sinkTimeout = 5 * time.Second
)

// Sink receives every recorded analysis.
type Sink struct {
	Name   string
	Record func(ctx context.Context, source string, analysis *feedback.Analysis) error
}

// StoreSink persists analyses to the database.
func StoreSink(s *store.Store) Sink {
	return Sink{
		Name: "store",
		Record: func(ctx context.Context, source string, analysis *feedback.Analysis) error {
			_, err := s.CreateFeedbackAnalysis(ctx, &store.FeedbackAnalysis{Analysis: *analysis, Source: source})
			return err
		},
	}
}

// KafkaSink publishes analyses as events.
func KafkaSink(p *kafka.Publisher) Sink {
	return Sink{Name: "kafka", Record: p.Publish}
}

// WebhookSink notifies the webhook of the analysis route.
func WebhookSink(n *webhook.RouteNotifier) Sink {
	return Sink{Name: "webhook", Record: n.Notify}
}

type record struct {
	source   string
	analysis *feedback.Analysis
}

// lane is the backlog of a single sink.
type lane struct {
	sink  Sink
	queue chan record
}

// Recorder hands analyses to its sinks in the background so that a slow or
// failing sink never affects a request. Every sink has its own queue and
// worker, so a slow sink only delays itself.
type Recorder struct {
	lanes   []*lane
	wg      sync.WaitGroup
	logger  *slog.Logger
	metrics *metrics.PrometheusExporter
	stopCh  chan struct{}
	once    sync.Once
}

// NewRecorder creates a recorder and starts one worker per sink.
// Metrics may be nil.
func NewRecorder(queueSize int, logger *slog.Logger, m *metrics.PrometheusExporter, sinks ...Sink) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	r := &Recorder{
		logger:  logger,
		metrics: m,
		stopCh:  make(chan struct{}),
	}
	for _, sink := range sinks {
		l := &lane{sink: sink, queue: make(chan record, queueSize)}
		r.lanes = append(r.lanes, l)
		r.wg.Add(1)
		go r.processQueue(l)
	}
	return r
}

// Enqueue queues an analysis for every sink.
// Returns false if the recorder is closed or any sink's queue is full.
func (r *Recorder) Enqueue(analysis *feedback.Analysis, source string) bool {
	select {
	case <-r.stopCh:
		return false
	default:
	}

	accepted := true
	for _, l := range r.lanes {
		select {
		case l.queue <- record{source: source, analysis: analysis}:
		default:
			accepted = false
			r.logger.Warn("Recorder: queue full, dropping analysis",
				"sink", l.sink.Name,
				"category", analysis.Category,
				"queue_size", len(l.queue))
			if r.metrics != nil {
				r.metrics.RecordRecorderError("queue")
			}
		}
	}
	r.reportQueueSize()
	return accepted
}

func (r *Recorder) processQueue(l *lane) {
	defer r.wg.Done()

	for {
		select {
		case rec := <-l.queue:
			r.record(l.sink, rec)
		case <-r.stopCh:
			r.drainQueue(l)
			return
		}
	}
}

func (r *Recorder) drainQueue(l *lane) {
	r.logger.Debug("Recorder: draining queue", "sink", l.sink.Name, "remaining", len(l.queue))
	for {
		select {
		case rec := <-l.queue:
			r.record(l.sink, rec)
		default:
			return
		}
	}
}

// record sends one analysis to a sink. Sink errors are logged and counted.
func (r *Recorder) record(sink Sink, rec record) {
	defer r.reportQueueSize()

	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()

	if err := sink.Record(ctx, rec.source, rec.analysis); err != nil {
		r.logger.Error("Recorder: sink failed",
			"sink", sink.Name,
			"category", rec.analysis.Category,
			"error", err)
		if r.metrics != nil {
			r.metrics.RecordRecorderError(sink.Name)
		}
	}
}

func (r *Recorder) reportQueueSize() {
	if r.metrics != nil {
		r.metrics.SetRecorderQueueSize(r.QueueSize())
	}
}

// Close waits for the queue to drain and shuts down the recorder.
func (r *Recorder) Close(timeout time.Duration) error {
	r.once.Do(func() {
		close(r.stopCh)
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Recorder: shutdown complete")
		return nil
	case <-time.After(timeout):
		r.logger.Warn("Recorder: shutdown timeout", "remaining", r.QueueSize())
		return context.DeadlineExceeded
	}
}

// QueueSize returns the largest backlog among the sinks.
func (r *Recorder) QueueSize() int {
	size := 0
	for _, l := range r.lanes {
		size = max(size, len(l.queue))
	}
	return size
}

// Sinks returns the names of the configured sinks.
func (r *Recorder) Sinks() []string {
	names := make([]string, 0, len(r.lanes))
	for _, l := range r.lanes {
		names = append(names, l.sink.Name)
	}
	return names
}
