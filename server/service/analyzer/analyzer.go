// Package analyzer composes the classifier, the agent pipeline, the cache and
// the recorder into the analysis service used by the HTTP API.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/feedbacksense/ai/cache"
	"github.com/hrygo/feedbacksense/ai/feedback"
	"github.com/hrygo/feedbacksense/ai/metrics"
	"github.com/hrygo/feedbacksense/ai/observability/logging"
	"github.com/hrygo/feedbacksense/internal/profile"
	"github.com/hrygo/feedbacksense/store"
)

// ValidationError reports feedback rejected before analysis.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks the feedback text. Length is counted in characters.
func Validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Message: "feedback must not be empty"}
	}
	if n := feedback.CharCount(text); n > feedback.MaxFeedbackLength {
		return &ValidationError{
			Message: fmt.Sprintf("feedback exceeds %d characters (got %d)", feedback.MaxFeedbackLength, n),
		}
	}
	return nil
}

// PipelineRunner runs the LLM agent pipeline over one piece of feedback.
type PipelineRunner interface {
	Analyze(ctx context.Context, text string) (*feedback.Analysis, error)
}

// Result is one answered analysis request.
type Result struct {
	Analysis *feedback.Analysis
	// Source is one of the store.Source* values.
	Source   string
	Fallback bool
	Note     string
}

// Analyzer answers analysis requests in demo or pipeline mode.
// Cache, metrics and recorder are optional.
type Analyzer struct {
	mode     profile.AnalysisMode
	pipeline PipelineRunner
	cache    cache.AnalysisCache
	metrics  *metrics.PrometheusExporter
	recorder *Recorder
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithCache enables result caching in pipeline mode.
func WithCache(c cache.AnalysisCache) Option {
	return func(a *Analyzer) { a.cache = c }
}

// WithMetrics records analysis metrics.
func WithMetrics(m *metrics.PrometheusExporter) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithRecorder hands every result to the recorder.
func WithRecorder(r *Recorder) Option {
	return func(a *Analyzer) { a.recorder = r }
}

// New creates an analyzer. Pipeline mode requires a pipeline runner.
func New(mode profile.AnalysisMode, pipeline PipelineRunner, opts ...Option) (*Analyzer, error) {
	if mode == profile.AnalysisModePipeline && pipeline == nil {
		return nil, fmt.Errorf("pipeline mode requires a pipeline")
	}
	if mode != profile.AnalysisModePipeline && mode != profile.AnalysisModeDemo {
		return nil, fmt.Errorf("unknown analysis mode %q", mode)
	}
	a := &Analyzer{mode: mode, pipeline: pipeline}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Mode returns the analysis mode.
func (a *Analyzer) Mode() profile.AnalysisMode {
	return a.mode
}

// Analyze validates and analyzes one piece of feedback. The only errors
// returned are validation errors and context errors.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*Result, error) {
	if err := Validate(text); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	var result *Result
	if a.mode == profile.AnalysisModePipeline {
		result = a.analyzeWithPipeline(ctx, text)
	} else {
		result = &Result{Analysis: feedback.Classify(text), Source: store.SourceClassifier}
	}
	latency := time.Since(start)

	if a.metrics != nil {
		a.metrics.RecordAnalysis(string(a.mode), string(result.Analysis.Category), result.Source, latency)
	}
	logging.FromContext(ctx).Debug("feedback analyzed",
		"mode", a.mode,
		"source", result.Source,
		"category", result.Analysis.Category,
		"duration_ms", latency.Milliseconds())

	if a.recorder != nil {
		a.recorder.Enqueue(result.Analysis.Clone(), result.Source)
	}
	return result, nil
}

func (a *Analyzer) analyzeWithPipeline(ctx context.Context, text string) *Result {
	logger := logging.FromContext(ctx)
	key := cache.Key(text)

	if a.cache != nil {
		cached, err := a.cache.Get(ctx, key)
		switch {
		case err != nil:
			logger.Warn("analysis cache lookup failed", "backend", a.cache.Backend(), "error", err)
			a.recordCache("error")
		case cached != nil:
			a.recordCache("hit")
			// The cache holds results for identical text only.
			cached.Feedback = text
			return &Result{Analysis: cached, Source: store.SourceCache}
		default:
			a.recordCache("miss")
		}
	}

	analysis, err := a.pipeline.Analyze(ctx, text)
	if err != nil {
		logger.Warn("analysis pipeline failed, using fallback", "error", err)
		if a.metrics != nil {
			a.metrics.RecordFallback()
		}
		return &Result{
			Analysis: feedback.Fallback(text),
			Source:   store.SourceFallback,
			Fallback: true,
			Note:     feedback.FallbackNote,
		}
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, key, analysis); err != nil {
			logger.Warn("failed to cache analysis", "backend", a.cache.Backend(), "error", err)
		}
	}
	return &Result{Analysis: analysis, Source: store.SourcePipeline}
}

func (a *Analyzer) recordCache(result string) {
	if a.metrics != nil {
		a.metrics.RecordCacheRequest(a.cache.Backend(), result)
	}
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
