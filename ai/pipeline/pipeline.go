package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hrygo/feedbacksense/ai/core/llm"
	"github.com/hrygo/feedbacksense/ai/feedback"
)

// Node names of the default graph.
const (
	NodeCategorize      = "categorize"
	NodeExtractEntities = "extract_entities"
	NodeSummarize       = "summarize"
	NodeSentiment       = "sentiment"
	NodePriority        = "priority"
	NodeRoute           = "route"
	NodeActionItems     = "action_items"
	NodeTrendAnalysis   = "trend_analysis"
)

const maxActionItems = 5

// Observer receives pipeline telemetry.
type Observer interface {
	ObserveNode(node string, duration time.Duration, err error)
	ObserveLLMCall(model string, stats *llm.LLMCallStats)
}

// Pipeline analyzes feedback by running the default graph against an LLM.
type Pipeline struct {
	llm      llm.Service
	prompts  *Prompts
	limiter  *rate.Limiter
	observer Observer
	graph    *Graph
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPrompts overrides the embedded prompts.
func WithPrompts(p *Prompts) Option {
	return func(pl *Pipeline) { pl.prompts = p }
}

// WithRateLimit paces LLM calls. A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(pl *Pipeline) {
		if rps <= 0 {
			pl.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst <= 0 {
			burst = 1
		}
		pl.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithObserver installs a telemetry observer.
func WithObserver(o Observer) Option {
	return func(pl *Pipeline) { pl.observer = o }
}

// New creates a pipeline backed by the given LLM service.
func New(svc llm.Service, opts ...Option) (*Pipeline, error) {
	if svc == nil {
		return nil, fmt.Errorf("llm service is required")
	}

	p := &Pipeline{
		llm:     svc,
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.prompts == nil {
		prompts, err := DefaultPrompts()
		if err != nil {
			return nil, err
		}
		p.prompts = prompts
	}
	if err := p.prompts.Validate(NodeCategorize, NodeExtractEntities, NodeSummarize, NodeSentiment,
		NodePriority, NodeActionItems, NodeTrendAnalysis); err != nil {
		return nil, err
	}

	graph, err := NewGraph(
		Node{Name: NodeCategorize, Run: p.categorize},
		Node{Name: NodeExtractEntities, Run: p.extractEntities},
		Node{Name: NodeSummarize, Run: p.summarize},
		Node{Name: NodeSentiment, Run: p.sentiment},
		Node{Name: NodePriority, DependsOn: []string{NodeCategorize, NodeSentiment}, Run: p.priority},
		Node{Name: NodeRoute, DependsOn: []string{NodeCategorize}, Run: route},
		Node{Name: NodeActionItems, DependsOn: []string{NodeCategorize, NodeSummarize}, Run: p.actionItems},
		Node{Name: NodeTrendAnalysis, DependsOn: []string{NodeCategorize, NodeSentiment}, Run: p.trendAnalysis},
	)
	if err != nil {
		return nil, err
	}
	if p.observer != nil {
		graph.SetHook(p.observer.ObserveNode)
	}
	p.graph = graph

	return p, nil
}

// Invoke runs the graph and returns the final state.
func (p *Pipeline) Invoke(ctx context.Context, s State) (State, error) {
	return p.graph.Invoke(ctx, s)
}

// Analyze runs the graph for a piece of feedback and converts the result.
func (p *Pipeline) Analyze(ctx context.Context, text string) (*feedback.Analysis, error) {
	start := time.Now()
	final, err := p.Invoke(ctx, State{Feedback: text})
	if err != nil {
		return nil, err
	}
	analysis, err := final.ToAnalysis()
	if err != nil {
		return nil, fmt.Errorf("pipeline produced invalid state: %w", err)
	}
	slog.Debug("pipeline: analysis complete",
		"category", analysis.Category,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return analysis, nil
}

// Graph returns the underlying graph.
func (p *Pipeline) Graph() *Graph {
	return p.graph
}

func (p *Pipeline) ask(ctx context.Context, node string, s State) (string, error) {
	prompt, err := p.prompts.Render(node, s)
	if err != nil {
		return "", err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	messages := []llm.Message{llm.UserMessage(prompt)}
	if p.prompts.System != "" {
		messages = append([]llm.Message{llm.SystemPrompt(p.prompts.System)}, messages...)
	}
	content, stats, err := p.llm.Chat(ctx, messages)
	if err != nil {
		return "", err
	}
	if p.observer != nil && stats != nil {
		p.observer.ObserveLLMCall(p.llm.Model(), stats)
	}
	return strings.TrimSpace(content), nil
}

func (p *Pipeline) categorize(ctx context.Context, s State) (Update, error) {
	out, err := p.ask(ctx, NodeCategorize, s)
	if err != nil {
		return nil, err
	}
	category, err := parseEnum(out, feedback.CategoryComplaint, feedback.CategoryPraise,
		feedback.CategorySuggestion, feedback.CategoryQuery)
	if err != nil {
		return nil, err
	}
	return func(st *State) { st.Category = string(category) }, nil
}

func (p *Pipeline) extractEntities(ctx context.Context, s State) (Update, error) {
	out, err := p.ask(ctx, NodeExtractEntities, s)
	if err != nil {
		return nil, err
	}
	items, err := parseStringList(out)
	if err != nil {
		return nil, err
	}
	entities := dedupeLower(items)
	if len(entities) == 0 {
		entities = []string{feedback.GeneralFeedbackEntity}
	}
	return func(st *State) { st.Entities = entities }, nil
}

func (p *Pipeline) summarize(ctx context.Context, s State) (Update, error) {
	out, err := p.ask(ctx, NodeSummarize, s)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, fmt.Errorf("empty summary")
	}
	return func(st *State) { st.Summary = out }, nil
}

func (p *Pipeline) sentiment(ctx context.Context, s State) (Update, error) {
	out, err := p.ask(ctx, NodeSentiment, s)
	if err != nil {
		return nil, err
	}
	sentiment, err := parseEnum(out, feedback.SentimentNegative, feedback.SentimentPositive, feedback.SentimentNeutral)
	if err != nil {
		return nil, err
	}
	return func(st *State) { st.Sentiment = string(sentiment) }, nil
}

func (p *Pipeline) priority(ctx context.Context, s State) (Update, error) {
	out, err := p.ask(ctx, NodePriority, s)
	if err != nil {
		return nil, err
	}
	priority, err := parseEnum(out, feedback.PriorityHigh, feedback.PriorityMedium, feedback.PriorityLow)
	if err != nil {
		return nil, err
	}
	return func(st *State) { st.Priority = string(priority) }, nil
}

func route(_ context.Context, s State) (Update, error) {
	r := feedback.RouteFor(feedback.Category(s.Category))
	return func(st *State) { st.Route = r }, nil
}

func (p *Pipeline) actionItems(ctx context.Context, s State) (Update, error) {
	out, err := p.ask(ctx, NodeActionItems, s)
	if err != nil {
		return nil, err
	}
	items, err := parseStringList(out)
	if err != nil {
		return nil, err
	}
	var cleaned []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			cleaned = append(cleaned, item)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("no action items")
	}
	if len(cleaned) > maxActionItems {
		cleaned = cleaned[:maxActionItems]
	}
	return func(st *State) { st.ActionItems = cleaned }, nil
}

func (p *Pipeline) trendAnalysis(ctx context.Context, s State) (Update, error) {
	out, err := p.ask(ctx, NodeTrendAnalysis, s)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, fmt.Errorf("empty trend analysis")
	}
	return func(st *State) { st.TrendAnalysis = out }, nil
}

// parseEnum matches a model reply against the allowed values, ignoring case
// and trailing punctuation.
func parseEnum[T ~string](out string, allowed ...T) (T, error) {
	cleaned := strings.Trim(stripCodeFence(out), " \t\r\n\"'`.*")
	for _, v := range allowed {
		if strings.EqualFold(cleaned, string(v)) {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("unexpected value %q", out)
}

// parseStringList decodes a JSON array of strings from a model reply.
func parseStringList(out string) ([]string, error) {
	content := stripCodeFence(out)
	if start, end := strings.Index(content, "["), strings.LastIndex(content, "]"); start >= 0 && end > start {
		content = content[start : end+1]
	}
	var items []string
	if err := json.Unmarshal([]byte(content), &items); err != nil {
		return nil, fmt.Errorf("expected JSON string array: %w", err)
	}
	return items, nil
}

func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func dedupeLower(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
