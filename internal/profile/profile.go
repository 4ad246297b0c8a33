package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// AnalysisMode selects how feedback is analyzed.
type AnalysisMode string

const (
	// AnalysisModeDemo uses the deterministic keyword classifier.
	AnalysisModeDemo AnalysisMode = "demo"
	// AnalysisModePipeline uses the LLM pipeline with fallback.
	AnalysisModePipeline AnalysisMode = "pipeline"
)

// Supported database drivers. An empty driver disables persistence.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Profile is configuration to start main server.
type Profile struct {
	// Unified LLM configuration (OpenAI-compatible protocol)
	LLMProvider string // zai, deepseek, openai, siliconflow, dashscope, openrouter, ollama
	LLMAPIKey   string
	LLMBaseURL  string // optional, has default per provider
	LLMModel    string
	LLMTimeout  int // seconds

	// Pipeline configuration
	PipelineRPS   float64 // LLM calls per second, 0 disables pacing
	PipelineBurst int
	PromptsFile   string // optional YAML override of the embedded prompts

	// Cache configuration
	RedisURL  string
	CacheTTL  time.Duration
	CacheSize int

	// Event publishing
	KafkaBrokers  []string
	KafkaTopic    string
	RouteWebhooks map[string]string // route name -> URL

	// Server configuration
	Mode         string // dev, prod
	AnalysisMode AnalysisMode
	Addr         string
	Port         int
	Data         string
	Driver       string
	DSN          string
	LogLevel     string
	LogFormat    string
	Version      string
}

// Default models per provider, used when no model is configured.
var llmProviderDefaults = map[string]string{
	"zai":         "glm-4.7",
	"deepseek":    "deepseek-chat",
	"openai":      "gpt-4o-mini",
	"siliconflow": "Qwen/Qwen2.5-72B-Instruct",
	"dashscope":   "qwen-max-latest",
	"openrouter":  "deepseek/deepseek-chat",
	"ollama":      "llama3.1",
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsPipeline reports whether feedback is analyzed by the LLM pipeline.
func (p *Profile) IsPipeline() bool {
	return p.AnalysisMode == AnalysisModePipeline
}

// IsLLMConfigured reports whether the pipeline has an LLM to talk to.
// Ollama runs locally and needs no key.
func (p *Profile) IsLLMConfigured() bool {
	return p.LLMAPIKey != "" || p.LLMProvider == "ollama"
}

// HasStore reports whether analyses are persisted.
func (p *Profile) HasStore() bool {
	return p.Driver != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvOrDefaultDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
// Values already set by flags are kept where a legacy variable would
// otherwise override them.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("FEEDBACKSENSE_LLM_PROVIDER", "openai")
	p.LLMAPIKey = getEnvOrDefault("FEEDBACKSENSE_LLM_API_KEY", os.Getenv("OPENAI_API_KEY"))
	p.LLMBaseURL = getEnvOrDefault("FEEDBACKSENSE_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("FEEDBACKSENSE_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("FEEDBACKSENSE_LLM_TIMEOUT_SECONDS", 60)

	p.PipelineRPS = getEnvOrDefaultFloat("FEEDBACKSENSE_PIPELINE_RPS", 0)
	p.PipelineBurst = getEnvOrDefaultInt("FEEDBACKSENSE_PIPELINE_BURST", 4)
	p.PromptsFile = getEnvOrDefault("FEEDBACKSENSE_PROMPTS_FILE", "")

	p.RedisURL = getEnvOrDefault("FEEDBACKSENSE_REDIS_URL", os.Getenv("REDIS_URL"))
	p.CacheTTL = getEnvOrDefaultDuration("FEEDBACKSENSE_CACHE_TTL", time.Hour)
	p.CacheSize = getEnvOrDefaultInt("FEEDBACKSENSE_CACHE_SIZE", 1000)

	p.KafkaBrokers = splitList(os.Getenv("FEEDBACKSENSE_KAFKA_BROKERS"))
	p.KafkaTopic = getEnvOrDefault("FEEDBACKSENSE_KAFKA_TOPIC", "feedback.analyzed")
	p.RouteWebhooks = parseRouteWebhooks(os.Getenv("FEEDBACKSENSE_ROUTE_WEBHOOKS"))

	// Legacy variable names, kept for existing deployments.
	if p.AnalysisMode == "" {
		if demo := os.Getenv("DEMO_MODE"); demo != "" {
			if strings.EqualFold(demo, "true") {
				p.AnalysisMode = AnalysisModeDemo
			} else {
				p.AnalysisMode = AnalysisModePipeline
			}
		}
	}
	if p.DSN == "" {
		if uri := os.Getenv("DB_URI"); uri != "" {
			p.DSN = uri
			if p.Driver == "" {
				p.Driver = DriverPostgres
			}
		}
	}
}

// splitList splits a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseRouteWebhooks parses "route=url;route=url".
func parseRouteWebhooks(s string) map[string]string {
	hooks := map[string]string{}
	for _, pair := range strings.Split(s, ";") {
		route, url, ok := strings.Cut(pair, "=")
		route, url = strings.TrimSpace(route), strings.TrimSpace(url)
		if !ok || route == "" || url == "" {
			continue
		}
		hooks[route] = url
	}
	return hooks
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes the profile and reports invalid settings.
func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}
	if p.Port <= 0 {
		p.Port = 8000
	}

	switch AnalysisMode(strings.ToLower(string(p.AnalysisMode))) {
	case "", AnalysisModeDemo:
		p.AnalysisMode = AnalysisModeDemo
	case AnalysisModePipeline:
		p.AnalysisMode = AnalysisModePipeline
	default:
		return errors.Errorf("invalid analysis mode %q, expected demo or pipeline", p.AnalysisMode)
	}

	if p.LLMModel == "" {
		p.LLMModel = llmProviderDefaults[p.LLMProvider]
	}
	if p.IsPipeline() && !p.IsLLMConfigured() {
		slog.Warn("pipeline mode requested but no LLM API key is configured, using demo mode",
			"provider", p.LLMProvider)
		p.AnalysisMode = AnalysisModeDemo
	}

	if p.CacheTTL <= 0 {
		p.CacheTTL = time.Hour
	}

	switch p.Driver {
	case "":
	case DriverPostgres:
		if p.DSN == "" {
			return errors.New("dsn required for postgres driver")
		}
	case DriverSQLite:
		if p.DSN == "" {
			data := p.Data
			if data == "" {
				data = "."
			}
			dataDir, err := checkDataDir(data)
			if err != nil {
				slog.Error("failed to check data dir", slog.String("data", data), slog.String("error", err.Error()))
				return err
			}
			p.Data = dataDir
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("feedbacksense_%s.db", p.Mode))
		}
	default:
		return errors.Errorf("unsupported database driver %q", p.Driver)
	}

	return nil
}
