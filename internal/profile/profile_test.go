package profile

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"FEEDBACKSENSE_LLM_PROVIDER", "FEEDBACKSENSE_LLM_API_KEY", "FEEDBACKSENSE_LLM_BASE_URL",
	"FEEDBACKSENSE_LLM_MODEL", "FEEDBACKSENSE_LLM_TIMEOUT_SECONDS", "OPENAI_API_KEY",
	"FEEDBACKSENSE_PIPELINE_RPS", "FEEDBACKSENSE_PIPELINE_BURST", "FEEDBACKSENSE_PROMPTS_FILE",
	"FEEDBACKSENSE_REDIS_URL", "REDIS_URL", "FEEDBACKSENSE_CACHE_TTL", "FEEDBACKSENSE_CACHE_SIZE",
	"FEEDBACKSENSE_KAFKA_BROKERS", "FEEDBACKSENSE_KAFKA_TOPIC", "FEEDBACKSENSE_ROUTE_WEBHOOKS",
	"DEMO_MODE", "DB_URI",
}

// clearEnv blanks every variable read by FromEnv for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envVars {
		t.Setenv(key, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "openai", p.LLMProvider)
	assert.Empty(t, p.LLMAPIKey)
	assert.Equal(t, 60, p.LLMTimeout)
	assert.Equal(t, time.Hour, p.CacheTTL)
	assert.Equal(t, 1000, p.CacheSize)
	assert.Equal(t, "feedback.analyzed", p.KafkaTopic)
	assert.Empty(t, p.KafkaBrokers)
	assert.Empty(t, p.RouteWebhooks)
	assert.Empty(t, p.AnalysisMode)
	assert.Empty(t, p.DSN)
}

func TestFromEnv_Values(t *testing.T) {
	clearEnv(t)
	t.Setenv("FEEDBACKSENSE_LLM_PROVIDER", "deepseek")
	t.Setenv("FEEDBACKSENSE_LLM_API_KEY", "sk-test")
	t.Setenv("FEEDBACKSENSE_PIPELINE_RPS", "2.5")
	t.Setenv("FEEDBACKSENSE_CACHE_TTL", "10m")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("FEEDBACKSENSE_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("FEEDBACKSENSE_ROUTE_WEBHOOKS", "Customer Service Team=http://cs/hook; Product Development=http://pd/hook;bad")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "deepseek", p.LLMProvider)
	assert.Equal(t, "sk-test", p.LLMAPIKey)
	assert.Equal(t, 2.5, p.PipelineRPS)
	assert.Equal(t, 10*time.Minute, p.CacheTTL)
	assert.Equal(t, "redis://localhost:6379/0", p.RedisURL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, p.KafkaBrokers)
	assert.Equal(t, map[string]string{
		"Customer Service Team": "http://cs/hook",
		"Product Development":   "http://pd/hook",
	}, p.RouteWebhooks)
}

func TestFromEnv_LegacyVariables(t *testing.T) {
	tests := []struct {
		name       string
		demoMode   string
		preset     AnalysisMode
		wantMode   AnalysisMode
		dbURI      string
		wantDriver string
	}{
		{"demo true", "true", "", AnalysisModeDemo, "", ""},
		{"demo TRUE", "TRUE", "", AnalysisModeDemo, "", ""},
		{"demo false", "false", "", AnalysisModePipeline, "", ""},
		{"flag wins", "false", AnalysisModeDemo, AnalysisModeDemo, "", ""},
		{"db uri selects postgres", "", "", "", "postgres://u:p@db/feedback", DriverPostgres},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("DEMO_MODE", tt.demoMode)
			t.Setenv("DB_URI", tt.dbURI)

			p := &Profile{AnalysisMode: tt.preset}
			p.FromEnv()

			assert.Equal(t, tt.wantMode, p.AnalysisMode)
			assert.Equal(t, tt.wantDriver, p.Driver)
			assert.Equal(t, tt.dbURI, p.DSN)
		})
	}
}

func TestValidate_AnalysisMode(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    AnalysisMode
		wantErr bool
	}{
		{"default demo", Profile{}, AnalysisModeDemo, false},
		{"pipeline with key", Profile{AnalysisMode: "pipeline", LLMProvider: "openai", LLMAPIKey: "k"}, AnalysisModePipeline, false},
		{"pipeline case insensitive", Profile{AnalysisMode: "Pipeline", LLMProvider: "openai", LLMAPIKey: "k"}, AnalysisModePipeline, false},
		{"pipeline with ollama", Profile{AnalysisMode: "pipeline", LLMProvider: "ollama"}, AnalysisModePipeline, false},
		{"pipeline without key degrades", Profile{AnalysisMode: "pipeline", LLMProvider: "openai"}, AnalysisModeDemo, false},
		{"invalid", Profile{AnalysisMode: "magic"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.profile
			err := p.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.AnalysisMode)
		})
	}
}

func TestValidate_Defaults(t *testing.T) {
	p := &Profile{Mode: "staging", LLMProvider: "deepseek"}
	require.NoError(t, p.Validate())

	assert.Equal(t, "dev", p.Mode)
	assert.True(t, p.IsDev())
	assert.Equal(t, 8000, p.Port)
	assert.Equal(t, "deepseek-chat", p.LLMModel)
	assert.Equal(t, time.Hour, p.CacheTTL)
	assert.False(t, p.HasStore())
}

func TestValidate_Driver(t *testing.T) {
	t.Run("postgres requires dsn", func(t *testing.T) {
		p := &Profile{Driver: DriverPostgres}
		require.Error(t, p.Validate())
	})

	t.Run("sqlite derives dsn", func(t *testing.T) {
		dir := t.TempDir()
		p := &Profile{Driver: DriverSQLite, Data: dir, Mode: "prod"}
		require.NoError(t, p.Validate())
		assert.Equal(t, filepath.Join(dir, "feedbacksense_prod.db"), p.DSN)
		assert.True(t, p.HasStore())
	})

	t.Run("sqlite missing data dir", func(t *testing.T) {
		p := &Profile{Driver: DriverSQLite, Data: filepath.Join(t.TempDir(), "missing")}
		require.Error(t, p.Validate())
	})

	t.Run("unsupported driver", func(t *testing.T) {
		p := &Profile{Driver: "mysql", DSN: "x"}
		require.Error(t, p.Validate())
	})
}
