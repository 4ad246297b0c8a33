package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService_UnsupportedProvider(t *testing.T) {
	_, err := NewService(&Config{Provider: "unsupported", Model: "test-model"})
	assert.Error(t, err)
}

func TestNewService_GenericProviderWithBaseURL(t *testing.T) {
	svc, err := NewService(&Config{Provider: "custom", Model: "m", BaseURL: "http://localhost:9999/v1"})
	require.NoError(t, err)
	assert.Equal(t, "m", svc.Model())
}

func TestNewService_RequiresModel(t *testing.T) {
	_, err := NewService(&Config{Provider: "openai", APIKey: "k"})
	assert.Error(t, err)

	_, err = NewService(nil)
	assert.Error(t, err)
}

func TestNewService_KnownProviders(t *testing.T) {
	for provider := range providerBaseURLs {
		t.Run(provider, func(t *testing.T) {
			svc, err := NewService(&Config{Provider: provider, Model: "m", APIKey: "k"})
			require.NoError(t, err)
			require.NotNil(t, svc)
		})
	}
}

func newFakeCompletionServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
		})
	}))
}

func TestService_Chat(t *testing.T) {
	srv := newFakeCompletionServer(t, "Praise", http.StatusOK)
	defer srv.Close()

	svc, err := NewService(&Config{Provider: "openai", Model: "test-model", APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	content, stats, err := svc.Chat(context.Background(), []Message{
		SystemPrompt("classify"),
		UserMessage("I love it"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Praise", content)
	require.NotNil(t, stats)
	assert.Equal(t, 12, stats.PromptTokens)
	assert.Equal(t, 3, stats.CompletionTokens)
	assert.Equal(t, 15, stats.TotalTokens)
}

func TestService_ChatError(t *testing.T) {
	srv := newFakeCompletionServer(t, "", http.StatusTooManyRequests)
	defer srv.Close()

	svc, err := NewService(&Config{Provider: "openai", Model: "test-model", APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, _, err = svc.Chat(context.Background(), []Message{UserMessage("hi")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM chat failed")
}

func TestConvertMessages(t *testing.T) {
	got := convertMessages([]Message{
		{Role: "system", Content: "a"},
		{Role: "assistant", Content: "b"},
		{Role: "user", Content: "c"},
		{Role: "other", Content: "d"},
	})
	require.Len(t, got, 4)
	assert.Equal(t, "system", got[0].Role)
	assert.Equal(t, "assistant", got[1].Role)
	assert.Equal(t, "user", got[2].Role)
	assert.Equal(t, "user", got[3].Role)
}
