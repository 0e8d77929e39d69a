
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the wire body the service receives. Temperature is a
// pointer so an explicit 0 can be told apart from an omitted field.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature *float64      `json:"temperature"`
}

func chatServer(t *testing.T, got *chatRequest, answer string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":` + answer + `}}]}`))
	}))
}

func TestNewWithoutKey(t *testing.T) {
	c, err := New(Config{Model: "gpt-4o"})
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New(Config{APIKey: "   "})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewSelectsProvider(t *testing.T) {
	c, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = New(Config{APIKey: "k", Provider: "Anthropic"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, c)

	_, err = New(Config{APIKey: "k", Provider: "parrot"})
	assert.Error(t, err)
}

func TestOpenAIDefaults(t *testing.T) {
	c := NewOpenAI(Config{APIKey: "k"})
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultModel, c.model)
	assert.Equal(t, DefaultMaxTokens, c.maxTokens)
	assert.Equal(t, DefaultTimeout, c.timeout)
	assert.Zero(t, c.temperature)

	c = NewOpenAI(Config{APIKey: "k", BaseURL: "https://llm.internal/v1/", Temperature: 1.2})
	assert.Equal(t, "https://llm.internal/v1", c.baseURL)
	assert.InDelta(t, 1.2, c.temperature, 1e-9)
}

func TestOpenAIComplete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"  KitKat is a wafer bar.  "}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/", Temperature: DefaultTemperature, Timeout: 5 * time.Second})
	out, err := c.Complete(context.Background(), Prompt{System: "be nice", User: "what is kitkat?"})
	require.NoError(t, err)
	assert.Equal(t, "KitKat is a wafer bar.", out)

	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, 500, got.MaxTokens)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.7, *got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, chatMessage{Role: "system", Content: "be nice"}, got.Messages[0])
	assert.Equal(t, chatMessage{Role: "user", Content: "what is kitkat?"}, got.Messages[1])
}

func TestOpenAIPromptOverrides(t *testing.T) {
	var got chatRequest
	srv := chatServer(t, &got, `"ok"`)
	defer srv.Close()

	c := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL, Model: "gpt-4o-mini", Temperature: DefaultTemperature})
	_, err := c.Complete(context.Background(), Prompt{User: "hi", MaxTokens: 50, Temperature: Temperature(0.2)})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 50, got.MaxTokens)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.2, *got.Temperature, 1e-9)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestOpenAISendsZeroTemperature(t *testing.T) {
	tests := []struct {
		name   string
		cfg    float64
		prompt *float64
	}{
		{"configured zero", 0, nil},
		{"prompt zero over configured", 0.9, Temperature(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got chatRequest
			srv := chatServer(t, &got, `"ok"`)
			defer srv.Close()

			c := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL, Temperature: tt.cfg})
			_, err := c.Complete(context.Background(), Prompt{User: "q", Temperature: tt.prompt})
			require.NoError(t, err)
			require.NotNil(t, got.Temperature)
			assert.Zero(t, *got.Temperature)
		})
	}
}

func TestOpenAIErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantAPI bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, true},
		{"server error", http.StatusInternalServerError, "oops", true},
		{"error payload", http.StatusOK, `{"error":{"message":"bad key"}}`, false},
		{"no choices", http.StatusOK, `{"choices":[]}`, false},
		{"garbage", http.StatusOK, `not json`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL}).Complete(context.Background(), Prompt{User: "q"})
			require.Error(t, err)
			var apiErr *APIError
			assert.Equal(t, tt.wantAPI, errors.As(err, &apiErr))
			if tt.wantAPI {
				assert.Equal(t, tt.status, apiErr.StatusCode)
				assert.Contains(t, apiErr.Error(), http.StatusText(tt.status))
			}
		})
	}
}

func TestOpenAIHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL}).Complete(ctx, Prompt{User: "q"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
