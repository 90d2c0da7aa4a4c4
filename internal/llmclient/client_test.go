package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/glimpsehq/glimpse/api/schemas"
	"github.com/glimpsehq/glimpse/internal/config"
)

// newChatServer returns a test server replying with the given content for
// every chat-completions call.
func newChatServer(t *testing.T, content string, hook func(r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hook != nil {
			hook(r)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 11, "completion_tokens": 7, "total_tokens": 18},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := config.NewDefaultConfig().Model
	cfg.BaseURL = baseURL
	cfg.APIKey = "test-key"
	cfg.APITimeout = 5 * time.Second
	client, err := NewClient(cfg, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	cfg := config.NewDefaultConfig().Model
	cfg.BaseURL = ""
	_, err := NewClient(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestComplete_Success(t *testing.T) {
	var gotAuth string
	srv := newChatServer(t, `{"pass": true}`, func(r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/chat/completions", r.URL.Path)
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.Complete(context.Background(), CompletionRequest{UserPrompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, `{"pass": true}`, resp.Content)
	assert.Equal(t, schemas.Usage{PromptTokens: 11, CompletionTokens: 7, TotalTokens: 18}, resp.Usage)
	assert.Equal(t, "Bearer test-key", gotAuth)
}

func TestComplete_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "ok"}}},
			"usage":   map[string]int{},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.Complete(context.Background(), CompletionRequest{UserPrompt: "retry me"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestComplete_PermanentOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Complete(context.Background(), CompletionRequest{UserPrompt: "denied"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, int32(1), calls.Load(), "4xx responses must not be retried")
}

// The request-scoped profile must override the statically configured model
// and credentials without mutating the client.
func TestComplete_ProfileOverridesTarget(t *testing.T) {
	var gotModel, gotAuth string
	altSrv := newChatServer(t, "alt reply", func(r *http.Request) {
		var payload struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		gotModel = payload.Model
		gotAuth = r.Header.Get("Authorization")
	})
	defer altSrv.Close()

	client := newTestClient(t, "http://unreachable.invalid")
	resp, err := client.Complete(context.Background(), CompletionRequest{
		UserPrompt: "route me",
		Profile: schemas.ModelProfile{
			Model:   "qwen-vl-max",
			BaseURL: altSrv.URL,
			APIKey:  "alt-key",
			VLMode:  "qwen-vl",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "alt reply", resp.Content)
	assert.Equal(t, "qwen-vl-max", gotModel)
	assert.Equal(t, "Bearer alt-key", gotAuth)
}

func TestComplete_AttachesScreenshotPart(t *testing.T) {
	var sawImage bool
	srv := newChatServer(t, "seen", func(r *http.Request) {
		var payload struct {
			Messages []struct {
				Content []struct {
					Type string `json:"type"`
				} `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		for _, m := range payload.Messages {
			for _, part := range m.Content {
				if part.Type == "image_url" {
					sawImage = true
				}
			}
		}
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Complete(context.Background(), CompletionRequest{
		UserPrompt:    "look at this",
		ScreenshotPNG: []byte{0x89, 0x50, 0x4e, 0x47},
	})
	require.NoError(t, err)
	assert.True(t, sawImage)
}
