package goopenai_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineyio/summarist"
	"github.com/ineyio/summarist/provider/goopenai"
)

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "https://api.openai.com/v1", goopenai.BaseURL("https://api.openai.com/v1/chat/completions"))
	assert.Equal(t, "https://api.deepseek.com", goopenai.BaseURL("https://api.deepseek.com/chat/completions/"))
	assert.Equal(t, "http://localhost:11434/v1", goopenai.BaseURL("http://localhost:11434/v1"))
}

func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func request(srv *httptest.Server) summarist.ProviderRequest {
	return summarist.ProviderRequest{
		Endpoint:  srv.URL + "/v1/chat/completions",
		APIKey:    "sk-test",
		Model:     "gpt-test",
		Messages:  []summarist.Message{{Role: "user", Content: "hello"}},
		MaxTokens: summarist.IntPtr(64),
	}
}

func TestChatCompletion(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"id":"r1","model":"gpt-test","choices":[{"index":0,"message":{"role":"assistant","content":"Hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`)

	resp, err := goopenai.New(goopenai.WithHTTPClient(srv.Client())).ChatCompletion(context.Background(), request(srv))
	require.NoError(t, err)
	assert.Equal(t, "Hi", resp.Content)
	assert.Equal(t, int64(4), resp.Usage.TotalTokens)
}

func TestChatCompletion_APIError(t *testing.T) {
	srv := newServer(t, http.StatusTooManyRequests, `{"error":{"message":"rate limited","type":"requests"}}`)

	_, err := goopenai.New().ChatCompletion(context.Background(), request(srv))
	require.Error(t, err)
	assert.ErrorIs(t, err, summarist.ErrProtocol)
	assert.Equal(t, 429, summarist.StatusCode(err))
	assert.Contains(t, err.Error(), "rate limited")
}

func TestChatCompletion_NoChoices(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"id":"r1","choices":[]}`)

	_, err := goopenai.New().ChatCompletion(context.Background(), request(srv))
	assert.ErrorIs(t, err, summarist.ErrMalformedResponse)
}

func TestChatCompletion_MessageWithoutContent(t *testing.T) {
	for name, body := range map[string]string{
		"missing": `{"id":"r1","choices":[{"index":0,"message":{"role":"assistant"}}]}`,
		"null":    `{"id":"r1","choices":[{"index":0,"message":{"role":"assistant","content":null}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := newServer(t, http.StatusOK, body)

			_, err := goopenai.New().ChatCompletion(context.Background(), request(srv))
			assert.ErrorIs(t, err, summarist.ErrMalformedResponse)
		})
	}
}

func TestChatCompletion_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	req := request(srv)
	srv.Close()

	_, err := goopenai.New().ChatCompletion(context.Background(), req)
	assert.ErrorIs(t, err, summarist.ErrTransport)
}
