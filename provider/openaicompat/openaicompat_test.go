package openaicompat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineyio/summarist"
	"github.com/ineyio/summarist/provider/openaicompat"
)

func testRequest(endpoint string) summarist.ProviderRequest {
	return summarist.ProviderRequest{
		Endpoint:    endpoint,
		APIKey:      "sk-test",
		Model:       "gpt-test",
		Messages:    []summarist.Message{{Role: "system", Content: "be brief"}, {Role: "user", Content: "hello"}},
		Temperature: summarist.Float64Ptr(0.7),
		MaxTokens:   summarist.IntPtr(4096),
	}
}

func TestChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body["model"])
		assert.Equal(t, 0.7, body["temperature"])
		assert.Equal(t, float64(4096), body["max_tokens"])
		assert.Len(t, body["messages"], 2)

		w.Write([]byte(`{"id":"r1","model":"gpt-test","choices":[{"index":0,"message":{"role":"assistant","content":"Hi there"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`))
	}))
	defer srv.Close()

	resp, err := openaicompat.New().ChatCompletion(context.Background(), testRequest(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "Hi there", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, summarist.Usage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7}, resp.Usage)
}

func TestChatCompletion_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
		code   int
	}{
		{"server error", 500, "boom", summarist.ErrProtocol, 500},
		{"unauthorized", 401, `{"error":"bad key"}`, summarist.ErrProtocol, 401},
		{"not json", 200, "<html>", summarist.ErrMalformedResponse, 0},
		{"no choices", 200, `{"choices":[]}`, summarist.ErrMalformedResponse, 0},
		{"choice without message", 200, `{"choices":[{"index":0}]}`, summarist.ErrMalformedResponse, 0},
		{"message without content", 200, `{"choices":[{"message":{"role":"assistant"}}]}`, summarist.ErrMalformedResponse, 0},
		{"null content", 200, `{"choices":[{"message":{"role":"assistant","content":null}}]}`, summarist.ErrMalformedResponse, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := openaicompat.New().ChatCompletion(context.Background(), testRequest(srv.URL))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.code, summarist.StatusCode(err))
		})
	}
}

func TestChatCompletion_HTTPErrorCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("maintenance"))
	}))
	defer srv.Close()

	_, err := openaicompat.New().ChatCompletion(context.Background(), testRequest(srv.URL))
	assert.EqualError(t, err, "API error 503: maintenance")
}

func TestChatCompletion_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := openaicompat.New().ChatCompletion(context.Background(), testRequest(url))
	require.Error(t, err)
	assert.ErrorIs(t, err, summarist.ErrTransport)
}

func TestName(t *testing.T) {
	assert.Equal(t, summarist.AdapterOpenAICompat, openaicompat.New().Name())
}
