package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/lineage/internal/config"
)

// ---------------------------------------------------------------------------
// Ollama
// ---------------------------------------------------------------------------

func TestOllama_Send(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gemma3:4b", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "analyze this", req.Messages[0].Content)
		assert.Equal(t, DefaultOllamaOptions(), req.Options)

		_ = json.NewEncoder(w).Encode(chatResponse{
			Model:   req.Model,
			Message: chatMessage{Role: "assistant", Content: "## Report\n```mermaid\nA-->B\n```"},
			Done:    true,
		})
	}))
	defer ts.Close()

	c := NewOllama(ts.URL+"/", "gemma3:4b", DefaultOllamaOptions())
	got, err := c.Send(context.Background(), "analyze this")
	require.NoError(t, err)
	assert.Equal(t, "## Report\n```mermaid\nA-->B\n```", got)
}

func TestOllama_SendErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "http status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			},
			check: func(t *testing.T, err error) {
				var httpErr *HTTPError
				require.ErrorAs(t, err, &httpErr)
				assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
				assert.Equal(t, "model not found", httpErr.Body)
			},
		},
		{
			name: "empty content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"  "},"done":true}`))
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrEmptyResponse)
			},
		},
		{
			name: "error field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"error":"out of memory"}`))
			},
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "out of memory")
			},
		},
		{
			name: "bad json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "decode response")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			_, err := NewOllama(ts.URL, "m", DefaultOllamaOptions()).Send(context.Background(), "p")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestOllama_TimeoutAbortsCall(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	c := NewOllama(ts.URL, "m", DefaultOllamaOptions(), WithTimeout(50*time.Millisecond))
	_, err := c.Send(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, "timeout", classifyError(err))
}

func TestOllama_Ping(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer ts.Close()

	assert.NoError(t, NewOllama(ts.URL, "m", DefaultOllamaOptions()).Ping(context.Background()))
}

// ---------------------------------------------------------------------------
// Rate limiting
// ---------------------------------------------------------------------------

func TestRateLimit_Waits(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"message":{"content":"ok"}}`))
	}))
	defer ts.Close()

	c := NewOllama(ts.URL, "m", DefaultOllamaOptions(), WithRateLimit(20, 1))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Send(context.Background(), "p")
		require.NoError(t, err)
	}
	// The second and third calls each wait ~50ms for a token.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, int32(3), hits.Load())
}

func TestRateLimit_CanceledContext(t *testing.T) {
	c := NewOllama("http://127.0.0.1:1", "m", DefaultOllamaOptions(), WithRateLimit(0.001, 1))
	// Drain the single burst token.
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Send(ctx, "p")
	assert.ErrorContains(t, err, "rate limit")
}

// ---------------------------------------------------------------------------
// Factory
// ---------------------------------------------------------------------------

func TestWithTimeout_CopiesSharedClient(t *testing.T) {
	shared := &http.Client{}
	o := NewOllama("http://localhost:1", "m", DefaultOllamaOptions(), WithTimeout(time.Second), WithHTTPClient(shared))
	assert.Equal(t, time.Second, o.http.Timeout)
	assert.Zero(t, shared.Timeout)

	o = NewOllama("http://localhost:1", "m", DefaultOllamaOptions(), WithHTTPClient(http.DefaultClient), WithTimeout(time.Second))
	assert.Equal(t, time.Second, o.http.Timeout)
	assert.Zero(t, http.DefaultClient.Timeout)

	// Without a timeout option the given client is used as is.
	o = NewOllama("http://localhost:1", "m", DefaultOllamaOptions(), WithHTTPClient(shared))
	assert.Same(t, shared, o.http)
}

func TestNew_TimeoutAppliesToGivenClient(t *testing.T) {
	cfg := config.Default().Gateway
	g, err := New(cfg, WithHTTPClient(http.DefaultClient))
	require.NoError(t, err)
	assert.Equal(t, 1000*time.Second, g.(*Ollama).http.Timeout)
	assert.Zero(t, http.DefaultClient.Timeout)
}

func TestNew(t *testing.T) {
	cfg := config.Default().Gateway

	g, err := New(cfg)
	require.NoError(t, err)
	o, ok := g.(*Ollama)
	require.True(t, ok)
	assert.Equal(t, "gemma3:4b", o.model)
	assert.Equal(t, DefaultOllamaOptions(), o.options)
	assert.Equal(t, 1000*time.Second, o.http.Timeout)
	assert.Nil(t, o.limiter)

	cfg.Kind = config.GatewayA2A
	cfg.RequestsPerSecond = 2
	g, err = New(cfg)
	require.NoError(t, err)
	a, ok := g.(*A2A)
	require.True(t, ok)
	assert.NotNil(t, a.limiter)

	cfg.Kind = config.GatewayNone
	g, err = New(cfg)
	require.NoError(t, err)
	assert.Nil(t, g)

	cfg.Kind = "smoke-signals"
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "timeout"},
		{ErrEmptyResponse, "empty"},
		{&HTTPError{StatusCode: 429}, "rate_limit"},
		{&HTTPError{StatusCode: 503}, "server"},
		{&HTTPError{StatusCode: 400}, "client"},
		{&TaskError{State: TaskStateFailed}, "task"},
		{errors.New("other"), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyError(tt.err), "%v", tt.err)
	}
}
