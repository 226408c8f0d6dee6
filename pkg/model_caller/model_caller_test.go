package model_caller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelCallerGenerate(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"SELECT 1"}}]}`))
	}))
	defer srv.Close()

	mc := NewModelCaller(srv.URL+"/v1/", "k", "m", time.Second, nil)
	out, err := mc.Generate(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, "SELECT 1", out)
	assert.Equal(t, "m", got["model"])
	msgs := got["messages"].([]interface{})
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].(map[string]interface{})["content"])
}

func TestModelCallerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`quota`))
	}))
	defer srv.Close()

	_, err := NewModelCaller(srv.URL, "", "m", time.Second, nil).Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=429")
	assert.Contains(t, err.Error(), "quota")
}

func TestNewRequiresKnownProvider(t *testing.T) {
	_, err := New(context.Background(), Options{Provider: "other"})
	assert.Error(t, err)

	_, err = New(context.Background(), Options{Provider: "gemini"})
	assert.Error(t, err)

	_, err = New(context.Background(), Options{Provider: "openai"})
	assert.Error(t, err)

	g, err := New(context.Background(), Options{Provider: "openai", APIBase: "http://localhost"})
	require.NoError(t, err)
	assert.IsType(t, &ModelCaller{}, g)
}

func TestTryLimiter(t *testing.T) {
	l := NewTryLimiter(1)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "k"))
	assert.ErrorIs(t, l.Acquire(ctx, "k"), ErrLimitReached)
	l.Release(ctx, "k")
	assert.NoError(t, l.Acquire(ctx, "k"))
}

func TestBlockingLimiterHonoursContext(t *testing.T) {
	l := NewConcurrencyLimiter(1)
	require.NoError(t, l.Acquire(context.Background(), "k"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Acquire(ctx, "k"), context.DeadlineExceeded)
}

type countingGenerator struct {
	mu      sync.Mutex
	active  int
	maxSeen int
}

func (g *countingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.active++
	if g.active > g.maxSeen {
		g.maxSeen = g.active
	}
	g.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	g.mu.Lock()
	g.active--
	g.mu.Unlock()
	return prompt, nil
}

func TestLimitedGeneratorBoundsConcurrency(t *testing.T) {
	inner := &countingGenerator{}
	g := WithLimit(inner, NewConcurrencyLimiter(2), "llm", time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := g.Generate(context.Background(), "x")
			assert.NoError(t, err)
			assert.Equal(t, "x", out)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, inner.maxSeen, 2)
	assert.Equal(t, 0, g.limiter.InUse())
}
