package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer answers the two OpenAI endpoints the provider uses.
type fakeServer struct {
	dim        int
	failChat   bool
	chatReply  string
	chatCalls  atomic.Int32
	embedCalls atomic.Int32
	lastAuth   atomic.Value
}

func (f *fakeServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth.Store(r.Header.Get("Authorization"))
		switch {
		case strings.HasSuffix(r.URL.Path, "/embeddings"):
			f.embedCalls.Add(1)
			var req struct {
				Input []string `json:"input"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			data := make([]map[string]any, len(req.Input))
			for i := range req.Input {
				vec := make([]float32, f.dim)
				for j := range vec {
					vec[j] = float32(i + 1)
				}
				data[i] = map[string]any{"object": "embedding", "index": i, "embedding": vec}
			}
			writeJSON(t, w, map[string]any{
				"object": "list",
				"data":   data,
				"model":  "test-embed",
				"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
			})
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			f.chatCalls.Add(1)
			if f.failChat {
				http.Error(w, `{"error":{"message":"upstream unavailable"}}`, http.StatusServiceUnavailable)
				return
			}
			writeJSON(t, w, map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion",
				"created": 1,
				"model":   "test-chat",
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": f.chatReply},
					"finish_reason": "stop",
				}},
				"usage": map[string]int{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
			})
		default:
			http.NotFound(w, r)
		}
	})
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func newTestProvider(t *testing.T, fake *fakeServer) ai.AIProvider {
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	provider, err := NewProvider(ai.NewConfig(
		ai.WithHost(srv.URL),
		ai.WithEmbeddingModel("test-embed"),
		ai.WithGeneratorModel("test-chat"),
		ai.WithGeneratorToken("secret"),
	))
	require.NoError(t, err)
	t.Cleanup(func() { provider.Close() })
	return provider
}

func TestEmbedder_EmbedTexts(t *testing.T) {
	fake := &fakeServer{dim: 3}
	provider := newTestProvider(t, fake)

	vectors, err := provider.Embedder().EmbedTexts(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 1, 1}, vectors[0])
	assert.Equal(t, []float32{2, 2, 2}, vectors[1])
}

func TestEmbedder_EmbedText(t *testing.T) {
	fake := &fakeServer{dim: 4}
	provider := newTestProvider(t, fake)

	vec, err := provider.Embedder().EmbedText(context.Background(), "question")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}

func TestEmbedder_EmptyInput(t *testing.T) {
	fake := &fakeServer{dim: 3}
	provider := newTestProvider(t, fake)

	_, err := provider.Embedder().EmbedTexts(context.Background(), nil)
	require.ErrorIs(t, err, core.ErrEmptyInput)
	assert.Zero(t, fake.embedCalls.Load(), "empty batch must not reach the service")
}

func TestGenerator_Generate(t *testing.T) {
	fake := &fakeServer{chatReply: "Paris is the capital."}
	provider := newTestProvider(t, fake)

	reply, err := provider.Generator().Generate(context.Background(), "What is the capital?")
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital.", reply)
	assert.Equal(t, int32(1), fake.chatCalls.Load())
	assert.Equal(t, "Bearer secret", fake.lastAuth.Load())
}

func TestGenerator_FailureIsNotRetried(t *testing.T) {
	fake := &fakeServer{failChat: true}
	provider := newTestProvider(t, fake)

	_, err := provider.Generator().Generate(context.Background(), "anything")
	require.ErrorIs(t, err, core.ErrAnswerGeneration)
	assert.Equal(t, int32(1), fake.chatCalls.Load())
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	cfg := ai.DefaultConfig()
	cfg.GeneratorModel = ""
	_, err := NewProvider(cfg)
	require.Error(t, err)
}
