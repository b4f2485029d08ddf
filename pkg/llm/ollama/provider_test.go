package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docvec/pkg/llm"
)

func newTestServer(t *testing.T) (*httptest.Server, *Provider) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		resp := embedResponse{Model: req.Model}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{0.1, 0.2, 0.3})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)

		_ = json.NewEncoder(w).Encode(chatResponse{
			Model:   req.Model,
			Message: chatMessage{Role: "assistant", Content: "chat reply"},
			Done:    true,
		})
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		_ = json.NewEncoder(w).Encode(generateResponse{
			Model:    req.Model,
			Response: "generated: " + req.Prompt,
			Done:     true,
		})
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.MaxRetries = 0
	return server, NewProviderWithConfig(cfg)
}

func TestEmbed(t *testing.T) {
	_, p := newTestServer(t)

	embeddings, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embeddings[0])
}

func TestEmbedSingle(t *testing.T) {
	_, p := newTestServer(t)

	embedding, err := p.EmbedSingle(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embedding)
}

func TestEmbedEmptyInput(t *testing.T) {
	_, p := newTestServer(t)

	embeddings, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, embeddings)
}

func TestChat(t *testing.T) {
	_, p := newTestServer(t)

	reply, err := p.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "chat reply", reply)
}

func TestGenerate(t *testing.T) {
	_, p := newTestServer(t)

	out, err := p.Generate(context.Background(), "summarize this", "")
	require.NoError(t, err)
	assert.Equal(t, "generated: summarize this", out)
}

func TestServerErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.MaxRetries = 0
	p := NewProviderWithConfig(cfg)

	_, err := p.EmbedSingle(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestPing(t *testing.T) {
	_, p := newTestServer(t)
	assert.NoError(t, p.Ping(context.Background()))
}

func TestNewProviderConfigMap(t *testing.T) {
	p, err := NewProvider(map[string]any{
		"base_url":    "http://example:11434",
		"embed_model": "custom-embed",
		"chat_model":  "custom-chat",
	})
	require.NoError(t, err)
	assert.Equal(t, ProviderName, p.Name())

	op, ok := p.(*Provider)
	require.True(t, ok)
	assert.Equal(t, "http://example:11434", op.config.BaseURL)
	assert.Equal(t, "custom-embed", op.config.EmbedModel)
	assert.Equal(t, "custom-chat", op.config.ChatModel)
}
