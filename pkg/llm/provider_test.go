package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name string
}

func (s *stubProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

func (s *stubProvider) EmbedSingle(context.Context, string) ([]float32, error) {
	return []float32{1}, nil
}

func (s *stubProvider) Chat(context.Context, []Message) (string, error) { return "", nil }

func (s *stubProvider) Generate(context.Context, string, string) (string, error) { return "", nil }

func (s *stubProvider) Name() string { return s.name }

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider("no-such-provider", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")

	_, err = NewEmbeddingProvider("no-such-provider", nil)
	require.Error(t, err)

	_, err = NewChatProvider("no-such-provider", nil)
	require.Error(t, err)
}

func TestFullProviderServesAllRoles(t *testing.T) {
	RegisterProvider("test-full", func(map[string]any) (Provider, error) {
		return &stubProvider{name: "test-full"}, nil
	})

	p, err := NewProvider("test-full", nil)
	require.NoError(t, err)
	assert.Equal(t, "test-full", p.Name())

	e, err := NewEmbeddingProvider("test-full", nil)
	require.NoError(t, err)
	assert.Equal(t, "test-full", e.Name())

	c, err := NewChatProvider("test-full", nil)
	require.NoError(t, err)
	assert.Equal(t, "test-full", c.Name())
}

func TestDedicatedFactoryWinsOverFull(t *testing.T) {
	RegisterProvider("test-precedence", func(map[string]any) (Provider, error) {
		return &stubProvider{name: "full"}, nil
	})
	RegisterEmbeddingProvider("test-precedence", func(map[string]any) (EmbeddingProvider, error) {
		return &stubProvider{name: "embedding-only"}, nil
	})
	RegisterChatProvider("test-precedence", func(map[string]any) (ChatProvider, error) {
		return &stubProvider{name: "chat-only"}, nil
	})

	e, err := NewEmbeddingProvider("test-precedence", nil)
	require.NoError(t, err)
	assert.Equal(t, "embedding-only", e.Name())

	c, err := NewChatProvider("test-precedence", nil)
	require.NoError(t, err)
	assert.Equal(t, "chat-only", c.Name())

	p, err := NewProvider("test-precedence", nil)
	require.NoError(t, err)
	assert.Equal(t, "full", p.Name())
}

func TestListProvidersDeduplicates(t *testing.T) {
	RegisterProvider("test-list", func(map[string]any) (Provider, error) {
		return &stubProvider{name: "test-list"}, nil
	})
	RegisterChatProvider("test-list", func(map[string]any) (ChatProvider, error) {
		return &stubProvider{name: "test-list"}, nil
	})

	names := ListProviders()
	count := 0
	for _, n := range names {
		if n == "test-list" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
