package enrich

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docvec/internal/model"
	"github.com/kart-io/docvec/pkg/llm"
)

// fakeChat records the prompt it was asked to generate from.
type fakeChat struct {
	response   string
	err        error
	lastPrompt string
}

func (f *fakeChat) Chat(_ context.Context, _ []llm.Message) (string, error) {
	return f.response, f.err
}

func (f *fakeChat) Generate(_ context.Context, prompt, _ string) (string, error) {
	f.lastPrompt = prompt
	return f.response, f.err
}

func (f *fakeChat) Name() string { return "fake" }

func window(text string) *model.ContextWindow {
	return &model.ContextWindow{
		Center: &model.ContentUnit{
			Kind:          model.KindText,
			Text:          text,
			PageNumber:    4,
			SequenceIndex: 7,
		},
		PrecedingText: "before",
		FollowingText: "after",
	}
}

func TestEnrichBuildsRecord(t *testing.T) {
	chat := &fakeChat{response: "  a distilled summary \n"}
	enricher := New(chat, &Config{SourceName: "handbook.pdf"})

	rec, err := enricher.Enrich(context.Background(), window("body text"))
	require.NoError(t, err)

	assert.Equal(t, "a distilled summary", rec.RepresentativeText)
	assert.Equal(t, "body text", rec.SourceExcerpt)
	assert.Equal(t, "handbook.pdf", rec.SourceName)
	assert.Equal(t, 7, rec.SequenceIndex)
	assert.Equal(t, 4, rec.PageNumber)
	assert.Equal(t, model.KindText, rec.ElementKind)
}

func TestEnrichPromptLayout(t *testing.T) {
	chat := &fakeChat{response: "summary"}
	enricher := New(chat, &Config{SourceName: "doc"})

	_, err := enricher.Enrich(context.Background(), window("center"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(chat.lastPrompt, summarizeInstruction))
	assert.Contains(t, chat.lastPrompt, "before\n\ncenter\n\nafter")
}

func TestEnrichExcerptTruncation(t *testing.T) {
	chat := &fakeChat{response: "summary"}
	enricher := New(chat, &Config{SourceName: "doc"})

	long := strings.Repeat("x", 2*ExcerptBudget)
	rec, err := enricher.Enrich(context.Background(), window(long))
	require.NoError(t, err)

	assert.Len(t, rec.SourceExcerpt, ExcerptBudget)
	assert.True(t, strings.HasPrefix(long, rec.SourceExcerpt))
}

func TestEnrichServiceError(t *testing.T) {
	chat := &fakeChat{err: fmt.Errorf("connection refused")}
	enricher := New(chat, &Config{SourceName: "doc"})

	_, err := enricher.Enrich(context.Background(), window("text"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEnrichEmptyResponse(t *testing.T) {
	chat := &fakeChat{response: "   \n\t"}
	enricher := New(chat, &Config{SourceName: "doc"})

	_, err := enricher.Enrich(context.Background(), window("text"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}
