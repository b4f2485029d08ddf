// Package query implements the read path: query embedding, vector search,
// and normalization of heterogeneous backend result payloads.
package query

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/kart-io/docvec/internal/model"
	"github.com/kart-io/docvec/internal/store"
)

// Keys client libraries have used for serialized result payloads.
const (
	payloadContentKey  = "page_content"
	payloadMetadataKey = "metadata"
)

// Normalize converts one raw retrieval result into a SearchResult.
//
// The retrieval backend's client libraries have historically serialized
// results inconsistently between execution environments; Normalize makes
// that inconsistency invisible to every caller. It is an explicit state
// machine over payload shape, each step a fallback for the previous:
//
//  1. a typed document exposing content and metadata is used as-is;
//  2. content that is itself a serialized JSON object is parsed, its
//     page_content becomes the true content and its embedded metadata is
//     merged over the outer metadata (embedded keys win, being the most
//     specific source);
//  3. a plain mapping payload is read via its page_content/metadata keys;
//  4. anything else is coerced to its string form with empty metadata.
//
// Malformed JSON in step 2 falls through to step 4 with the original
// unparsed content: a broken payload stays visible instead of vanishing.
//
// Normalize never fails. The only non-result outcome is ok == false, when
// no textual payload at all can be resolved; such records are dropped
// rather than returned empty.
func Normalize(raw any) (*model.SearchResult, bool) {
	switch v := raw.(type) {
	case *store.Document:
		return normalizeDocument(v)
	case store.Document:
		return normalizeDocument(&v)
	case map[string]any:
		return normalizeMapping(v)
	default:
		return coerce(fmt.Sprintf("%v", raw), 0)
	}
}

func normalizeDocument(doc *store.Document) (*model.SearchResult, bool) {
	content := doc.Content

	if strings.HasPrefix(content, `{"`) {
		if inner, innerMeta, ok := parseEmbedded(content); ok {
			metadata := mergeMetadata(doc.Metadata, innerMeta)
			return finish(inner, metadata, doc.Score)
		}
		// Parse failure degrades to the original unparsed text.
		return coerce(content, doc.Score)
	}

	return finish(content, copyMetadata(doc.Metadata), doc.Score)
}

func normalizeMapping(m map[string]any) (*model.SearchResult, bool) {
	content, _ := m[payloadContentKey].(string)
	metadata, _ := m[payloadMetadataKey].(map[string]any)
	return finish(content, copyMetadata(metadata), 0)
}

// parseEmbedded attempts to read content as a serialized document mapping.
func parseEmbedded(content string) (inner string, metadata map[string]any, ok bool) {
	var payload map[string]any
	if err := sonic.UnmarshalString(content, &payload); err != nil {
		return "", nil, false
	}

	inner, ok = payload[payloadContentKey].(string)
	if !ok {
		return "", nil, false
	}

	metadata, _ = payload[payloadMetadataKey].(map[string]any)
	return inner, metadata, true
}

// mergeMetadata overlays inner keys onto outer ones. Inner wins: the
// embedded mapping is the most specific source.
func mergeMetadata(outer, inner map[string]any) map[string]any {
	merged := copyMetadata(outer)
	for k, v := range inner {
		merged[k] = v
	}
	return merged
}

func copyMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func coerce(content string, score float32) (*model.SearchResult, bool) {
	return finish(content, map[string]any{}, score)
}

func finish(content string, metadata map[string]any, score float32) (*model.SearchResult, bool) {
	if content == "" {
		return nil, false
	}
	return &model.SearchResult{
		Content:  content,
		Metadata: metadata,
		Score:    score,
	}, true
}
