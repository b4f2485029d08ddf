// Package segment adapts the external segmenter's output into the closed
// ContentUnit sequence the rest of the pipeline works on.
//
// The segmenter itself (layout analysis, table detection, OCR) is an external
// collaborator; its boundary artifact is an ordered JSON element stream where
// each element carries a type name, optional text and optional page metadata.
// This package is the only place that looks at raw element types: everything
// downstream is polymorphic over model.UnitKind.
package segment

import (
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/kart-io/logger"

	"github.com/kart-io/docvec/internal/model"
)

// Element is one raw block as emitted by the external segmenter.
type Element struct {
	// Type is the segmenter's element type name, e.g. "CompositeElement",
	// "NarrativeText", "Table", "Image".
	Type string `json:"type"`

	// Text is the element's extracted text, if any.
	Text string `json:"text,omitempty"`

	// Metadata carries per-element provenance from the segmenter.
	Metadata ElementMetadata `json:"metadata"`
}

// ElementMetadata is the subset of segmenter metadata the pipeline consumes.
type ElementMetadata struct {
	// PageNumber is the 1-based source page, 0 if the segmenter could not
	// localize the element.
	PageNumber int `json:"page_number,omitempty"`
}

// Config controls the adapter.
type Config struct {
	// PageOffset is added to every element's page number. Segmentation
	// strategies that extract pages directly may count front matter
	// differently from layout-driven ones; the caller aligns them here.
	PageOffset int
}

// Adapter converts raw segmenter elements into ContentUnits.
type Adapter struct {
	config *Config
}

// NewAdapter creates a segment adapter.
func NewAdapter(config *Config) *Adapter {
	if config == nil {
		config = &Config{}
	}
	return &Adapter{config: config}
}

// Load decodes an element stream and adapts it. A decode failure is fatal
// for the run: no partial document is usable.
func (a *Adapter) Load(r io.Reader) ([]*model.ContentUnit, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read element stream: %w", err)
	}

	var elements []Element
	if err := sonic.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("failed to decode element stream: %w", err)
	}

	return a.Adapt(elements), nil
}

// Adapt maps the ordered element slice onto ContentUnits.
//
// Each unit's SequenceIndex is its zero-based position in the original
// element order. Elements that carry no text and are not tables are dropped,
// which leaves gaps in the emitted sequence; the gaps are intentional and
// preserve provenance against the segmenter's original output.
func (a *Adapter) Adapt(elements []Element) []*model.ContentUnit {
	units := make([]*model.ContentUnit, 0, len(elements))

	skipped := 0
	for i, el := range elements {
		kind := classify(el.Type)
		if kind != model.KindTable && strings.TrimSpace(el.Text) == "" {
			skipped++
			continue
		}

		page := el.Metadata.PageNumber
		if page > 0 {
			page += a.config.PageOffset
		}

		units = append(units, &model.ContentUnit{
			Kind:          kind,
			Text:          el.Text,
			PageNumber:    page,
			SequenceIndex: i,
		})
	}

	logger.Infow("segmenter output adapted",
		"elements", len(elements),
		"units", len(units),
		"skipped", skipped,
	)
	return units
}

// classify maps a segmenter type name onto the closed unit variant.
// Matching is by substring on the lowered name, mirroring how segmenters
// derive element classes ("CompositeElement", "TableChunk", "Image", ...).
func classify(typeName string) model.UnitKind {
	name := strings.ToLower(typeName)
	switch {
	case strings.Contains(name, "table"):
		return model.KindTable
	case strings.Contains(name, "image"), strings.Contains(name, "figure"):
		return model.KindImage
	default:
		return model.KindText
	}
}
