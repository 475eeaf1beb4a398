// Package pipeline implements the document-to-presentation workflow: the
// stage handlers that take uploaded document images through preprocessing,
// text extraction, layout and content analysis, slide composition, and
// HTML deck rendering. Stage artifacts travel between nodes in the job's
// data map and survive store round-trips as JSON.
package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/slidesmith/slidesmith/internal/faults"
)

// Data map keys for stage artifacts.
const (
	KeyImages        = "images"
	KeyImageMetadata = "image_metadata"
	KeyExtractedText = "extracted_text"
	KeyStructure     = "content_structure"
	KeySlides        = "slides"
)

// Workflow node names.
const (
	NodePreprocess = "preprocess"
	NodeExtract    = "extract"
	NodeLayout     = "layout"
	NodeAnalyze    = "analyze"
	NodeStructure  = "structure"
	NodeCompose    = "compose"
	NodeRender     = "render"
	NodeRecover    = "recover"
)

// BoundingBox locates a detected element within a source image.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TextBox is one detected run of text with its position and confidence.
// Type distinguishes regular text from headings and list items once
// layout analysis has run.
type TextBox struct {
	Text       string      `json:"text"`
	BBox       BoundingBox `json:"bbox"`
	Confidence float64     `json:"confidence"`
	Type       string      `json:"text_type"`
}

// MathExpression is a detected mathematical expression with its LaTeX
// rendering when the extractor could produce one.
type MathExpression struct {
	Expression string      `json:"expression"`
	LaTeX      string      `json:"latex,omitempty"`
	BBox       BoundingBox `json:"bbox"`
	Confidence float64     `json:"confidence"`
}

// ImageMetadata describes one validated input image.
type ImageMetadata struct {
	Key    string `json:"key"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// ExtractedText holds everything pulled from a single image.
type ExtractedText struct {
	TextBoxes       []TextBox        `json:"text_boxes,omitempty"`
	MathExpressions []MathExpression `json:"math_expressions,omitempty"`
	RawText         string           `json:"raw_text"`
	Language        string           `json:"language,omitempty"`
	Confidence      float64          `json:"confidence"`
}

// ContentElement is one body element of a section: a paragraph, a list,
// a quote, or a code block.
type ContentElement struct {
	Type       string         `json:"element_type"`
	Content    string         `json:"content"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// ContentSection is a titled region of the document. Subsections nest
// recursively; Level 1 is top-level.
type ContentSection struct {
	Level       int              `json:"level"`
	Title       string           `json:"title,omitempty"`
	Elements    []ContentElement `json:"elements,omitempty"`
	Subsections []ContentSection `json:"subsections,omitempty"`
}

// ContentStructure is the semantic outline of the whole document.
type ContentStructure struct {
	Title    string           `json:"title,omitempty"`
	Subtitle string           `json:"subtitle,omitempty"`
	Sections []ContentSection `json:"sections,omitempty"`
}

// SlideElement is one renderable element on a slide.
type SlideElement struct {
	Type       string            `json:"element_type"`
	Content    string            `json:"content"`
	Style      map[string]string `json:"style,omitempty"`
	Attributes map[string]any    `json:"attributes,omitempty"`
}

// Slide kinds.
const (
	SlideCover   = "cover"
	SlideTOC     = "toc"
	SlideContent = "content"
	SlideDivider = "divider"
)

// SlideDefinition is one slide of the composed deck.
type SlideDefinition struct {
	Title    string            `json:"title,omitempty"`
	Subtitle string            `json:"subtitle,omitempty"`
	Type     string            `json:"type"`
	Elements []SlideElement    `json:"elements,omitempty"`
	Style    map[string]string `json:"style,omitempty"`
}

// decode reads a typed artifact out of the job data map. Artifacts are
// stored as plain JSON values, so a round-trip through encoding/json
// recovers the concrete type regardless of whether the map came straight
// from a handler or back out of the job store.
func decode[T any](data map[string]any, key string) (T, error) {
	var out T

	raw, ok := data[key]
	if !ok {
		return out, faults.Newf(faults.KindUnknown, "missing %s in job data", key)
	}

	buf, err := json.Marshal(raw)
	if err != nil {
		return out, fmt.Errorf("encode %s: %w", key, err)
	}

	if err := json.Unmarshal(buf, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", key, err)
	}

	return out, nil
}

// encode converts a typed artifact to its JSON-shaped form for the job
// data map, keeping stored and in-memory representations identical.
func encode(v any) (any, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}

	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return nil, fmt.Errorf("reshape artifact: %w", err)
	}

	return out, nil
}
