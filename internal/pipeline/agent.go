package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/slidesmith/slidesmith/internal/faults"
	"github.com/slidesmith/slidesmith/pkg/formatting"
)

const extractPrompt = `You are an OCR engine for document images. Extract all
text from the image, preserving reading order. For each run of text report its
bounding box and a confidence between 0 and 1. Transcribe mathematical
expressions separately with a LaTeX rendering when possible.

Respond with JSON only, in this shape:
{
  "text_boxes": [{"text": "...", "bbox": {"x": 0, "y": 0, "width": 0, "height": 0}, "confidence": 0.0, "text_type": "regular"}],
  "math_expressions": [{"expression": "...", "latex": "...", "bbox": {"x": 0, "y": 0, "width": 0, "height": 0}, "confidence": 0.0}],
  "raw_text": "...",
  "language": "...",
  "confidence": 0.0
}`

const analyzePrompt = `You are an expert at analyzing document structure.
Analyze the following text and identify its logical organization.

# Text:
%s

# Instructions:
1. Identify the document title and subtitle, when present.
2. Identify the major sections and their headings.
3. Within each section, identify paragraphs, list items, quotes, and code
   blocks, and label each element's type.
4. Nest subsections under their parent sections with increasing levels.

Respond with JSON only, matching this shape:
{
  "title": "...",
  "subtitle": "...",
  "sections": [{"level": 1, "title": "...", "elements": [{"element_type": "paragraph", "content": "..."}], "subsections": []}]
}`

// extractFromImage sends one document image through the vision backend and
// parses the structured extraction result.
func extractFromImage(ctx context.Context, cfg gaconfig.AgentConfig, image []byte, format string) (*ExtractedText, error) {
	a, err := agent.New(&cfg)
	if err != nil {
		return nil, faults.Wrap(faults.KindBackendConnection, "create agent", err)
	}

	dataURI := encodeImageDataURI(image, format)

	resp, err := a.Vision(ctx, extractPrompt, []string{dataURI})
	if err != nil {
		return nil, classifyAgentError("vision call", err)
	}

	extracted, err := formatting.Parse[ExtractedText](resp.Content())
	if err != nil {
		return nil, faults.Wrap(faults.KindExtraction, "parse extraction response", err)
	}

	return &extracted, nil
}

// analyzeWithAgent asks a chat backend for the semantic structure of the
// combined document text. The response is parsed from JSON and validated
// against the content structure schema before it is accepted.
func analyzeWithAgent(ctx context.Context, cfg gaconfig.AgentConfig, text string) (*ContentStructure, error) {
	a, err := agent.New(&cfg)
	if err != nil {
		return nil, faults.Wrap(faults.KindBackendConnection, "create agent", err)
	}

	resp, err := a.Chat(ctx, fmt.Sprintf(analyzePrompt, text))
	if err != nil {
		return nil, classifyAgentError("chat call", err)
	}

	structure, err := formatting.Parse[ContentStructure](resp.Content())
	if err != nil {
		return nil, faults.Wrap(faults.KindInvalidResponse, "parse analysis response", err)
	}

	if err := validateStructure(&structure); err != nil {
		return nil, err
	}

	return &structure, nil
}

// classifyAgentError separates transport failures, which are worth
// retrying, from malformed responses, which are not.
func classifyAgentError(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return faults.Wrap(faults.KindBackendConnection, op, err)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection") || strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "refused") || strings.Contains(msg, "unreachable") {
		return faults.Wrap(faults.KindBackendConnection, op, err)
	}

	return faults.Wrap(faults.KindInvalidResponse, op, err)
}

func encodeImageDataURI(data []byte, format string) string {
	if format == "" {
		format = "png"
	}
	return fmt.Sprintf(
		"data:image/%s;base64,%s",
		format, base64.StdEncoding.EncodeToString(data),
	)
}
