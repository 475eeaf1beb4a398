package pipeline

import (
	"context"
	"sort"
	"strings"

	"github.com/slidesmith/slidesmith/internal/faults"
	"github.com/slidesmith/slidesmith/internal/jobs"
)

// headingSizeRatio marks a text box as a heading when its height exceeds
// the page's average box height by this factor.
const headingSizeRatio = 1.3

// Layout classifies the extracted text boxes of each image into headings,
// list items, and regular text using positional heuristics, and rebuilds
// each image's raw text in reading order.
func Layout(rt *Runtime) func(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error) {
	return func(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error) {
		extracted, err := decode[[]ExtractedText](snapshot.Data, KeyExtractedText)
		if err != nil {
			return nil, err
		}
		if len(extracted) == 0 {
			return nil, faults.New(faults.KindStructureAnalysis, "no extracted text to analyze")
		}

		for i := range extracted {
			analyzeBoxes(&extracted[i])
		}

		rt.Logger.InfoContext(ctx, "layout complete", "job_id", snapshot.ID)

		encoded, err := encode(extracted)
		if err != nil {
			return nil, err
		}

		return &jobs.Patch{
			Progress: 45,
			Data:     map[string]any{KeyExtractedText: encoded},
		}, nil
	}
}

func analyzeBoxes(extracted *ExtractedText) {
	if len(extracted.TextBoxes) == 0 {
		return
	}

	sort.SliceStable(extracted.TextBoxes, func(a, b int) bool {
		return extracted.TextBoxes[a].BBox.Y < extracted.TextBoxes[b].BBox.Y
	})

	total := 0
	for _, box := range extracted.TextBoxes {
		total += box.BBox.Height
	}
	avgHeight := float64(total) / float64(len(extracted.TextBoxes))

	for i := range extracted.TextBoxes {
		box := &extracted.TextBoxes[i]
		switch {
		case float64(box.BBox.Height) > avgHeight*headingSizeRatio:
			box.Type = "heading"
		case isListItem(strings.TrimSpace(box.Text)):
			box.Type = "list"
		case box.Type == "":
			box.Type = "regular"
		}
	}

	extracted.RawText = assembleRawText(extracted.TextBoxes)
}

// assembleRawText rebuilds the page text from the classified boxes so
// headings land on their own lines for the downstream analyzers.
func assembleRawText(boxes []TextBox) string {
	var b strings.Builder
	for _, box := range boxes {
		text := strings.TrimSpace(box.Text)
		if text == "" {
			continue
		}

		if box.Type == "heading" && b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
