package pipeline_test

import (
	"context"
	"testing"

	"github.com/slidesmith/slidesmith/internal/faults"
	"github.com/slidesmith/slidesmith/internal/pipeline"
)

func box(text string, y, height int) pipeline.TextBox {
	return pipeline.TextBox{
		Text:       text,
		BBox:       pipeline.BoundingBox{X: 10, Y: y, Width: 400, Height: height},
		Confidence: 0.9,
	}
}

func TestLayoutClassifiesTextBoxes(t *testing.T) {
	extracted := []pipeline.ExtractedText{{
		TextBoxes: []pipeline.TextBox{
			box("second body line", 200, 30),
			box("Big Title", 10, 80),
			box("- bullet item", 300, 30),
			box("first body line", 100, 30),
		},
	}}

	handler := pipeline.Layout(testRuntime(newMemStorage()))
	patch, err := handler(context.Background(), jobWith(pipeline.KeyExtractedText, extracted))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if patch.Progress != 45 {
		t.Errorf("Progress = %d, want 45", patch.Progress)
	}

	result := decodeArtifact[[]pipeline.ExtractedText](t, patch, pipeline.KeyExtractedText)
	boxes := result[0].TextBoxes

	wantOrder := []string{"Big Title", "first body line", "second body line", "- bullet item"}
	wantType := []string{"heading", "regular", "regular", "list"}
	for i, want := range wantOrder {
		if boxes[i].Text != want {
			t.Errorf("boxes[%d].Text = %q, want %q: boxes sort by vertical position", i, boxes[i].Text, want)
		}
		if boxes[i].Type != wantType[i] {
			t.Errorf("boxes[%d].Type = %q, want %q", i, boxes[i].Type, wantType[i])
		}
	}
}

func TestLayoutRebuildsRawText(t *testing.T) {
	extracted := []pipeline.ExtractedText{{
		TextBoxes: []pipeline.TextBox{
			box("Heading Line", 10, 90),
			box("body text", 100, 30),
			box("  ", 150, 30),
			box("Second Heading", 200, 90),
		},
	}}

	handler := pipeline.Layout(testRuntime(newMemStorage()))
	patch, err := handler(context.Background(), jobWith(pipeline.KeyExtractedText, extracted))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := decodeArtifact[[]pipeline.ExtractedText](t, patch, pipeline.KeyExtractedText)
	want := "Heading Line\nbody text\n\nSecond Heading"
	if result[0].RawText != want {
		t.Errorf("RawText = %q, want %q", result[0].RawText, want)
	}
}

func TestLayoutNoExtractedText(t *testing.T) {
	handler := pipeline.Layout(testRuntime(newMemStorage()))

	_, err := handler(context.Background(), jobWith(pipeline.KeyExtractedText, []pipeline.ExtractedText{}))
	if faults.KindOf(err) != faults.KindStructureAnalysis {
		t.Errorf("kind = %q, want %q", faults.KindOf(err), faults.KindStructureAnalysis)
	}
}
