package pipeline_test

import (
	"context"
	"testing"

	"github.com/slidesmith/slidesmith/internal/pipeline"
)

func refine(t *testing.T, structure pipeline.ContentStructure) pipeline.ContentStructure {
	t.Helper()

	handler := pipeline.Structure(testRuntime(newMemStorage()))
	patch, err := handler(context.Background(), jobWith(pipeline.KeyStructure, structure))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.Progress != 75 {
		t.Errorf("Progress = %d, want 75", patch.Progress)
	}

	return decodeArtifact[pipeline.ContentStructure](t, patch, pipeline.KeyStructure)
}

func TestStructureNormalizesLevels(t *testing.T) {
	refined := refine(t, pipeline.ContentStructure{
		Title: "Doc",
		Sections: []pipeline.ContentSection{
			{Level: 2, Title: "A"},
			{Level: 3, Title: "B"},
		},
	})

	if len(refined.Sections) != 1 {
		t.Fatalf("Sections = %d, want B nested under A", len(refined.Sections))
	}
	a := refined.Sections[0]
	if a.Title != "A" || a.Level != 1 {
		t.Errorf("top section = %q level %d, want A at level 1", a.Title, a.Level)
	}
	if len(a.Subsections) != 1 || a.Subsections[0].Title != "B" || a.Subsections[0].Level != 2 {
		t.Errorf("Subsections = %+v, want B at level 2", a.Subsections)
	}
}

func TestStructurePromotesTitleFromFirstSection(t *testing.T) {
	refined := refine(t, pipeline.ContentStructure{
		Sections: []pipeline.ContentSection{
			{
				Level: 1, Title: "Main",
				Subsections: []pipeline.ContentSection{{Level: 2, Title: "Sub"}},
			},
			{Level: 1, Title: "Other"},
		},
	})

	if refined.Title != "Main" {
		t.Errorf("Title = %q, want the first section promoted", refined.Title)
	}
	if len(refined.Sections) != 2 {
		t.Fatalf("Sections = %d, want the promoted section's children plus the rest", len(refined.Sections))
	}
	if refined.Sections[0].Title != "Sub" || refined.Sections[0].Level != 1 {
		t.Errorf("Sections[0] = %q level %d, want Sub at level 1", refined.Sections[0].Title, refined.Sections[0].Level)
	}
	if refined.Sections[1].Title != "Other" {
		t.Errorf("Sections[1] = %q, want Other", refined.Sections[1].Title)
	}
}

func TestStructurePromotesOrphanedSections(t *testing.T) {
	refined := refine(t, pipeline.ContentStructure{
		Title: "Doc",
		Sections: []pipeline.ContentSection{
			{Level: 1, Title: "A"},
			{Level: 3, Title: "C"},
		},
	})

	if len(refined.Sections) != 2 {
		t.Fatalf("Sections = %d, want the orphan promoted to the top", len(refined.Sections))
	}
	c := refined.Sections[1]
	if c.Title != "C" || c.Level != 1 {
		t.Errorf("orphan = %q level %d, want C at level 1", c.Title, c.Level)
	}
}

func TestStructureRebuildsNestingFromDeclaredLevels(t *testing.T) {
	refined := refine(t, pipeline.ContentStructure{
		Title: "Doc",
		Sections: []pipeline.ContentSection{
			{
				Level: 1, Title: "A",
				Subsections: []pipeline.ContentSection{{Level: 5, Title: "B"}},
			},
		},
	})

	if len(refined.Sections) != 2 {
		t.Fatalf("Sections = %d, want B promoted: no level-4 parent exists", len(refined.Sections))
	}
	b := refined.Sections[1]
	if b.Title != "B" || b.Level != 1 {
		t.Errorf("promoted section = %q level %d, want B at level 1", b.Title, b.Level)
	}
}
