package pipeline

import (
	"testing"

	"github.com/slidesmith/slidesmith/internal/faults"
)

func TestValidateStructure(t *testing.T) {
	valid := &ContentStructure{
		Title: "Doc",
		Sections: []ContentSection{{
			Level:    1,
			Title:    "Intro",
			Elements: []ContentElement{{Type: "paragraph", Content: "hello"}},
			Subsections: []ContentSection{{
				Level:    2,
				Elements: []ContentElement{{Type: "list", Content: "- a\n- b"}},
			}},
		}},
	}
	if err := validateStructure(valid); err != nil {
		t.Fatalf("valid structure rejected: %v", err)
	}
}

func TestValidateStructureRejectsBadContent(t *testing.T) {
	tests := []struct {
		name      string
		structure *ContentStructure
	}{
		{
			"section level below minimum",
			&ContentStructure{Sections: []ContentSection{{Level: 0}}},
		},
		{
			"unknown element type",
			&ContentStructure{Sections: []ContentSection{{
				Level:    1,
				Elements: []ContentElement{{Type: "table", Content: "x"}},
			}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateStructure(tt.structure)
			if faults.KindOf(err) != faults.KindValidation {
				t.Errorf("kind = %q, want %q", faults.KindOf(err), faults.KindValidation)
			}
		})
	}
}
