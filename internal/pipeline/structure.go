package pipeline

import (
	"context"

	"github.com/slidesmith/slidesmith/internal/jobs"
)

// Structure refines the analyzed content hierarchy: section levels are
// normalized to start at 1, orphaned subsections are reattached to the
// closest preceding parent, and a missing document title is promoted from
// the first section. The stage is deterministic and local, so it carries
// no resilience wrapping beyond the engine's defaults.
func Structure(rt *Runtime) func(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error) {
	return func(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error) {
		structure, err := decode[ContentStructure](snapshot.Data, KeyStructure)
		if err != nil {
			return nil, err
		}

		refined := refineHierarchy(&structure)

		rt.Logger.InfoContext(
			ctx, "structure complete",
			"job_id", snapshot.ID, "sections", len(refined.Sections),
		)

		encoded, err := encode(refined)
		if err != nil {
			return nil, err
		}

		return &jobs.Patch{
			Progress: 75,
			Data:     map[string]any{KeyStructure: encoded},
		}, nil
	}
}

func refineHierarchy(structure *ContentStructure) *ContentStructure {
	refined := &ContentStructure{
		Title:    structure.Title,
		Subtitle: structure.Subtitle,
		Sections: structure.Sections,
	}

	normalizeLevels(refined)
	reorganizeSections(refined)

	// Promote the first section to document title when none exists.
	if refined.Title == "" && len(refined.Sections) > 0 {
		refined.Title = refined.Sections[0].Title
		promoted := refined.Sections[0]
		refined.Sections = append(promoted.Subsections, refined.Sections[1:]...)
	}

	enforceLevels(refined.Sections, 1)
	return refined
}

// normalizeLevels shifts all section levels so the shallowest top-level
// section sits at level 1.
func normalizeLevels(structure *ContentStructure) {
	if len(structure.Sections) == 0 {
		return
	}

	minLevel := structure.Sections[0].Level
	for _, s := range structure.Sections[1:] {
		if s.Level < minLevel {
			minLevel = s.Level
		}
	}

	if minLevel == 1 {
		return
	}

	shift := 1 - minLevel
	for i := range structure.Sections {
		shiftLevel(&structure.Sections[i], shift)
	}
}

func shiftLevel(section *ContentSection, by int) {
	section.Level += by
	for i := range section.Subsections {
		shiftLevel(&section.Subsections[i], by)
	}
}

// reorganizeSections rebuilds the nesting from the flattened section list
// so every section hangs under the closest preceding section one level
// shallower. Sections with no eligible parent are promoted to the top.
func reorganizeSections(structure *ContentStructure) {
	flat := flattenSections(structure.Sections)
	if len(flat) == 0 {
		return
	}

	for i := range flat {
		flat[i].Subsections = nil
	}

	structure.Sections = nil
	for i := range flat {
		section := flat[i]
		if section.Level <= 1 {
			section.Level = 1
			structure.Sections = append(structure.Sections, section)
			continue
		}

		parent := closestParent(structure, section.Level)
		if parent == nil {
			section.Level = 1
			structure.Sections = append(structure.Sections, section)
			continue
		}
		parent.Subsections = append(parent.Subsections, section)
	}
}

func flattenSections(sections []ContentSection) []ContentSection {
	var flat []ContentSection
	for _, s := range sections {
		subs := s.Subsections
		s.Subsections = nil
		flat = append(flat, s)
		flat = append(flat, flattenSections(subs)...)
	}
	return flat
}

// closestParent finds the most recently placed section one level above
// the target in the rebuilt tree.
func closestParent(structure *ContentStructure, level int) *ContentSection {
	target := level - 1

	var found *ContentSection
	var search func(sections []ContentSection)
	search = func(sections []ContentSection) {
		for i := range sections {
			if sections[i].Level == target {
				found = &sections[i]
			}
			search(sections[i].Subsections)
		}
	}
	search(structure.Sections)

	return found
}

// enforceLevels makes nesting depth authoritative over declared levels.
func enforceLevels(sections []ContentSection, level int) {
	for i := range sections {
		sections[i].Level = level
		enforceLevels(sections[i].Subsections, level+1)
	}
}
