package pipeline

import (
	"context"

	"github.com/slidesmith/slidesmith/internal/faults"
	"github.com/slidesmith/slidesmith/internal/jobs"
)

// maxElementsPerSlide caps how much body content lands on one slide before
// the composer splits a section across continuation slides.
const maxElementsPerSlide = 6

// Compose turns the refined content structure into an ordered slide deck:
// a cover slide, a table of contents when the document has more than one
// top-level section, a divider ahead of each sectioned region, and content
// slides holding the section bodies.
func Compose(rt *Runtime) func(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error) {
	return func(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error) {
		structure, err := decode[ContentStructure](snapshot.Data, KeyStructure)
		if err != nil {
			return nil, err
		}

		slides := composeSlides(&structure)
		if len(slides) == 0 {
			return nil, faults.New(faults.KindStructureAnalysis, "content produced no slides")
		}

		rt.Logger.InfoContext(
			ctx, "compose complete",
			"job_id", snapshot.ID, "slides", len(slides),
		)

		encoded, err := encode(slides)
		if err != nil {
			return nil, err
		}

		return &jobs.Patch{
			Progress: 85,
			Data:     map[string]any{KeySlides: encoded},
		}, nil
	}
}

func composeSlides(structure *ContentStructure) []SlideDefinition {
	var slides []SlideDefinition

	title := structure.Title
	if title == "" {
		title = "Untitled Presentation"
	}

	slides = append(slides, SlideDefinition{
		Title:    title,
		Subtitle: structure.Subtitle,
		Type:     SlideCover,
	})

	if len(structure.Sections) > 1 {
		slides = append(slides, tocSlide(structure.Sections))
	}

	for i := range structure.Sections {
		slides = append(slides, sectionSlides(&structure.Sections[i], len(structure.Sections) > 1)...)
	}

	return slides
}

func tocSlide(sections []ContentSection) SlideDefinition {
	toc := SlideDefinition{Title: "Contents", Type: SlideTOC}
	for _, s := range sections {
		entry := s.Title
		if entry == "" {
			continue
		}
		toc.Elements = append(toc.Elements, SlideElement{Type: "toc-entry", Content: entry})
	}
	return toc
}

// sectionSlides renders one top-level section: an optional divider, the
// section's own content slides, then its subsections recursively.
func sectionSlides(section *ContentSection, withDivider bool) []SlideDefinition {
	var slides []SlideDefinition

	if withDivider && section.Title != "" && len(section.Subsections) > 0 {
		slides = append(slides, SlideDefinition{Title: section.Title, Type: SlideDivider})
	}

	slides = append(slides, contentSlides(section)...)

	for i := range section.Subsections {
		slides = append(slides, sectionSlides(&section.Subsections[i], false)...)
	}

	return slides
}

// contentSlides packs a section's elements onto slides, splitting across
// continuation slides once a slide fills up.
func contentSlides(section *ContentSection) []SlideDefinition {
	if len(section.Elements) == 0 {
		if section.Title == "" || len(section.Subsections) > 0 {
			return nil
		}
		return []SlideDefinition{{Title: section.Title, Type: SlideContent}}
	}

	var slides []SlideDefinition
	for start := 0; start < len(section.Elements); start += maxElementsPerSlide {
		end := min(start+maxElementsPerSlide, len(section.Elements))

		slide := SlideDefinition{Title: section.Title, Type: SlideContent}
		if start > 0 {
			slide.Style = map[string]string{"continuation": "true"}
		}

		for _, el := range section.Elements[start:end] {
			slide.Elements = append(slide.Elements, SlideElement{
				Type:       el.Type,
				Content:    el.Content,
				Attributes: el.Attributes,
			})
		}

		slides = append(slides, slide)
	}

	return slides
}
