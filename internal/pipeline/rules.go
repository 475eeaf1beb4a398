package pipeline

import (
	"strings"
	"unicode"
)

// analyzeWithRules builds a content structure from plain text using line
// heuristics. It backs the fallback chain when every analysis backend is
// degraded, so it must never fail: any text yields some structure.
func analyzeWithRules(text string) *ContentStructure {
	lines := strings.Split(text, "\n")

	structure := &ContentStructure{}

	// Title is the first non-empty line.
	titleIdx := -1
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			structure.Title = strings.TrimSpace(line)
			titleIdx = i
			break
		}
	}
	if titleIdx < 0 {
		return structure
	}

	b := rulesBuilder{structure: structure}
	for i := titleIdx + 1; i < len(lines); i++ {
		b.consume(strings.TrimSpace(lines[i]), nextLineBlank(lines, i))
	}
	b.flushList()

	return structure
}

// rulesBuilder accumulates sections and elements as lines stream through.
type rulesBuilder struct {
	structure *ContentStructure
	current   *ContentSection
	level     int
	listItems []string
}

func (b *rulesBuilder) consume(line string, followedByBlank bool) {
	if line == "" {
		b.flushList()
		return
	}

	if isLikelyHeading(line, followedByBlank) {
		b.flushList()
		b.openSection(line)
		return
	}

	if isListItem(line) {
		b.listItems = append(b.listItems, line)
		return
	}

	b.flushList()
	b.appendElement(ContentElement{Type: "paragraph", Content: line})
}

func (b *rulesBuilder) openSection(heading string) {
	level := headingLevel(heading)
	section := ContentSection{Level: level, Title: strings.TrimLeft(heading, "# ")}

	switch {
	case level == 1 || b.current == nil:
		section.Level = max(section.Level, 1)
		b.structure.Sections = append(b.structure.Sections, section)
		b.current = &b.structure.Sections[len(b.structure.Sections)-1]
	case level > b.level:
		b.current.Subsections = append(b.current.Subsections, section)
		b.current = &b.current.Subsections[len(b.current.Subsections)-1]
	default:
		parent := findParentSection(b.structure, level)
		if parent == nil {
			section.Level = 1
			b.structure.Sections = append(b.structure.Sections, section)
			b.current = &b.structure.Sections[len(b.structure.Sections)-1]
		} else {
			parent.Subsections = append(parent.Subsections, section)
			b.current = &parent.Subsections[len(parent.Subsections)-1]
		}
	}

	b.level = b.current.Level
}

func (b *rulesBuilder) appendElement(el ContentElement) {
	if b.current == nil {
		// Body text before any heading goes into an untitled section.
		b.structure.Sections = append(b.structure.Sections, ContentSection{Level: 1})
		b.current = &b.structure.Sections[len(b.structure.Sections)-1]
		b.level = 1
	}
	b.current.Elements = append(b.current.Elements, el)
}

func (b *rulesBuilder) flushList() {
	if len(b.listItems) == 0 {
		return
	}
	b.appendElement(ContentElement{Type: "list", Content: strings.Join(b.listItems, "\n")})
	b.listItems = nil
}

func nextLineBlank(lines []string, i int) bool {
	return i+1 < len(lines) && strings.TrimSpace(lines[i+1]) == ""
}

func isLikelyHeading(line string, followedByBlank bool) bool {
	if strings.HasPrefix(line, "#") || strings.HasSuffix(line, ":") {
		return true
	}

	runes := []rune(line)
	if len(runes) < 50 && unicode.IsUpper(runes[0]) {
		return true
	}

	return followedByBlank && len(runes) < 50
}

func isListItem(line string) bool {
	for _, prefix := range []string{"- ", "• ", "* "} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}

	runes := []rune(line)
	if len(runes) >= 3 && unicode.IsDigit(runes[0]) {
		rest := string(runes[1:3])
		return rest == ". " || rest == ") "
	}

	return false
}

func headingLevel(heading string) int {
	if strings.HasPrefix(heading, "#") {
		hashes := 0
		for _, r := range heading {
			if r != '#' {
				break
			}
			hashes++
		}
		return min(hashes, 6)
	}

	switch {
	case heading == strings.ToUpper(heading) && heading != strings.ToLower(heading):
		return 1
	case len([]rune(heading)) < 30:
		return 2
	default:
		return 3
	}
}

// findParentSection walks the tree breadth-first for the deepest section
// one level above the target.
func findParentSection(structure *ContentStructure, level int) *ContentSection {
	if level <= 1 {
		return nil
	}

	target := level - 1
	queue := make([]*ContentSection, 0, len(structure.Sections))
	for i := range structure.Sections {
		queue = append(queue, &structure.Sections[i])
	}

	var found *ContentSection
	for len(queue) > 0 {
		section := queue[0]
		queue = queue[1:]

		if section.Level == target {
			found = section
		}
		for i := range section.Subsections {
			queue = append(queue, &section.Subsections[i])
		}
	}

	return found
}
