package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/slidesmith/slidesmith/internal/faults"
)

// structureSchema constrains what the analysis backends may return before
// it is accepted as the document structure. Violations degrade the
// alternative rather than failing the job outright.
const structureSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "subtitle": {"type": "string"},
    "sections": {
      "type": "array",
      "items": {"$ref": "#/$defs/section"}
    }
  },
  "$defs": {
    "section": {
      "type": "object",
      "required": ["level"],
      "properties": {
        "level": {"type": "integer", "minimum": 1, "maximum": 6},
        "title": {"type": "string"},
        "elements": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["element_type", "content"],
            "properties": {
              "element_type": {"enum": ["paragraph", "list", "quote", "code"]},
              "content": {"type": "string"}
            }
          }
        },
        "subsections": {
          "type": "array",
          "items": {"$ref": "#/$defs/section"}
        }
      }
    }
  }
}`

var compiledStructureSchema = jsonschema.MustCompileString(
	"slidesmith://schemas/content-structure.json", structureSchema,
)

// validateStructure checks an analysis result against the content
// structure schema.
func validateStructure(structure *ContentStructure) error {
	buf, err := json.Marshal(structure)
	if err != nil {
		return fmt.Errorf("encode structure: %w", err)
	}

	var doc any
	if err := json.Unmarshal(buf, &doc); err != nil {
		return fmt.Errorf("reshape structure: %w", err)
	}

	if err := compiledStructureSchema.Validate(doc); err != nil {
		return faults.Wrap(faults.KindValidation, "content structure failed schema validation", err)
	}

	return nil
}
