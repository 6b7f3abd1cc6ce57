package split_sections

import "encoding/json"

// Schema is the JSON schema for section splitting output.
var Schema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "section_split",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sections": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"title": map[string]any{
								"type":        "string",
								"description": "Clear descriptive title for this section",
							},
							"startPage": map[string]any{
								"type":        "integer",
								"description": "Page number where the section starts",
							},
							"endPage": map[string]any{
								"type":        "integer",
								"description": "Page number where the section ends",
							},
							"summary": map[string]any{
								"type":        "string",
								"description": "1-2 sentence summary of what this section covers",
							},
						},
						"required":             []string{"title", "startPage", "endPage"},
						"additionalProperties": false,
					},
					"description": "Sections in reading order",
				},
			},
			"required":             []string{"sections"},
			"additionalProperties": false,
		},
	},
}

// JSONSchema returns the inner json_schema object for a ResponseFormat.
func JSONSchema() json.RawMessage {
	raw, err := json.Marshal(Schema["json_schema"])
	if err != nil {
		panic(err)
	}
	return raw
}
