package providers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// maxStructuredRepairAttempts bounds the follow-up turns sent when a reply
// fails to parse or validate.
const maxStructuredRepairAttempts = 2

// ErrStructuredOutput is returned when a reply cannot be turned into JSON
// matching the requested schema.
var ErrStructuredOutput = errors.New("structured output invalid")

// compiled schemas keyed by their canonical text.
var schemaCache sync.Map

// DecodeStructured extracts the JSON document from a model reply and
// validates it against schemaRaw. Code fences and prose around the JSON are
// tolerated. An empty schema skips validation.
func DecodeStructured(content string, schemaRaw json.RawMessage) (json.RawMessage, error) {
	parsed, err := parseStructuredJSON(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStructuredOutput, err)
	}
	if err := validateStructuredJSON(schemaRaw, parsed); err != nil {
		return parsed, fmt.Errorf("%w: %w", ErrStructuredOutput, err)
	}
	return parsed, nil
}

// parseStructuredJSON tries the reply as-is, without a surrounding code
// fence, and then the outermost {...} or [...] span.
func parseStructuredJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New("empty reply")
	}

	for _, candidate := range []string{content, stripCodeFences(content), extractJSONCandidate(content)} {
		if candidate == "" {
			continue
		}
		var doc any
		if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
			continue
		}
		normalized, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("normalize reply: %w", err)
		}
		return normalized, nil
	}
	return nil, errors.New("reply contains no JSON document")
}

func stripCodeFences(content string) string {
	if !strings.HasPrefix(content, "```") {
		return ""
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return ""
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// extractJSONCandidate returns the span from the first opening bracket to
// the last matching closing bracket.
func extractJSONCandidate(content string) string {
	start := strings.IndexAny(content, "{[")
	if start < 0 {
		return ""
	}
	closer := "}"
	if content[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(content, closer)
	if end < start {
		return ""
	}
	return strings.TrimSpace(content[start : end+1])
}

func validateStructuredJSON(schemaRaw, parsed json.RawMessage) error {
	if len(schemaRaw) == 0 {
		return nil
	}
	schema, err := compileSchema(schemaRaw)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(parsed, &doc); err != nil {
		return fmt.Errorf("decode reply for validation: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("reply does not match schema: %w", err)
	}
	return nil
}

func compileSchema(schemaRaw json.RawMessage) (*jsonschema.Schema, error) {
	core, err := extractValidationSchema(schemaRaw)
	if err != nil {
		return nil, err
	}
	key := string(core)
	if cached, ok := schemaCache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(core)); err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	schemaCache.Store(key, schema)
	return schema, nil
}

// extractValidationSchema unwraps the {"name","strict","schema":{...}}
// envelope used for json_schema response formats.
func extractValidationSchema(schemaRaw json.RawMessage) (json.RawMessage, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(schemaRaw, &root); err != nil {
		return nil, fmt.Errorf("invalid schema JSON: %w", err)
	}
	if inner, ok := root["schema"]; ok {
		return inner, nil
	}
	return schemaRaw, nil
}

// structuredRepairPrompt asks the model to resend a conforming document.
func structuredRepairPrompt(schemaRaw json.RawMessage, lastOutput string, issue error) string {
	lastOutput = strings.TrimSpace(lastOutput)
	if len(lastOutput) > 12000 {
		lastOutput = lastOutput[:12000] + "\n...[truncated]"
	}
	return fmt.Sprintf(`Return ONLY valid JSON (no markdown, no commentary) that conforms to this schema.

Schema:
%s

Your previous output:
%s

Problem:
%v`, string(schemaRaw), lastOutput, issue)
}
