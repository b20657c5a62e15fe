package grading

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/gema-grader-api/pkg/llm"
)

const resultSchemaURL = "grading/result.schema.json"

// ResultSchema is the JSON schema a stage-2 reply must satisfy.
const ResultSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["score", "feedback", "area_of_improvement"],
  "properties": {
    "score": {"type": "number"},
    "feedback": {"$ref": "#/$defs/points"},
    "area_of_improvement": {"$ref": "#/$defs/points"},
    "scholarly_references": {"$ref": "#/$defs/points"}
  },
  "$defs": {
    "points": {
      "type": ["array", "string"],
      "items": {"type": "string"}
    }
  }
}`

var resultSchema = jsonschema.MustCompileString(resultSchemaURL, ResultSchema)

// decodeResult parses a stage-2 reply, validates it and clamps the score into [0, maxMarks].
func decodeResult(text string, maxMarks float64) (Result, bool, error) {
	var raw any
	if err := llm.DecodeJSON(text, &raw); err != nil {
		return Result{}, false, err
	}

	if err := resultSchema.Validate(raw); err != nil {
		return Result{}, false, &llm.MalformedResponseError{Text: llm.StripFences(text), Err: err}
	}

	obj := raw.(map[string]any)
	score, err := obj["score"].(json.Number).Float64()
	if err != nil {
		return Result{}, false, &llm.MalformedResponseError{Text: llm.StripFences(text), Err: fmt.Errorf("score: %w", err)}
	}

	clamped := false
	if score < 0 {
		score, clamped = 0, true
	}
	if maxMarks > 0 && score > maxMarks {
		score, clamped = maxMarks, true
	}

	return Result{
		Score:               score,
		Feedback:            points(obj["feedback"]),
		AreaOfImprovement:   points(obj["area_of_improvement"]),
		ScholarlyReferences: points(obj["scholarly_references"]),
	}, clamped, nil
}

func points(value any) []string {
	out := []string{}
	switch v := value.(type) {
	case string:
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				if trimmed := strings.TrimSpace(s); trimmed != "" {
					out = append(out, trimmed)
				}
			}
		}
	}
	return out
}
