package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	leadingFence  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	trailingFence = regexp.MustCompile("\\s*```$")
)

// StripFences removes an optional leading ``` or ```json fence and an optional trailing ``` fence.
// Each fence is removed independently, so a reply with only one of them is still cleaned.
func StripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = leadingFence.ReplaceAllString(cleaned, "")
	cleaned = trailingFence.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// DecodeJSON strips fences from text and decodes the remainder into v.
func DecodeJSON(text string, v any) error {
	cleaned := StripFences(text)
	if cleaned == "" {
		return &MalformedResponseError{Text: cleaned, Err: errors.New("empty response")}
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	decoder.UseNumber()
	if err := decoder.Decode(v); err != nil {
		return &MalformedResponseError{Text: cleaned, Err: err}
	}
	if decoder.More() {
		return &MalformedResponseError{Text: cleaned, Err: errors.New("unexpected content after json value")}
	}
	return nil
}
