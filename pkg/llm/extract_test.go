package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"score\": 4}\n```":   `{"score": 4}`,
		"```JSON {\"score\": 4}```":      `{"score": 4}`,
		"```\n{\"score\": 4}\n```":       `{"score": 4}`,
		"  {\"score\": 4}  ":             `{"score": 4}`,
		"```json\n{\"score\": 4}":        `{"score": 4}`,
		"{\"score\": 4}\n```":            `{"score": 4}`,
		"\n\n```json\n[1,2]\n```\n\n":    `[1,2]`,
	}

	for input, want := range cases {
		require.Equal(t, want, StripFences(input), input)
	}
}

func TestDecodeJSONFencedPayload(t *testing.T) {
	var payload map[string]any
	err := DecodeJSON("```json\n{\"score\": 7, \"feedback\": [\"good\"]}\n```", &payload)
	require.NoError(t, err)
	require.Equal(t, json.Number("7"), payload["score"])
	require.Equal(t, []any{"good"}, payload["feedback"])
}

func TestDecodeJSONMalformed(t *testing.T) {
	var payload map[string]any
	err := DecodeJSON("```json\nScore: 7 out of 10\n```", &payload)

	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, "Score: 7 out of 10", malformed.Text)
}

func TestDecodeJSONEmpty(t *testing.T) {
	var payload map[string]any
	err := DecodeJSON("```json\n```", &payload)

	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	require.Empty(t, malformed.Text)
}

func TestDecodeJSONTrailingText(t *testing.T) {
	var payload map[string]any
	err := DecodeJSON(`{"score": 1} and some commentary`, &payload)

	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
}
