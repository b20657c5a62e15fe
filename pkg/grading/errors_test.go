package grading

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader-api/pkg/imageref"
	"github.com/noah-isme/gema-grader-api/pkg/llm"
	"github.com/noah-isme/gema-grader-api/pkg/prompt"
)

func TestKindOfClassifiesWrappedErrors(t *testing.T) {
	cases := []struct {
		err  error
		kind Kind
	}{
		{err: fmt.Errorf("a.png: %w", imageref.ErrNotFound), kind: KindNotFound},
		{err: fmt.Errorf("a.png: %w", imageref.ErrIO), kind: KindIO},
		{err: &prompt.MissingContextError{Field: "question"}, kind: KindMissingContext},
		{err: fmt.Errorf("call: %w", &llm.UpstreamError{Provider: "gemini", Message: "quota"}), kind: KindUpstream},
		{err: &llm.MalformedResponseError{Text: "x", Err: errors.New("bad")}, kind: KindMalformed},
		{err: &Error{Kind: KindIO, State: StateStart, Err: errors.New("disk")}, kind: KindIO},
		{err: errors.New("boom"), kind: KindInternal},
	}

	for _, tc := range cases {
		require.Equal(t, tc.kind, KindOf(tc.err), tc.err.Error())
	}
	require.Equal(t, Kind(""), KindOf(nil))
}

func TestParseVariant(t *testing.T) {
	v, ok := ParseVariant("diagram")
	require.True(t, ok)
	require.Equal(t, ShapeCombined, ShapeOf(v))

	_, ok = ParseVariant("essay")
	require.False(t, ok)
}
