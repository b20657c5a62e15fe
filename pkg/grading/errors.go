package grading

import (
	"errors"
	"fmt"

	"github.com/noah-isme/gema-grader-api/pkg/imageref"
	"github.com/noah-isme/gema-grader-api/pkg/llm"
	"github.com/noah-isme/gema-grader-api/pkg/prompt"
)

// Kind classifies why an evaluation failed.
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindIO             Kind = "io"
	KindMissingContext Kind = "missing_context"
	KindUpstream       Kind = "upstream"
	KindMalformed      Kind = "malformed"
	KindInternal       Kind = "internal"
)

// ErrUnknownVariant is returned for a variant with no registered flow.
var ErrUnknownVariant = errors.New("unknown grading variant")

// Error records the failure kind and the state the run was in when it failed.
type Error struct {
	Kind  Kind
	State State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("grading failed at %s (%s): %v", e.State, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf classifies any error produced while grading.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var gradingErr *Error
	if errors.As(err, &gradingErr) {
		return gradingErr.Kind
	}
	return classify(err)
}

func classify(err error) Kind {
	var (
		missing   *prompt.MissingContextError
		upstream  *llm.UpstreamError
		malformed *llm.MalformedResponseError
	)

	switch {
	case errors.Is(err, imageref.ErrNotFound):
		return KindNotFound
	case errors.Is(err, imageref.ErrIO):
		return KindIO
	case errors.As(err, &missing):
		return KindMissingContext
	case errors.As(err, &upstream):
		return KindUpstream
	case errors.As(err, &malformed):
		return KindMalformed
	default:
		return KindInternal
	}
}
