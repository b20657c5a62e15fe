package llm

import "fmt"

// UpstreamError wraps any failure talking to a model provider, including empty responses.
type UpstreamError struct {
	Provider string
	Model    string
	Message  string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("%s (%s): %s", e.Provider, e.Model, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// MalformedResponseError reports model output that could not be decoded as the expected JSON.
// Text holds the fence-stripped content that was attempted.
type MalformedResponseError struct {
	Text string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func upstream(provider, model string, err error) *UpstreamError {
	return &UpstreamError{Provider: provider, Model: model, Message: err.Error(), Err: err}
}
