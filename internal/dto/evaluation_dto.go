package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/gema-grader-api/pkg/grading"
)

// Marks accepts a JSON number or a numeric string.
type Marks float64

// UnmarshalJSON implements json.Unmarshaler.
func (m *Marks) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*m = 0
			return nil
		}
		value, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("marks must be numeric: %w", err)
		}
		*m = Marks(value)
		return nil
	}
	var value float64
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return fmt.Errorf("marks must be numeric: %w", err)
	}
	*m = Marks(value)
	return nil
}

// Label accepts a JSON string or number, e.g. a class given as 7 or "7th".
type Label string

// UnmarshalJSON implements json.Unmarshaler.
func (l *Label) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*l = Label(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*l = Label(n.String())
	return nil
}

// EvaluationRequest is the payload accepted by every evaluation endpoint.
type EvaluationRequest struct {
	Path               string `json:"path" validate:"required,max=2048"`
	AssignmentMaxMarks Marks  `json:"assignment_max_marks" validate:"required,gt=0"`
	StudentClass       Label  `json:"student_class" validate:"required,max=40"`
	AssignQue          string `json:"assign_que" validate:"required,max=4000"`
	ExpectedOutputPath string `json:"expected_output_path" validate:"omitempty,max=2048"`
	Notes              string `json:"notes" validate:"omitempty,max=20000"`
	NotifyEmail        string `json:"notify_email" validate:"omitempty,email,max=254"`
}

// EvaluationResponse wraps the graded result and the stage-1 transcription.
type EvaluationResponse struct {
	ID            string         `json:"id"`
	Variant       string         `json:"variant"`
	Result        grading.Result `json:"result"`
	RawStage1Text string         `json:"raw_stage1_text,omitempty"`
	RefinedText   string         `json:"refined_text,omitempty"`
	Notified      bool           `json:"notified"`
}

// TranscriptionRequest asks for a multi-pass transcription of handwritten mathematics.
type TranscriptionRequest struct {
	Path    string `json:"path" validate:"required,max=2048"`
	Refine  *bool  `json:"refine"`
	Format  *bool  `json:"format"`
	Context string `json:"context" validate:"omitempty,max=2000"`
	Detail  string `json:"detail" validate:"omitempty,oneof=low high auto"`
}

// TranscriptionResponse returns every pass that ran plus the final text.
type TranscriptionResponse struct {
	Initial   string `json:"initial"`
	Refined   string `json:"refined,omitempty"`
	Formatted string `json:"formatted,omitempty"`
	Final     string `json:"final"`
}

// NewTranscriptionResponse maps a pipeline transcription to its response payload.
func NewTranscriptionResponse(t grading.Transcription) TranscriptionResponse {
	return TranscriptionResponse{
		Initial:   t.Initial,
		Refined:   t.Refined,
		Formatted: t.Formatted,
		Final:     t.Final(),
	}
}
