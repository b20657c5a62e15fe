package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var embedded embed.FS

const (
	nameExtractText   = "extract_text"
	nameExtractMath   = "extract_math"
	nameRefineMath    = "refine_math"
	nameFormatSystem  = "format_math_system"
	nameFormatMath    = "format_math"
	nameEvaluate      = "evaluate"
	nameCompare       = "compare"
	templateExtension = ".tmpl"
)

var templateNames = []string{
	nameExtractText,
	nameExtractMath,
	nameRefineMath,
	nameFormatSystem,
	nameFormatMath,
	nameEvaluate,
	nameCompare,
}

// Extraction selects the stage-1 transcription instruction.
type Extraction int

const (
	// ExtractText asks for a literal transcription of written text.
	ExtractText Extraction = iota
	// ExtractMath asks for a transcription that preserves mathematical symbols.
	ExtractMath
)

// MissingContextError reports a required evaluation field that was empty.
type MissingContextError struct {
	Field string
}

func (e *MissingContextError) Error() string {
	return fmt.Sprintf("missing evaluation context: %s", e.Field)
}

// Fields carries the values substituted into evaluation prompts.
type Fields struct {
	Question   string
	GradeLevel string
	MaxMarks   float64
	Content    string
	Notes      string
}

// RequireContext verifies the fields every evaluation prompt needs.
func RequireContext(f Fields) error {
	switch {
	case strings.TrimSpace(f.Question) == "":
		return &MissingContextError{Field: "question"}
	case strings.TrimSpace(f.GradeLevel) == "":
		return &MissingContextError{Field: "grade_level"}
	case f.MaxMarks <= 0:
		return &MissingContextError{Field: "max_marks"}
	}
	return nil
}

// Builder renders prompt templates. Templates found in the override directory replace the built-in ones.
type Builder struct {
	templates map[string]*template.Template
}

// NewBuilder parses the built-in templates and any overrides in overrideDir.
func NewBuilder(overrideDir string) (*Builder, error) {
	b := &Builder{templates: make(map[string]*template.Template, len(templateNames))}

	for _, name := range templateNames {
		source, err := loadTemplate(name, overrideDir)
		if err != nil {
			return nil, err
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(source)
		if err != nil {
			return nil, fmt.Errorf("parse prompt %s: %w", name, err)
		}
		b.templates[name] = tmpl
	}

	return b, nil
}

func loadTemplate(name, overrideDir string) (string, error) {
	if overrideDir != "" {
		path := filepath.Join(overrideDir, name+templateExtension)
		if data, err := os.ReadFile(path); err == nil && len(bytes.TrimSpace(data)) > 0 {
			return string(data), nil
		}
	}

	data, err := embedded.ReadFile("templates/" + name + templateExtension)
	if err != nil {
		return "", fmt.Errorf("load prompt %s: %w", name, err)
	}
	return string(data), nil
}

// Extraction returns the stage-1 instruction for the requested transcription style.
func (b *Builder) Extraction(kind Extraction) (string, error) {
	switch kind {
	case ExtractMath:
		return b.render(nameExtractMath, nil)
	default:
		return b.render(nameExtractText, nil)
	}
}

// Refinement asks the model to correct a transcript against the original image.
func (b *Builder) Refinement(transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", &MissingContextError{Field: "transcript"}
	}
	return b.render(nameRefineMath, map[string]string{"Transcript": transcript})
}

// Formatting returns the system and user instructions for typesetting a verified transcript.
func (b *Builder) Formatting(transcript, problemContext string) (string, string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", "", &MissingContextError{Field: "transcript"}
	}
	system, err := b.render(nameFormatSystem, nil)
	if err != nil {
		return "", "", err
	}
	user, err := b.render(nameFormatMath, map[string]string{
		"Transcript":     transcript,
		"ProblemContext": strings.TrimSpace(problemContext),
	})
	if err != nil {
		return "", "", err
	}
	return system, user, nil
}

// Evaluation builds the stage-2 grading instruction over an extracted answer.
func (b *Builder) Evaluation(f Fields) (string, error) {
	if err := RequireContext(f); err != nil {
		return "", err
	}
	if strings.TrimSpace(f.Content) == "" {
		return "", &MissingContextError{Field: "content"}
	}
	return b.render(nameEvaluate, f)
}

// Comparison builds the combined instruction that grades a drawing against a reference image.
func (b *Builder) Comparison(f Fields) (string, error) {
	if err := RequireContext(f); err != nil {
		return "", err
	}
	return b.render(nameCompare, f)
}

func (b *Builder) render(name string, data any) (string, error) {
	tmpl, ok := b.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
