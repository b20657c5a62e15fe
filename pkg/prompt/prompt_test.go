package prompt

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder("")
	require.NoError(t, err)
	return b
}

func TestEvaluationSubstitutesFields(t *testing.T) {
	b := newBuilder(t)

	text, err := b.Evaluation(Fields{
		Question:   "Explain photosynthesis",
		GradeLevel: "7",
		MaxMarks:   10,
		Content:    "Plants make food from sunlight.",
	})
	require.NoError(t, err)
	require.Contains(t, text, "Explain photosynthesis")
	require.Contains(t, text, "Student's class:\n7")
	require.Contains(t, text, "score out of 10")
	require.Contains(t, text, "Plants make food from sunlight.")
	require.Contains(t, text, `"area_of_improvement"`)
	require.NotContains(t, text, "Chapter notes:")
}

func TestEvaluationIncludesNotesWhenPresent(t *testing.T) {
	b := newBuilder(t)

	text, err := b.Evaluation(Fields{
		Question:   "q",
		GradeLevel: "9",
		MaxMarks:   7.5,
		Content:    "a",
		Notes:      "Chloroplasts contain chlorophyll.",
	})
	require.NoError(t, err)
	require.Contains(t, text, "Chapter notes:\nChloroplasts contain chlorophyll.")
	require.Contains(t, text, "score out of 7.5")
}

func TestEvaluationMissingContext(t *testing.T) {
	b := newBuilder(t)
	base := Fields{Question: "q", GradeLevel: "5", MaxMarks: 5, Content: "answer"}

	cases := []struct {
		name  string
		edit  func(f *Fields)
		field string
	}{
		{name: "question", edit: func(f *Fields) { f.Question = "  " }, field: "question"},
		{name: "grade", edit: func(f *Fields) { f.GradeLevel = "" }, field: "grade_level"},
		{name: "marks", edit: func(f *Fields) { f.MaxMarks = 0 }, field: "max_marks"},
		{name: "content", edit: func(f *Fields) { f.Content = "" }, field: "content"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields := base
			tc.edit(&fields)

			_, err := b.Evaluation(fields)
			var missing *MissingContextError
			require.True(t, errors.As(err, &missing))
			require.Equal(t, tc.field, missing.Field)
		})
	}
}

func TestComparisonDoesNotRequireContent(t *testing.T) {
	b := newBuilder(t)

	text, err := b.Comparison(Fields{Question: "Label the parts of a flower", GradeLevel: "6", MaxMarks: 20})
	require.NoError(t, err)
	require.Contains(t, text, "30% of the marks")
	require.Contains(t, text, "70% of the marks")
	require.Contains(t, text, "Label the parts of a flower")
}

func TestExtractionVariants(t *testing.T) {
	b := newBuilder(t)

	text, err := b.Extraction(ExtractText)
	require.NoError(t, err)
	require.Contains(t, text, "Extract all text from this image.")

	math, err := b.Extraction(ExtractMath)
	require.NoError(t, err)
	require.Contains(t, math, "mathematical expressions")
}

func TestFormattingOmitsEmptyContext(t *testing.T) {
	b := newBuilder(t)

	system, user, err := b.Formatting("x^2 = 4", "")
	require.NoError(t, err)
	require.Contains(t, system, "typesetter")
	require.Contains(t, user, "x^2 = 4")

	_, withContext, err := b.Formatting("x^2 = 4", "This is a quadratic equation.")
	require.NoError(t, err)
	require.Contains(t, withContext, "This is a quadratic equation.")

	_, _, err = b.Formatting(" ", "")
	var missing *MissingContextError
	require.ErrorAs(t, err, &missing)
}

func TestOverrideDirectoryReplacesTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extract_text.tmpl"), []byte("Read the page."), 0o600))

	b, err := NewBuilder(dir)
	require.NoError(t, err)

	text, err := b.Extraction(ExtractText)
	require.NoError(t, err)
	require.Equal(t, "Read the page.", text)

	math, err := b.Extraction(ExtractMath)
	require.NoError(t, err)
	require.Contains(t, math, "mathematical expressions")
}

func TestOverrideWithBrokenTemplateFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "evaluate.tmpl"), []byte("{{.Question"), 0o600))

	_, err := NewBuilder(dir)
	require.Error(t, err)
}
