package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_BuiltinsPresent(t *testing.T) {
	s := NewStore()
	for _, id := range []string{
		TemplateCodeAnalysis,
		TemplateStandardsResearch,
		TemplateCodeGeneration,
		TemplateBugFix,
		TemplateCodeReview,
		TemplateRefactoring,
		TemplateDocumentation,
		TemplateTestGeneration,
	} {
		tmpl, err := s.Get(id)
		require.NoError(t, err, id)
		assert.NotEmpty(t, tmpl.SystemPrompt, "%s should frame the LLM as an expert", id)
		assert.NotEmpty(t, tmpl.Variables, id)
	}
	assert.GreaterOrEqual(t, len(s.List()), 8)
}

func TestStore_RegisterDerivesVariables(t *testing.T) {
	s := NewStore()
	err := s.Register(&Template{
		ID:       "greeting",
		Template: "Hello {name}, welcome to {place}. Goodbye {name}.",
	})
	require.NoError(t, err)

	tmpl, err := s.Get("greeting")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "place"}, tmpl.Variables)
}

func TestStore_RegisterRejectsEmpty(t *testing.T) {
	s := NewStore()
	assert.Error(t, s.Register(&Template{Template: "body"}))
	assert.Error(t, s.Register(&Template{ID: "x"}))
}

func TestStore_Render(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Register(&Template{
		ID:           "t",
		Template:     "Analyze {code} in {language}",
		SystemPrompt: "You are an expert.",
	}))

	rendered, system, err := s.Render("t", map[string]string{
		"code":     "x := 1",
		"language": "go",
		"extra":    "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "Analyze x := 1 in go", rendered)
	assert.Equal(t, "You are an expert.", system)
}

func TestStore_RenderMissingVariable(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Register(&Template{ID: "t", Template: "{a} {b}"}))

	_, _, err := s.Render("t", map[string]string{"a": "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")

	ok, missing, err := s.Validate("t", map[string]string{"a": "1"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, missing)
}

func TestStore_RenderUnknownTemplate(t *testing.T) {
	s := NewStore()
	_, _, err := s.Render("nope", nil)
	assert.Error(t, err)

	_, _, err = s.Validate("nope", nil)
	assert.Error(t, err)
}

func TestStore_RenderCustom(t *testing.T) {
	s := NewStore()

	rendered, system, err := s.RenderCustom("Summarize {text}", map[string]string{"text": "the doc"}, "Be brief.")
	require.NoError(t, err)
	assert.Equal(t, "Summarize the doc", rendered)
	assert.Equal(t, "Be brief.", system)

	_, _, err = s.RenderCustom("Summarize {text}", nil, "")
	assert.Error(t, err)
}

func TestStore_JSONBracesAreNotSlots(t *testing.T) {
	s := NewStore()
	tmpl, err := s.Get(TemplateCodeAnalysis)
	require.NoError(t, err)

	// The embedded JSON example must not contribute variables.
	assert.ElementsMatch(t, []string{"language", "standards", "code", "focus"}, tmpl.Variables)
}

func TestScanVariables(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ScanVariables("{a}{b}{a}"))
	assert.Empty(t, ScanVariables(`{"json": "object"}`))
	assert.Empty(t, ScanVariables("no slots"))
}
