package prompt

// Built-in template identifiers.
const (
	TemplateCodeAnalysis      = "code_analysis"
	TemplateStandardsResearch = "standards_research"
	TemplateCodeGeneration    = "code_generation"
	TemplateBugFix            = "bug_fix"
	TemplateCodeReview        = "code_review"
	TemplateRefactoring       = "refactoring"
	TemplateDocumentation     = "documentation"
	TemplateTestGeneration    = "test_generation"
)

// builtinTemplates returns the templates every store starts with.
func builtinTemplates() []*Template {
	return []*Template{
		{
			ID:   TemplateCodeAnalysis,
			Name: "Code Analysis",
			SystemPrompt: `You are a senior software engineer performing a standards compliance review.
You judge code strictly against the provided standards, cite the exact standard
violated for every finding, and never invent standards that were not supplied.
Respond with JSON only.`,
			Template: `Analyze the following {language} code against the standards below.

## Standards

{standards}

## Code

` + "```{language}\n{code}\n```" + `

Focus area: {focus}

Return a JSON object:
{
  "violations": [
    {"standard": "...", "line": 0, "message": "...", "severity": "critical|high|medium|low", "suggestion": "..."}
  ],
  "summary": "..."
}`,
			Variables: []string{"language", "standards", "code", "focus"},
		},
		{
			ID:   TemplateStandardsResearch,
			Name: "Standards Research",
			SystemPrompt: `You are a principal engineer who writes engineering standards for development
teams. Your standards are specific, actionable, and justified. You ground every
recommendation in widely accepted industry practice and call out the failure
modes the standard prevents. Respond with JSON only.`,
			Template: `Research and draft a coding standard.

Topic: {topic}
Language: {language}
Category: {category}

Reference material:

{references}

Return a JSON object:
{
  "name": "short title",
  "description": "full markdown body of the standard",
  "severity": "critical|high|medium|low",
  "examples": [{"title": "...", "before": "...", "after": "...", "explanation": "..."}]
}`,
			Variables: []string{"topic", "language", "category", "references"},
		},
		{
			ID:   TemplateCodeGeneration,
			Name: "Code Generation",
			SystemPrompt: `You are an expert software developer. You produce complete, idiomatic,
production-quality code that follows the supplied standards exactly.`,
			Template: `Generate {language} code for the following requirement, honoring every
standard listed.

Requirement: {requirement}

Standards:

{standards}`,
			Variables: []string{"language", "requirement", "standards"},
		},
		{
			ID:   TemplateBugFix,
			Name: "Bug Fix",
			SystemPrompt: `You are a debugging specialist. You find root causes, not symptoms, and your
fixes are minimal and targeted. Explain the cause before the fix.`,
			Template: `Fix the bug described below.

Description: {description}

Code:

` + "```{language}\n{code}\n```" + `

Error output (if any):

{error_output}`,
			Variables: []string{"description", "language", "code", "error_output"},
		},
		{
			ID:   TemplateCodeReview,
			Name: "Code Review",
			SystemPrompt: `You are a thorough but constructive code reviewer. You prioritize correctness
and security findings over style, and every comment includes a concrete
suggestion.`,
			Template: `Review this {language} change.

{code}

Team standards to enforce:

{standards}`,
			Variables: []string{"language", "code", "standards"},
		},
		{
			ID:   TemplateRefactoring,
			Name: "Refactoring",
			SystemPrompt: `You are a refactoring expert. You improve structure without changing behavior,
and you state which standard motivates each transformation.`,
			Template: `Refactor the following {language} code to satisfy the goal.

Goal: {goal}

` + "```{language}\n{code}\n```",
			Variables: []string{"language", "goal", "code"},
		},
		{
			ID:   TemplateDocumentation,
			Name: "Documentation",
			SystemPrompt: `You are a technical writer who documents engineering standards for working
developers. You write practical, example-driven documentation in markdown.`,
			Template: `Write documentation for the standard below.

Standard: {standard}

Audience: {audience}

Include: implementation guidance, examples, common pitfalls, and a short FAQ.`,
			Variables: []string{"standard", "audience"},
		},
		{
			ID:   TemplateTestGeneration,
			Name: "Test Generation",
			SystemPrompt: `You are a test engineer. You write focused tests that verify behavior, cover
edge cases, and fail with clear messages. Match the project's test framework
and style.`,
			Template: `Generate tests for this {language} code.

` + "```{language}\n{code}\n```" + `

Framework: {framework}
Cover at minimum: {requirements}`,
			Variables: []string{"language", "code", "framework", "requirements"},
		},
	}
}
