// Package prompt provides named prompt templates with declared variables,
// validated rendering, and a set of built-in templates for the standards
// workflows.
package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// slotPattern matches {name} variable slots. Names are identifiers, which
// keeps JSON braces in template bodies from being treated as slots.
var slotPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Template is a named prompt with typed variable slots.
type Template struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Template     string   `json:"template"`
	Variables    []string `json:"variables"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
}

// Store holds registered templates. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewStore creates a store preloaded with the built-in templates.
func NewStore() *Store {
	s := &Store{templates: make(map[string]*Template)}
	for _, tmpl := range builtinTemplates() {
		// Built-ins are well-formed by construction.
		_ = s.Register(tmpl)
	}
	return s
}

// Register adds a template. When the declared variable list is empty, it is
// derived by scanning the template body for {name} slots.
func (s *Store) Register(tmpl *Template) error {
	if tmpl.ID == "" {
		return fmt.Errorf("template id is required")
	}
	if tmpl.Template == "" {
		return fmt.Errorf("template %s: body is required", tmpl.ID)
	}

	if len(tmpl.Variables) == 0 {
		tmpl.Variables = ScanVariables(tmpl.Template)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[tmpl.ID] = tmpl
	return nil
}

// Get returns a template by id.
func (s *Store) Get(id string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tmpl, ok := s.templates[id]
	if !ok {
		return nil, fmt.Errorf("unknown template: %s", id)
	}
	return tmpl, nil
}

// List returns all registered template ids, sorted.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.templates))
	for id := range s.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Render substitutes bindings into the template. It fails when any declared
// variable is unbound; extra bindings are ignored. The template's system
// prompt is returned alongside the rendered text.
func (s *Store) Render(id string, bindings map[string]string) (rendered, systemPrompt string, err error) {
	tmpl, err := s.Get(id)
	if err != nil {
		return "", "", err
	}

	ok, missing := s.validate(tmpl, bindings)
	if !ok {
		return "", "", fmt.Errorf("template %s: missing variables: %s", id, strings.Join(missing, ", "))
	}
	return substitute(tmpl.Template, bindings), tmpl.SystemPrompt, nil
}

// RenderCustom renders an inline template string without registration.
// Every slot in the string must be bound.
func (s *Store) RenderCustom(template string, bindings map[string]string, systemPrompt string) (rendered, system string, err error) {
	tmpl := &Template{ID: "custom", Template: template, Variables: ScanVariables(template), SystemPrompt: systemPrompt}
	ok, missing := s.validate(tmpl, bindings)
	if !ok {
		return "", "", fmt.Errorf("custom template: missing variables: %s", strings.Join(missing, ", "))
	}
	return substitute(template, bindings), systemPrompt, nil
}

// Validate reports whether bindings satisfy the template's declared
// variables, returning the missing names.
func (s *Store) Validate(id string, bindings map[string]string) (bool, []string, error) {
	tmpl, err := s.Get(id)
	if err != nil {
		return false, nil, err
	}
	ok, missing := s.validate(tmpl, bindings)
	return ok, missing, nil
}

func (s *Store) validate(tmpl *Template, bindings map[string]string) (bool, []string) {
	var missing []string
	for _, name := range tmpl.Variables {
		if _, ok := bindings[name]; !ok {
			missing = append(missing, name)
		}
	}
	return len(missing) == 0, missing
}

// ScanVariables extracts the deduplicated slot names from a template body,
// in first-occurrence order.
func ScanVariables(template string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, match := range slotPattern.FindAllStringSubmatch(template, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			names = append(names, match[1])
		}
	}
	return names
}

// substitute replaces every bound {name} slot.
func substitute(template string, bindings map[string]string) string {
	return slotPattern.ReplaceAllStringFunc(template, func(slot string) string {
		name := slot[1 : len(slot)-1]
		if value, ok := bindings[name]; ok {
			return value
		}
		return slot
	})
}
