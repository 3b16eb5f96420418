package workflow

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

//go:embed templates/*.yaml
var builtinTemplatesFS embed.FS

// Template categories.
const (
	CategoryCounting       = "counting"
	CategoryIdentification = "identification"
	CategoryAnalysis       = "analysis"
	CategoryComparison     = "comparison"
)

// Template is a reusable workflow skeleton. Its cards usually need images
// before they validate.
type Template struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Cards       []Card   `json:"cards"`

	raw []byte
}

// Instantiate returns a new workflow built from the template with fresh ids.
func (t *Template) Instantiate(name string) (*Workflow, error) {
	var fresh Template
	if err := json.Unmarshal(t.raw, &fresh); err != nil {
		return nil, fmt.Errorf("instantiate template %s: %w", t.ID, err)
	}
	if strings.TrimSpace(name) == "" {
		name = t.Name
	}
	wf := New(name)
	wf.Description = t.Description
	for _, c := range fresh.Cards {
		c.ID = uuid.NewString()
		wf.Cards = append(wf.Cards, c)
	}
	return wf, nil
}

// LoadTemplate parses a template from YAML or JSON.
func LoadTemplate(source string, data []byte) (*Template, error) {
	raw, err := toJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", source, err)
	}
	var tmpl Template
	if err := json.Unmarshal(raw, &tmpl); err != nil {
		return nil, fmt.Errorf("parse template %s: %w", source, err)
	}
	if strings.TrimSpace(tmpl.ID) == "" {
		return nil, fmt.Errorf("template %s missing id", source)
	}
	if len(tmpl.Cards) == 0 {
		return nil, fmt.Errorf("template %s has no cards", source)
	}
	tmpl.raw = raw
	return &tmpl, nil
}

// TemplateRegistry stores templates by id.
type TemplateRegistry struct {
	templates map[string]*Template
}

// NewTemplateRegistry builds a registry, rejecting duplicate ids.
func NewTemplateRegistry(templates []*Template) (*TemplateRegistry, error) {
	reg := &TemplateRegistry{templates: make(map[string]*Template)}
	for _, tmpl := range templates {
		if tmpl == nil {
			continue
		}
		if _, ok := reg.templates[tmpl.ID]; ok {
			return nil, fmt.Errorf("duplicate template id: %s", tmpl.ID)
		}
		reg.templates[tmpl.ID] = tmpl
	}
	return reg, nil
}

// BuiltinTemplates loads the embedded template set.
func BuiltinTemplates() (*TemplateRegistry, error) {
	entries, err := builtinTemplatesFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("read embedded templates: %w", err)
	}
	templates := make([]*Template, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := builtinTemplatesFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read embedded template %s: %w", entry.Name(), err)
		}
		tmpl, err := LoadTemplate(entry.Name(), data)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tmpl)
	}
	return NewTemplateRegistry(templates)
}

// Get returns the template with id.
func (r *TemplateRegistry) Get(id string) (*Template, error) {
	if r == nil {
		return nil, fmt.Errorf("template registry not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("template id is required")
	}
	tmpl, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %q not found", id)
	}
	return tmpl, nil
}

// List returns templates in category, or all of them when category is
// empty or "all", sorted by id.
func (r *TemplateRegistry) List(category string) []*Template {
	if r == nil {
		return nil
	}
	category = strings.ToLower(strings.TrimSpace(category))
	out := make([]*Template, 0, len(r.templates))
	for _, tmpl := range r.templates {
		if category == "" || category == "all" || tmpl.Category == category {
			out = append(out, tmpl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
