package notify

import (
	"bytes"
	"errors"
	"strings"
	"text/template"
)

const DefaultTemplate = `[{{.EventLabel}}]
{{- if .Scenario}}
Scenario: {{.Scenario}} {{.ScenarioName}}
Run: {{.RunID}}
Phase: {{.Phase}}
{{- else}}
Module: {{.Module}}
Severity: {{.Severity}}
Code: {{.Code}}
Message: {{.Message}}
{{- if .Rule}}
Symptom: {{.Rule}}
{{- end}}
{{- if .Tags}}
Tags: {{join .Tags ", "}}
{{- end}}
{{- end}}
Time: {{.OccurredAt}}
Suggestion: {{.Suggestion}}
`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	Event        string
	EventLabel   string
	Module       string
	Severity     string
	Code         int
	Message      string
	Rule         string
	Tags         []string
	Scenario     string
	ScenarioName string
	RunID        string
	Phase        string
	OccurredAt   string
	Suggestion   string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("alarm-notification").
		Funcs(template.FuncMap{"join": strings.Join}).
		Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("alarm template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
