package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Escalation {{.TriggerLabel}}]
Ticket: {{.Ticket}}
Priority: {{.Priority}}
Level: {{.Level}}
Recipients: {{.Recipients}}
{{ if gt .RepeatCount 1 }}Reminder: #{{.RepeatCount}}
{{ end }}Fired At: {{.FiredAt}}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	Ticket       string
	TicketID     string
	Priority     string
	Level        int
	Trigger      string
	TriggerLabel string
	Recipients   string
	RepeatCount  int
	FiredAt      string
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
	parsed, err := template.New("escalation-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("escalation template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
