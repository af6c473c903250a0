package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title   string
	Heading string
}

// LeadHandoff describes a HOT lead the sales desk should call now.
type LeadHandoff struct {
	Name   string
	Phone  string
	Score  int
	Action string
	CallID string
}

// CallbackReminder describes a callback that is about to fall due.
type CallbackReminder struct {
	Name          string
	Phone         string
	PreferredTime string
	ScheduledAt   string
	Timezone      string
	Reason        string
}

type leadHandoffEmailData struct {
	baseEmailData
	LeadHandoff
}

type callbackReminderEmailData struct {
	baseEmailData
	CallbackReminder
}

// RenderLeadHandoff returns the subject and HTML body of a handoff alert.
func RenderLeadHandoff(data LeadHandoff) (string, string, error) {
	label := displayName(data.Name, data.Phone)
	content, err := renderEmailTemplate("lead_handoff.html", leadHandoffEmailData{
		baseEmailData: baseEmailData{Title: "HOT lead", Heading: "A qualified lead is waiting"},
		LeadHandoff:   data,
	})
	if err != nil {
		return "", "", err
	}
	return fmt.Sprintf(subjectLeadHandoffFmt, label), content, nil
}

// RenderCallbackReminder returns the subject and HTML body of a callback reminder.
func RenderCallbackReminder(data CallbackReminder) (string, string, error) {
	label := displayName(data.Name, data.Phone)
	content, err := renderEmailTemplate("callback_reminder.html", callbackReminderEmailData{
		baseEmailData:    baseEmailData{Title: "Callback reminder", Heading: "Callback due soon"},
		CallbackReminder: data,
	})
	if err != nil {
		return "", "", err
	}
	return fmt.Sprintf(subjectCallbackReminderFmt, label), content, nil
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

func displayName(name, phone string) string {
	if name == "" {
		return phone
	}
	return fmt.Sprintf("%s (%s)", name, phone)
}
