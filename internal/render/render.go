// Package render turns notification records into email subjects and HTML bodies.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/kursadbilgin/content-reminders/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[domain.Kind]string{
	domain.KindReminder:    "⏰ Content publication reminder",
	domain.KindOverdue:     "🚨 Overdue content",
	domain.KindPublished:   "🎉 Content published!",
	domain.KindDailyDigest: "📋 Daily content report",
}

// Subject returns the fixed subject line for a kind.
func Subject(kind domain.Kind) string {
	return subjects[kind]
}

// ItemView is the send-time view of a content item.
type ItemView struct {
	ID          string
	Title       string
	Body        string
	Platform    string
	ScheduledAt string
	MediaURLs   []string
}

// EmailData feeds the templates. Message is the snapshot stored on the record.
type EmailData struct {
	Subject string
	Message string
	Lines   []string
	Item    *ItemView
	AppURL  string
}

type Renderer struct {
	templates map[domain.Kind]*template.Template
	appURL    string
}

func NewRenderer(appURL string) (*Renderer, error) {
	templates := make(map[domain.Kind]*template.Template, len(subjects))
	for kind := range subjects {
		name := "templates/" + strings.ToLower(kind.String()) + ".html"
		tmpl, err := template.ParseFS(templateFS, "templates/base.html", name)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", kind, err)
		}
		templates[kind] = tmpl
	}

	return &Renderer{
		templates: templates,
		appURL:    strings.TrimSpace(appURL),
	}, nil
}

// Render builds the HTML body for a record. item may be nil for digests or when
// the item has since been deleted.
func (r *Renderer) Render(record *domain.NotificationRecord, item *ItemView) (string, error) {
	if record == nil {
		return "", fmt.Errorf("%w: record is required", domain.ErrValidation)
	}

	tmpl, ok := r.templates[record.Kind]
	if !ok {
		return "", fmt.Errorf("%w: no template for kind %q", domain.ErrValidation, record.Kind)
	}

	data := EmailData{
		Subject: Subject(record.Kind),
		Message: record.Message,
		Lines:   splitLines(record.Message),
		Item:    item,
		AppURL:  r.appURL,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		return "", fmt.Errorf("execute %s template: %w", record.Kind, err)
	}
	return buf.String(), nil
}

func splitLines(message string) []string {
	raw := strings.Split(message, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
