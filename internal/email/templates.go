package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title   string
	Heading string
}

type interestedLeadData struct {
	baseEmailData
	ContactName       string
	ContactEmail      string
	Classification    string
	ConfidencePct     float64
	LeadScore         int
	Priority          string
	EmailSubject      string
	EmailBody         string
	RecommendedAction string
}

type pendingReviewData struct {
	baseEmailData
	ContactName  string
	ContactEmail string
	SequenceType string
	StepNumber   int
	DraftSubject string
	DraftBody    string
}

type dailySummaryData struct {
	baseEmailData
	Date              string
	Processed         int
	Interested        int
	MaybeInterested   int
	NotInterested     int
	AutomatedFiltered int
	StepsSent         int
	ResponsesSent     int
	Opportunities     int
	FallbackUsed      int
	Errors            int
}

type sequenceStepData struct {
	baseEmailData
	Paragraphs []string
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

// RenderSequenceStepHTML wraps a plain-text step body in the shared email
// chrome, splitting paragraphs on blank lines.
func RenderSequenceStepHTML(subject, body string) (string, error) {
	var paragraphs []string
	for _, p := range strings.Split(body, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, strings.ReplaceAll(p, "\n", " "))
		}
	}
	return renderEmailTemplate("sequence_step.html", sequenceStepData{
		baseEmailData: baseEmailData{Title: subject, Heading: subject},
		Paragraphs:    paragraphs,
	})
}
