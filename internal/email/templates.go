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

type bookingRequestedEmailData struct {
	baseEmailData
	Reference   string
	MemberName  string
	VenueName   string
	BayLabel    string
	StartTime   string
	PlayerCount int
}

type bookingStatusEmailData struct {
	baseEmailData
	Reference  string
	MemberName string
	Previous   string
	Next       string
	Reason     string
}

type supportHandoffEmailData struct {
	baseEmailData
	MemberName string
	Phone      string
	Topic      string
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
