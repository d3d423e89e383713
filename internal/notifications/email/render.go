package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// Body is a rendered email body.
type Body struct {
	Text string
	HTML string
}

var htmlBody = template.Must(template.New("body").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
<h2>{{.Subject}}</h2>
{{if .Name}}<p>Hello {{.Name}},</p>{{end}}
{{range .Lines}}<p>{{.}}</p>
{{end}}</body>
</html>
`))

// Render produces the text and HTML bodies of a notification. Message lines
// become separate paragraphs in the HTML version and are escaped.
func Render(subject, name, message string) (Body, error) {
	var text strings.Builder
	if name != "" {
		fmt.Fprintf(&text, "Hello %s,\n\n", name)
	}
	text.WriteString(message)
	text.WriteString("\n")

	var buf bytes.Buffer
	err := htmlBody.Execute(&buf, struct {
		Subject string
		Name    string
		Lines   []string
	}{
		Subject: subject,
		Name:    name,
		Lines:   strings.Split(message, "\n"),
	})
	if err != nil {
		return Body{}, fmt.Errorf("render html body: %w", err)
	}
	return Body{Text: text.String(), HTML: buf.String()}, nil
}
