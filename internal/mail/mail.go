// Package mail renders and delivers reminder emails.
package mail

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"todocal/internal/model"
)

// Reminder is everything a reminder message shows.
type Reminder struct {
	To      string
	Name    string
	Title   string
	DueDate model.Date
	DueTime model.TimeOfDay
	Minutes int
}

// Sender delivers reminder messages.
type Sender interface {
	SendReminder(ctx context.Context, r Reminder) error
}

// Message is a rendered reminder.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

const subjectPrefix = "[Todo Reminder] "

var htmlBody = htmltemplate.Must(htmltemplate.New("reminder.html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #333;">
  <h2 style="color: #4a6cf7;">Todo reminder</h2>
  <p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
  <p>Your todo is coming up{{if .Minutes}} in {{.Minutes}} minutes{{end}}.</p>
  <table style="border-collapse: collapse;">
    <tr><td style="padding: 4px 12px 4px 0;"><strong>Title</strong></td><td>{{.Title}}</td></tr>
    <tr><td style="padding: 4px 12px 4px 0;"><strong>Date</strong></td><td>{{.DueDate}}</td></tr>
    <tr><td style="padding: 4px 12px 4px 0;"><strong>Time</strong></td><td>{{.DueTime}}</td></tr>
  </table>
</body>
</html>
`))

var textBody = texttemplate.Must(texttemplate.New("reminder.txt").Parse(`Hi {{if .Name}}{{.Name}}{{else}}there{{end}},

Your todo is coming up{{if .Minutes}} in {{.Minutes}} minutes{{end}}.

Title: {{.Title}}
Date:  {{.DueDate}}
Time:  {{.DueTime}}
`))

// Render builds the subject and both bodies for r.
func Render(r Reminder) (Message, error) {
	var html, text bytes.Buffer
	if err := htmlBody.Execute(&html, r); err != nil {
		return Message{}, fmt.Errorf("render html body: %w", err)
	}
	if err := textBody.Execute(&text, r); err != nil {
		return Message{}, fmt.Errorf("render text body: %w", err)
	}
	return Message{
		Subject: subjectPrefix + r.Title,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
