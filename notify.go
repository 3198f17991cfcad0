package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"wnsforms/constants"
)

var notifyHTTPClient = &http.Client{
	Timeout: constants.NOTIFY_TIMEOUT_SECONDS * time.Second,
}

// dispatchNotifications fans an accepted submission out to the form's
// configured channels. Each channel runs in its own goroutine and is
// isolated: a failure is logged and never affects the other channel or
// the HTTP response. Single attempt, no retries.
func dispatchNotifications(form *Form, data map[string]any, submission *FormSubmission) {
	if form.SlackWebhookURL != "" {
		go sendToSlack(form, data)
	}
	if form.NotificationEmail != "" {
		go sendEmailNotification(form, data, submission)
	}
}

// notifiedField is one renderable field of a notification payload.
type notifiedField struct {
	Key   string
	Value string
}

// notifiableFields returns the submission data as an ordered key/value
// list, following the form's field order, with array values flattened.
// Honeypot fields are excluded, as are internal keys the form has not
// claimed for a real field.
func notifiableFields(form *Form, data map[string]any) []notifiedField {
	var fields []notifiedField
	seen := make(map[string]bool)

	configured := make(map[string]bool, len(form.Fields))
	for _, field := range form.Fields {
		if field.Type != FieldTypeHoneypot {
			configured[field.Name] = true
		}
	}

	appendField := func(key string, value any) {
		if seen[key] {
			return
		}
		seen[key] = true
		if isInternalField(key) && !configured[key] {
			return
		}
		s, _ := valueAsString(value)
		fields = append(fields, notifiedField{Key: key, Value: s})
	}

	for _, field := range form.Fields {
		if field.Type == FieldTypeHoneypot {
			seen[field.Name] = true
			continue
		}
		if value, ok := data[field.Name]; ok {
			appendField(field.Name, value)
		}
	}
	for key, value := range data {
		appendField(key, value)
	}
	return fields
}

func isInternalField(key string) bool {
	for _, internal := range constants.INTERNAL_FIELDS {
		if key == internal {
			return true
		}
	}
	return false
}

// sendToSlack posts the submission as a block kit message to the form's
// webhook URL.
func sendToSlack(form *Form, data map[string]any) {
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type":  "plain_text",
				"text":  fmt.Sprintf("New form submission: %s", form.Name),
				"emoji": true,
			},
		},
		{"type": "divider"},
		{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": "*Form Data:*",
			},
		},
	}

	for _, field := range notifiableFields(form, data) {
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*%s:* %s", field.Key, field.Value),
			},
		})
	}

	blocks = append(blocks,
		map[string]any{"type": "divider"},
		map[string]any{
			"type": "context",
			"elements": []map[string]any{
				{
					"type": "mrkdwn",
					"text": "Submitted at: " + time.Now().Format("2006-01-02 15:04:05"),
				},
			},
		},
	)

	payload, err := json.Marshal(map[string]any{"blocks": blocks})
	if err != nil {
		slog.Error("failed to build slack payload", "form_id", form.ID, "error", err)
		return
	}

	resp, err := notifyHTTPClient.Post(form.SlackWebhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		slog.Error("failed to send to slack", "form_id", form.ID, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("slack webhook returned non-success status", "form_id", form.ID, "status", resp.StatusCode)
	}
}

var emailHTMLTemplate = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>New Form Submission</title></head>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="color: #2563eb;">New Form Submission: {{.FormName}}</h1>
	<p><strong>Form:</strong> {{.FormName}}<br>
	<strong>Submitted at:</strong> {{.SubmittedAt}}</p>
	<h2>Form Data:</h2>
	<table style="width: 100%; border-collapse: collapse;">
		<tr><th align="left">Field</th><th align="left">Value</th></tr>
		{{range .Fields}}<tr><td><strong>{{.Key}}</strong></td><td>{{.Value}}</td></tr>
		{{end}}
	</table>
	<p style="font-size: 12px; color: #6b7280;">This is an automated email sent by your WNSForms application.<br>
	IP Address: {{.IPAddress}}{{if .Referrer}}<br>Referrer: {{.Referrer}}{{end}}</p>
</body>
</html>
`))

type emailTemplateData struct {
	FormName    string
	SubmittedAt string
	Fields      []notifiedField
	IPAddress   string
	Referrer    string
}

// sendEmailNotification renders the plain-text and HTML bodies and mails
// them to the form's notification address.
func sendEmailNotification(form *Form, data map[string]any, submission *FormSubmission) {
	templateData := emailTemplateData{
		FormName:    form.Name,
		SubmittedAt: submission.CreatedAt.Format("2006-01-02 15:04:05"),
		IPAddress:   submission.IPAddress,
	}
	if submission.Referrer != nil {
		templateData.Referrer = *submission.Referrer
	}
	for _, field := range notifiableFields(form, data) {
		templateData.Fields = append(templateData.Fields, notifiedField{
			Key:   titleizeKey(field.Key),
			Value: field.Value,
		})
	}

	var text strings.Builder
	fmt.Fprintf(&text, "New Form Submission: %s\n\n", form.Name)
	fmt.Fprintf(&text, "Form: %s\n", form.Name)
	fmt.Fprintf(&text, "Submitted at: %s\n\n", templateData.SubmittedAt)
	text.WriteString("Form Data:\n")
	for _, field := range templateData.Fields {
		fmt.Fprintf(&text, "%s: %s\n", field.Key, field.Value)
	}
	text.WriteString("\n---\nThis is an automated email sent by your WNSForms application.\n")
	fmt.Fprintf(&text, "IP Address: %s\n", templateData.IPAddress)
	if templateData.Referrer != "" {
		fmt.Fprintf(&text, "Referrer: %s\n", templateData.Referrer)
	}

	var html bytes.Buffer
	if err := emailHTMLTemplate.Execute(&html, templateData); err != nil {
		slog.Error("failed to render notification email", "form_id", form.ID, "error", err)
		return
	}

	subject := fmt.Sprintf("New form submission: %s", form.Name)
	if err := SendMail([]string{form.NotificationEmail}, subject, text.String(), html.String()); err != nil {
		slog.Error("failed to send email notification", "form_id", form.ID, "error", err)
		return
	}
	slog.Info("email notification sent", "form_id", form.ID, "email", form.NotificationEmail)
}

// titleizeKey turns "full_name" into "Full name" for display.
func titleizeKey(key string) string {
	key = strings.ReplaceAll(key, "_", " ")
	runes := []rune(key)
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}
