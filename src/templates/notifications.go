package templates

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed notifications/*
var notificationTemplates embed.FS

// Notification kinds
const (
	KeyRequested = "key_requested"
	KeyApproved  = "key_approved"
	KeyRejected  = "key_rejected"
)

// MessageTemplate is one subject/body pair from messages.yaml
type MessageTemplate struct {
	Subject string `yaml:"subject"`
	Text    string `yaml:"text"`
}

// MessageData holds the fields available to notification templates
type MessageData struct {
	BlogTitle        string
	AuthorName       string
	BaseURL          string
	RequestID        string
	AgentName        string
	AgentDescription string
	ContactEmail     string
}

// Rendered is a notification ready to send
type Rendered struct {
	Subject string
	Text    string
}

// LoadMessages loads the embedded notification templates
func LoadMessages() (map[string]MessageTemplate, error) {
	data, err := notificationTemplates.ReadFile("notifications/messages.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read notification templates: %w", err)
	}

	var messages map[string]MessageTemplate
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse notification templates: %w", err)
	}

	return messages, nil
}

// Render fills the named template with data
func Render(kind string, data MessageData) (*Rendered, error) {
	messages, err := LoadMessages()
	if err != nil {
		return nil, err
	}

	msg, ok := messages[kind]
	if !ok {
		return nil, fmt.Errorf("unknown notification template %q", kind)
	}

	subject, err := execute(kind+"-subject", msg.Subject, data)
	if err != nil {
		return nil, err
	}
	text, err := execute(kind+"-text", msg.Text, data)
	if err != nil {
		return nil, err
	}

	return &Rendered{Subject: subject, Text: text}, nil
}

func execute(name, body string, data MessageData) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}

	return buf.String(), nil
}
