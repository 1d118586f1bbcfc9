package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// AlertPayload carries everything a template needs to describe an alert.
type AlertPayload struct {
	ServiceName    string
	ServiceURL     string
	Status         domain.Status
	BecameCritical bool
	RunbookURL     string
	Officers       []domain.UserProfile
	Time           time.Time
}

// Renderer renders alert notifications from embedded templates, one per
// channel type.
type Renderer struct {
	templates map[domain.ChannelType]*template.Template
}

// NewRenderer creates a new renderer and loads all channel templates.
func NewRenderer() (*Renderer, error) {
	channels := []domain.ChannelType{
		domain.ChannelTypeEmail,
		domain.ChannelTypeChat,
		domain.ChannelTypeSMS,
		domain.ChannelTypePhone,
	}

	funcMap := template.FuncMap{
		"upper": strings.ToUpper,
	}

	r := &Renderer{templates: make(map[domain.ChannelType]*template.Template)}
	for _, channel := range channels {
		name := fmt.Sprintf("%s_alert", channel)
		filename := fmt.Sprintf("templates/%s.tmpl", name)

		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(name).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}

		r.templates[channel] = tmpl
	}

	return r, nil
}

// Render renders the alert for the given channel type. Returns subject
// and body; channels without a subject concept ignore it.
func (r *Renderer) Render(channelType domain.ChannelType, payload AlertPayload) (subject, body string, err error) {
	tmpl, ok := r.templates[channelType]
	if !ok {
		return "", "", fmt.Errorf("template not found for channel: %s", channelType)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, payload); err != nil {
		return "", "", fmt.Errorf("execute template for %s: %w", channelType, err)
	}

	subject = fmt.Sprintf("[%s] service %s reporting %s", payload.Status, payload.ServiceName, payload.Status)
	body = strings.TrimSpace(buf.String())
	return subject, body, nil
}
