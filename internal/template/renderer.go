// Package template renders notification subjects and bodies from Go
// templates. Subject and text parts use text/template; the HTML part uses
// html/template for contextual escaping.
package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"os"
	"path/filepath"
	"strings"
	texttemplate "text/template"

	"github.com/example/event-notifier/internal/config"
	"github.com/example/event-notifier/internal/event"
	"github.com/example/event-notifier/internal/notify"
)

// Template file names looked up inside a configured template directory.
const (
	subjectFile = "subject.tmpl"
	textFile    = "body.txt.tmpl"
	htmlFile    = "body.html.tmpl"
)

const (
	defaultSubjectTmpl = "[{{.type}}] {{.source}}"
	defaultTextTmpl    = "Event {{.id}} of type {{.type}} received from {{.source}}."
)

// Sources holds the raw template text for each message part. Empty fields
// fall back to built-in defaults (the HTML part defaults to none).
type Sources struct {
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// Renderer renders the three message parts for an event context. A Renderer
// is immutable and safe for concurrent use; request-scoped overrides produce
// a new instance via WithInline.
type Renderer struct {
	sources Sources
}

// New constructs a renderer from explicit template sources.
func New(src Sources) *Renderer {
	return &Renderer{sources: src}
}

// FromSettings builds the renderer from configuration: inline JSON templates
// win over a template directory; with neither configured the built-in
// defaults apply.
func FromSettings(cfg config.TemplateConfig) (*Renderer, error) {
	if strings.TrimSpace(cfg.InlineJSON) != "" {
		src, err := parseInline(cfg.InlineJSON)
		if err != nil {
			return nil, err
		}
		return New(src), nil
	}

	if cfg.Dir != "" {
		src, err := loadDir(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return New(src), nil
	}

	return New(Sources{}), nil
}

// WithInline returns a request-scoped renderer whose sources come from the
// supplied inline JSON, superseding the configured sources entirely.
func (r *Renderer) WithInline(raw string) (notify.Renderer, error) {
	src, err := parseInline(raw)
	if err != nil {
		return nil, err
	}
	return New(src), nil
}

// Render produces the subject, text and HTML parts for the event. Any parse
// or execution failure aborts the whole render; there is no partial output.
func (r *Renderer) Render(ec *event.Context) (subject, text, html string, err error) {
	data := templateData(ec)

	subject, err = renderText("subject", withDefault(r.sources.Subject, defaultSubjectTmpl), data)
	if err != nil {
		return "", "", "", err
	}

	text, err = renderText("text", withDefault(r.sources.Text, defaultTextTmpl), data)
	if err != nil {
		return "", "", "", err
	}

	if r.sources.HTML != "" {
		html, err = renderHTML(r.sources.HTML, data)
		if err != nil {
			return "", "", "", err
		}
	}

	return subject, text, html, nil
}

// templateData flattens the event context into the mapping exposed to
// templates: spec attributes by name, extensions under .extensions, and the
// payload under .data (as a mapping when it decodes to one, as text
// otherwise).
func templateData(ec *event.Context) map[string]any {
	data := map[string]any{
		"id":         ec.ID(),
		"source":     ec.Source(),
		"type":       ec.Type(),
		"subject":    ec.Subject(),
		"time":       ec.Time(),
		"extensions": ec.Extensions(),
	}

	if m, ok := ec.Data().AsMap(); ok {
		data["data"] = m
	} else if s, ok := ec.Data().AsText(); ok {
		data["data"] = s
	} else {
		data["data"] = map[string]any{}
	}

	return data
}

func renderText(name, src string, data map[string]any) (string, error) {
	tmpl, err := texttemplate.New(name).Parse(src)
	if err != nil {
		return "", fmt.Errorf("template: parse %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template: execute %s: %w", name, err)
	}
	return buf.String(), nil
}

func renderHTML(src string, data map[string]any) (string, error) {
	tmpl, err := htmltemplate.New("html").Parse(src)
	if err != nil {
		return "", fmt.Errorf("template: parse html: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template: execute html: %w", err)
	}
	return buf.String(), nil
}

func parseInline(raw string) (Sources, error) {
	var src Sources
	if err := json.Unmarshal([]byte(raw), &src); err != nil {
		return Sources{}, fmt.Errorf("template: invalid inline template JSON: %w", err)
	}
	return src, nil
}

func loadDir(dir string) (Sources, error) {
	var src Sources
	for _, part := range []struct {
		file string
		dst  *string
	}{
		{subjectFile, &src.Subject},
		{textFile, &src.Text},
		{htmlFile, &src.HTML},
	} {
		b, err := os.ReadFile(filepath.Join(dir, part.file))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Sources{}, fmt.Errorf("template: read %s: %w", part.file, err)
		}
		*part.dst = string(b)
	}
	return src, nil
}

func withDefault(src, def string) string {
	if strings.TrimSpace(src) == "" {
		return def
	}
	return src
}
