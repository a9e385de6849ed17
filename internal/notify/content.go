package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/event-notifier/internal/event"
)

// InlineTemplateKey is the structured-data key that carries a request-scoped
// template override. The override supersedes configured template sources for
// the current request only and is never persisted.
const InlineTemplateKey = "templates_inline_json"

// Renderer is the template collaborator contract consumed by the content
// selector.
type Renderer interface {
	Render(ctx *event.Context) (subject, text, html string, err error)
}

// OverridableRenderer is implemented by renderers that can produce a
// request-scoped variant from an inline template definition.
type OverridableRenderer interface {
	Renderer
	WithInline(raw string) (Renderer, error)
}

// Content is the rendered or passed-through message body. Exactly one of
// {Text/HTML, RawMIME} is populated.
type Content struct {
	Subject string
	Text    string
	HTML    string
	RawMIME string
}

var rawMIMETypes = map[string]struct{}{
	"mimemultipart":   {},
	"mime/multipart":  {},
	"multipart/mixed": {},
}

// IsRawMIME reports whether the data content type selects the raw-MIME
// passthrough branch.
func IsRawMIME(dataContentType string) bool {
	_, ok := rawMIMETypes[strings.ToLower(strings.TrimSpace(dataContentType))]
	return ok
}

// SelectContent decides between raw-MIME passthrough and templated
// rendering and executes exactly one branch. The raw branch never falls
// back to templating; the template branch never consults raw payload keys.
func SelectContent(ctx *event.Context, renderer Renderer) (*Content, error) {
	if IsRawMIME(ctx.DataContentType()) {
		return rawMIMEContent(ctx)
	}
	return templatedContent(ctx, renderer)
}

func rawMIMEContent(ctx *event.Context) (*Content, error) {
	data := ctx.Data()

	// A payload that decodes to a mapping carries the message under a known
	// key; a mapping without one is a hard error, not a passthrough.
	if m, ok := data.AsMap(); ok {
		for _, key := range []string{"raw_mime", "mime", "message"} {
			if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
				return &Content{RawMIME: s}, nil
			}
		}
		return nil, fmt.Errorf("%w: no raw MIME content under raw_mime, mime or message", ErrMissingPayload)
	}

	if raw, ok := data.AsText(); ok && strings.TrimSpace(raw) != "" {
		return &Content{RawMIME: raw}, nil
	}

	return nil, fmt.Errorf("%w: no raw MIME content in event data", ErrMissingPayload)
}

func templatedContent(ctx *event.Context, renderer Renderer) (*Content, error) {
	if renderer == nil {
		return nil, WrapRender(fmt.Errorf("no renderer configured"))
	}

	r := renderer
	if raw, ok := inlineOverride(ctx); ok {
		overridable, can := renderer.(OverridableRenderer)
		if !can {
			return nil, WrapRender(fmt.Errorf("inline template override supplied but renderer does not support overrides"))
		}
		scoped, err := overridable.WithInline(raw)
		if err != nil {
			return nil, WrapRender(err)
		}
		r = scoped
	}

	subject, text, html, err := r.Render(ctx)
	if err != nil {
		return nil, WrapRender(err)
	}

	return &Content{Subject: subject, Text: text, HTML: html}, nil
}

// inlineOverride extracts the request-scoped template override from the
// structured payload. A string value is taken verbatim as template JSON; a
// nested mapping is re-encoded.
func inlineOverride(ctx *event.Context) (string, bool) {
	m, ok := ctx.Data().AsMap()
	if !ok {
		return "", false
	}
	v, ok := m[InlineTemplateKey]
	if !ok {
		return "", false
	}

	switch raw := v.(type) {
	case string:
		if strings.TrimSpace(raw) == "" {
			return "", false
		}
		return raw, true
	case map[string]any:
		encoded, err := json.Marshal(raw)
		if err != nil {
			return "", false
		}
		return string(encoded), true
	default:
		return "", false
	}
}
