package template

import (
	"strings"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/example/event-notifier/internal/config"
	"github.com/example/event-notifier/internal/event"
)

func testContext(t *testing.T, data any) *event.Context {
	t.Helper()

	e := cloudevents.NewEvent()
	e.SetID("evt-42")
	e.SetSource("/billing")
	e.SetType("com.example.invoice")
	e.SetExtension("tenant", "acme")
	if data != nil {
		if err := e.SetData(cloudevents.ApplicationJSON, data); err != nil {
			t.Fatalf("set data: %v", err)
		}
	}

	ctx, err := event.FromCloudEvent(&e)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return ctx
}

func TestRenderConfiguredSources(t *testing.T) {
	r := New(Sources{
		Subject: "{{.type}} for {{.extensions.tenant}}",
		Text:    "amount: {{.data.amount}}",
		HTML:    "<b>{{.data.amount}}</b>",
	})

	subject, text, html, err := r.Render(testContext(t, map[string]any{"amount": "42.50"}))
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	if subject != "com.example.invoice for acme" {
		t.Fatalf("unexpected subject: %q", subject)
	}
	if text != "amount: 42.50" {
		t.Fatalf("unexpected text: %q", text)
	}
	if html != "<b>42.50</b>" {
		t.Fatalf("unexpected html: %q", html)
	}
}

func TestRenderDefaults(t *testing.T) {
	r := New(Sources{})

	subject, text, html, err := r.Render(testContext(t, nil))
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	if !strings.Contains(subject, "com.example.invoice") {
		t.Fatalf("default subject should mention the event type: %q", subject)
	}
	if !strings.Contains(text, "evt-42") {
		t.Fatalf("default text should mention the event id: %q", text)
	}
	if html != "" {
		t.Fatalf("no html part expected by default, got %q", html)
	}
}

func TestRenderHTMLEscaping(t *testing.T) {
	r := New(Sources{HTML: "<p>{{.data.msg}}</p>"})

	_, _, html, err := r.Render(testContext(t, map[string]any{"msg": "<script>x</script>"}))
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("html part must escape payload values: %q", html)
	}
}

func TestRenderFailure(t *testing.T) {
	r := New(Sources{Subject: "{{.broken"})

	if _, _, _, err := r.Render(testContext(t, nil)); err == nil {
		t.Fatalf("expected parse error for invalid template")
	}
}

func TestWithInline(t *testing.T) {
	base := New(Sources{Subject: "configured"})

	scoped, err := base.WithInline(`{"subject": "inline {{.id}}"}`)
	if err != nil {
		t.Fatalf("unexpected override error: %v", err)
	}

	subject, _, _, err := scoped.Render(testContext(t, nil))
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	if subject != "inline evt-42" {
		t.Fatalf("override sources not applied: %q", subject)
	}

	// The base renderer keeps its configured sources.
	subject, _, _, err = base.Render(testContext(t, nil))
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	if subject != "configured" {
		t.Fatalf("request-scoped override leaked into the base renderer: %q", subject)
	}
}

func TestWithInlineInvalidJSON(t *testing.T) {
	if _, err := New(Sources{}).WithInline("{broken"); err == nil {
		t.Fatalf("expected error for invalid inline JSON")
	}
}

func TestFromSettingsInlineWinsOverDir(t *testing.T) {
	r, err := FromSettings(config.TemplateConfig{
		InlineJSON: `{"subject": "from inline"}`,
		Dir:        t.TempDir(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	subject, _, _, err := r.Render(testContext(t, nil))
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	if subject != "from inline" {
		t.Fatalf("inline templates should win over the directory: %q", subject)
	}
}
