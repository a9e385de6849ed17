package notify_test

import (
	"context"
	"errors"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/example/event-notifier/internal/notify"
)

type recordingDeliverer struct {
	calls int
	last  *notify.Message
	err   error
}

func (d *recordingDeliverer) Deliver(_ context.Context, msg *notify.Message) error {
	d.calls++
	d.last = msg
	return d.err
}

func newPipeline(t *testing.T, cfg notify.Config, filter *notify.Filter, renderer notify.Renderer, deliverer notify.Deliverer) *notify.Pipeline {
	t.Helper()
	if cfg.Sender == "" {
		cfg.Sender = "noreply@example.com"
	}
	p, err := notify.NewPipeline(cfg, notify.Dependencies{
		Filter:    filter,
		Renderer:  renderer,
		Deliverer: deliverer,
	})
	if err != nil {
		t.Fatalf("pipeline init: %v", err)
	}
	return p
}

func TestNewPipelineValidation(t *testing.T) {
	_, err := notify.NewPipeline(notify.Config{}, notify.Dependencies{
		Renderer:  &recordingRenderer{},
		Deliverer: &recordingDeliverer{},
	})
	if err == nil {
		t.Fatalf("expected error for missing sender")
	}

	_, err = notify.NewPipeline(notify.Config{Sender: "s@example.com"}, notify.Dependencies{
		Renderer: &recordingRenderer{},
	})
	if err == nil {
		t.Fatalf("expected error for missing deliverer")
	}
}

func TestPipelineFilteredShortCircuit(t *testing.T) {
	filter, err := notify.ParseFilter(`[{"attribute": "type", "equals": "com.other.kind"}]`, "all")
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	renderer := &recordingRenderer{}
	deliverer := &recordingDeliverer{}
	p := newPipeline(t, notify.Config{}, filter, renderer, deliverer)

	ec := newEventContext(t, nil, cloudevents.ApplicationJSON, map[string]any{"msg": "hi"})
	res, err := p.Process(context.Background(), ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Disposition != notify.DispositionFiltered {
		t.Fatalf("expected filtered disposition, got %s", res.Disposition)
	}
	if renderer.calls != 0 {
		t.Fatalf("filtered events must not be rendered, saw %d calls", renderer.calls)
	}
	if deliverer.calls != 0 {
		t.Fatalf("filtered events must not be delivered, saw %d calls", deliverer.calls)
	}
}

func TestPipelineNoRecipients(t *testing.T) {
	deliverer := &recordingDeliverer{}
	p := newPipeline(t, notify.Config{}, nil, &recordingRenderer{}, deliverer)

	ec := newEventContext(t, nil, cloudevents.ApplicationJSON, map[string]any{"msg": "hi"})
	res, err := p.Process(context.Background(), ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Disposition != notify.DispositionSkippedNoRecipients {
		t.Fatalf("expected no-recipients skip, got %s", res.Disposition)
	}
	if deliverer.calls != 0 {
		t.Fatalf("messages without recipients must never reach delivery")
	}
}

func TestPipelineDryRun(t *testing.T) {
	deliverer := &recordingDeliverer{}
	cfg := notify.Config{DefaultTo: []string{"ops@example.com"}, DryRun: true}
	p := newPipeline(t, cfg, nil, &recordingRenderer{}, deliverer)

	ec := newEventContext(t, nil, cloudevents.ApplicationJSON, map[string]any{"msg": "hi"})
	res, err := p.Process(context.Background(), ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Disposition != notify.DispositionSkippedDryRun {
		t.Fatalf("expected dry-run skip, got %s", res.Disposition)
	}
	if deliverer.calls != 0 {
		t.Fatalf("dry run must never invoke the deliverer")
	}
	if res.Message == nil || !res.Message.HasRecipients() {
		t.Fatalf("dry run still assembles the full message")
	}
}

func TestPipelineSend(t *testing.T) {
	deliverer := &recordingDeliverer{}
	cfg := notify.Config{DefaultTo: []string{"ops@example.com"}}
	p := newPipeline(t, cfg, nil, &recordingRenderer{}, deliverer)

	ec := newEventContext(t,
		map[string]any{"emailcc": "cc@example.com"},
		cloudevents.ApplicationJSON,
		map[string]any{"msg": "hi"},
	)
	res, err := p.Process(context.Background(), ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Disposition != notify.DispositionSend {
		t.Fatalf("expected send disposition, got %s", res.Disposition)
	}
	if deliverer.calls != 1 {
		t.Fatalf("expected exactly one delivery call, got %d", deliverer.calls)
	}

	msg := deliverer.last
	if msg.Headers[notify.HeaderEventID] != ec.ID() ||
		msg.Headers[notify.HeaderEventType] != ec.Type() ||
		msg.Headers[notify.HeaderEventSource] != ec.Source() {
		t.Fatalf("tracing headers must come from the processed event: %v", msg.Headers)
	}
	if len(msg.Cc) != 1 || msg.Cc[0] != "cc@example.com" {
		t.Fatalf("resolved cc not applied: %v", msg.Cc)
	}
}

func TestPipelineDeliveryFailure(t *testing.T) {
	deliverer := &recordingDeliverer{err: errors.New("smtp 451: try later")}
	cfg := notify.Config{DefaultTo: []string{"ops@example.com"}}
	p := newPipeline(t, cfg, nil, &recordingRenderer{}, deliverer)

	ec := newEventContext(t, nil, cloudevents.ApplicationJSON, map[string]any{"msg": "hi"})
	_, err := p.Process(context.Background(), ec)
	if !errors.Is(err, notify.ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
	if deliverer.calls != 1 {
		t.Fatalf("delivery is single-attempt, got %d calls", deliverer.calls)
	}
}

func TestPipelineRenderFailurePropagates(t *testing.T) {
	deliverer := &recordingDeliverer{}
	cfg := notify.Config{DefaultTo: []string{"ops@example.com"}}
	p := newPipeline(t, cfg, nil, &recordingRenderer{failErr: errors.New("bad template")}, deliverer)

	ec := newEventContext(t, nil, cloudevents.ApplicationJSON, map[string]any{"msg": "hi"})
	_, err := p.Process(context.Background(), ec)
	if !errors.Is(err, notify.ErrRender) {
		t.Fatalf("expected ErrRender, got %v", err)
	}
	if deliverer.calls != 0 {
		t.Fatalf("render failure must not attempt delivery")
	}
}
