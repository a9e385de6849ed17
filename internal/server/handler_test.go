package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/event-notifier/internal/event"
	"github.com/example/event-notifier/internal/notify"
)

type stubProcessor struct {
	result *notify.Result
	err    error
	calls  int
	lastEC *event.Context
}

func (s *stubProcessor) Process(_ context.Context, ec *event.Context) (*notify.Result, error) {
	s.calls++
	s.lastEC = ec
	return s.result, s.err
}

func newHandler(t *testing.T, proc Processor) *Handler {
	t.Helper()
	h, err := New(proc, "info", zerolog.Nop())
	if err != nil {
		t.Fatalf("handler init: %v", err)
	}
	return h
}

func binaryEventRequest(t *testing.T) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"hello":"world"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("ce-specversion", "1.0")
	req.Header.Set("ce-id", "evt-1")
	req.Header.Set("ce-source", "/test/source")
	req.Header.Set("ce-type", "com.example.test")
	return req
}

func TestHandlerMalformedEvent(t *testing.T) {
	proc := &stubProcessor{result: &notify.Result{Disposition: notify.DispositionSend}}
	h := newHandler(t, proc)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("not an event"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if proc.calls != 0 {
		t.Fatalf("processor must not run on malformed input")
	}
}

func TestHandlerDispositions(t *testing.T) {
	cases := []struct {
		name        string
		disposition notify.Disposition
		want        int
	}{
		{"sent", notify.DispositionSend, http.StatusAccepted},
		{"filtered", notify.DispositionFiltered, http.StatusNoContent},
		{"no recipients", notify.DispositionSkippedNoRecipients, http.StatusAccepted},
		{"dry run", notify.DispositionSkippedDryRun, http.StatusAccepted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proc := &stubProcessor{result: &notify.Result{Disposition: tc.disposition}}
			h := newHandler(t, proc)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, binaryEventRequest(t))

			if rec.Code != tc.want {
				t.Fatalf("disposition %q: expected %d, got %d", tc.disposition, tc.want, rec.Code)
			}
			if proc.calls != 1 {
				t.Fatalf("expected exactly one Process call, got %d", proc.calls)
			}
			if proc.lastEC.ID() != "evt-1" {
				t.Fatalf("unexpected event id %q", proc.lastEC.ID())
			}
		})
	}
}

func TestHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"missing payload", notify.ErrMissingPayload, http.StatusBadRequest},
		{"render failure", notify.WrapRender(context.DeadlineExceeded), http.StatusInternalServerError},
		{"delivery failure", notify.WrapDelivery(context.DeadlineExceeded), http.StatusBadGateway},
		{"unexpected", context.Canceled, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHandler(t, &stubProcessor{err: tc.err})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, binaryEventRequest(t))

			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestHandlerHealth(t *testing.T) {
	h := newHandler(t, &stubProcessor{result: &notify.Result{Disposition: notify.DispositionSend}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST /healthz, got %d", rec.Code)
	}
}

func TestHandlerRejectsNonPostEvents(t *testing.T) {
	proc := &stubProcessor{result: &notify.Result{Disposition: notify.DispositionSend}}
	h := newHandler(t, proc)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if proc.calls != 0 {
		t.Fatalf("processor must not run for GET")
	}
}

func TestNewRequiresProcessor(t *testing.T) {
	if _, err := New(nil, "info", zerolog.Nop()); err == nil {
		t.Fatalf("expected error for nil processor")
	}
}
