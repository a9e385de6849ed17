// Package server adapts the HTTP transport onto the notification pipeline.
// It owns the response contract: malformed event 400, filtered out 204,
// accepted (sent, dry-run or no recipients) 202, render failure 500,
// delivery failure 502.
package server

import (
	"context"
	"errors"
	"net/http"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/example/event-notifier/internal/event"
	"github.com/example/event-notifier/internal/logger"
	"github.com/example/event-notifier/internal/notify"
)

// Processor is the pipeline contract consumed by the transport layer.
type Processor interface {
	Process(ctx context.Context, ec *event.Context) (*notify.Result, error)
}

// Handler exposes the notification pipeline over HTTP.
type Handler struct {
	processor Processor
	logLevel  string
	logger    zerolog.Logger
	mux       *http.ServeMux
}

// New constructs the HTTP handler. logLevel is re-applied idempotently on
// every event request so level changes picked up from settings take effect
// without touching any other shared state.
func New(processor Processor, logLevel string, log zerolog.Logger) (*Handler, error) {
	if processor == nil {
		return nil, errors.New("server: processor dependency is required")
	}
	if reflect.ValueOf(log).IsZero() {
		log = zerolog.Nop()
	}

	h := &Handler{
		processor: processor,
		logLevel:  logLevel,
		logger:    log.With().Str("component", "http").Logger(),
		mux:       http.NewServeMux(),
	}
	h.mux.HandleFunc("/healthz", h.handleHealth)
	h.mux.HandleFunc("/", h.handleEvent)

	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	_ = logger.SetLevel(h.logLevel)

	ec, err := event.FromHTTPRequest(r)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to parse incoming cloudevent")
		http.Error(w, "invalid cloudevent", http.StatusBadRequest)
		return
	}

	log := h.logger.With().
		Str("ce_id", ec.ID()).
		Str("ce_type", ec.Type()).
		Str("ce_source", ec.Source()).
		Logger()

	result, err := h.processor.Process(r.Context(), ec)
	if err != nil {
		h.writeError(w, log, err)
		return
	}

	log.Info().Str("disposition", string(result.Disposition)).Msg("event processed")

	switch result.Disposition {
	case notify.DispositionFiltered:
		w.WriteHeader(http.StatusNoContent)
	default:
		// Sent, dry-run and no-recipients are all accepted no-ops or sends.
		w.WriteHeader(http.StatusAccepted)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, event.ErrMalformed), errors.Is(err, notify.ErrMissingPayload):
		log.Warn().Err(err).Msg("event rejected")
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, notify.ErrRender):
		log.Error().Err(err).Msg("template rendering failed")
		http.Error(w, "template rendering failed", http.StatusInternalServerError)
	case errors.Is(err, notify.ErrDelivery):
		log.Error().Err(err).Msg("notification delivery failed")
		http.Error(w, "notification delivery failed", http.StatusBadGateway)
	default:
		log.Error().Err(err).Msg("unexpected pipeline failure")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
