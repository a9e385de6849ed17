package notify

import (
	"context"
	"errors"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/example/event-notifier/internal/event"
)

// Deliverer is the delivery collaborator contract. Delivery is synchronous,
// single-attempt and fire-and-forget: the pipeline never retries.
type Deliverer interface {
	Deliver(ctx context.Context, msg *Message) error
}

// Config contains the static settings the pipeline applies to every request.
type Config struct {
	Sender     string
	DefaultTo  []string
	DefaultCc  []string
	DefaultBcc []string
	DryRun     bool
}

// Dependencies collects the runtime collaborators required by the pipeline.
type Dependencies struct {
	Filter    *Filter
	Renderer  Renderer
	Deliverer Deliverer
	Logger    zerolog.Logger
}

// Pipeline turns a normalized event context into an outbound message and a
// disposition. It holds no cross-request state; concurrent requests share
// only the read-only configuration and collaborators.
type Pipeline struct {
	cfg       Config
	assembler Assembler
	filter    *Filter
	renderer  Renderer
	deliverer Deliverer
	logger    zerolog.Logger
}

// Result reports the pipeline's decision for one request. Message is nil
// when the event was filtered out before assembly.
type Result struct {
	Disposition Disposition
	Message     *Message
}

// NewPipeline validates the configuration and collaborators and returns a
// ready pipeline.
func NewPipeline(cfg Config, deps Dependencies) (*Pipeline, error) {
	if cfg.Sender == "" {
		return nil, errors.New("pipeline: sender must be configured")
	}
	if deps.Renderer == nil {
		return nil, errors.New("pipeline: renderer dependency is required")
	}
	if deps.Deliverer == nil {
		return nil, errors.New("pipeline: deliverer dependency is required")
	}

	filter := deps.Filter
	if filter == nil {
		filter = &Filter{}
	}

	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "pipeline").Logger()

	return &Pipeline{
		cfg: cfg,
		assembler: Assembler{
			Sender:     cfg.Sender,
			DefaultTo:  cfg.DefaultTo,
			DefaultCc:  cfg.DefaultCc,
			DefaultBcc: cfg.DefaultBcc,
		},
		filter:    filter,
		renderer:  deps.Renderer,
		deliverer: deps.Deliverer,
		logger:    logger,
	}, nil
}

// Process runs the pipeline for one event: filter gate, content selection,
// recipient resolution, assembly, disposition, and at most one delivery
// call. The filter gate executes before any rendering so a rejected event
// costs no template work.
func (p *Pipeline) Process(ctx context.Context, ec *event.Context) (*Result, error) {
	log := p.logger.With().
		Str("ce_id", ec.ID()).
		Str("ce_type", ec.Type()).
		Str("ce_source", ec.Source()).
		Logger()

	if !p.filter.Matches(ec) {
		log.Info().Msg("event filtered out")
		return &Result{Disposition: DispositionFiltered}, nil
	}

	content, err := SelectContent(ec, p.renderer)
	if err != nil {
		log.Error().Err(err).Msg("content selection failed")
		return nil, err
	}

	to, cc, bcc := ResolveAll(ec)
	msg := p.assembler.Build(ec, content, to, cc, bcc)

	if !msg.HasRecipients() {
		log.Warn().Msg("no recipients resolved or configured; skipping send")
		return &Result{Disposition: DispositionSkippedNoRecipients, Message: msg}, nil
	}

	if p.cfg.DryRun {
		log.Info().
			Strs("to", msg.To).
			Str("subject", msg.Subject).
			Msg("dry run enabled; message not sent")
		return &Result{Disposition: DispositionSkippedDryRun, Message: msg}, nil
	}

	if err := p.deliverer.Deliver(ctx, msg); err != nil {
		log.Error().Err(err).Msg("delivery failed")
		if errors.Is(err, ErrDelivery) {
			return nil, err
		}
		return nil, WrapDelivery(err)
	}

	log.Info().
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Msg("notification sent")
	return &Result{Disposition: DispositionSend, Message: msg}, nil
}
