// Package delivery bridges assembled notification messages to an email
// provider backend. Delivery is single-attempt: retry and backoff, if
// desired, belong to the backend, not here.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/event-notifier/internal/notify"
	emailprovider "github.com/example/event-notifier/internal/providers/email"
)

// Option customises client behaviour.
type Option func(*EmailClient)

// WithTimeout caps the duration of a single delivery attempt. Zero disables
// the cap.
func WithTimeout(d time.Duration) Option {
	return func(c *EmailClient) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// EmailClient implements notify.Deliverer on top of an email provider.
type EmailClient struct {
	logger   zerolog.Logger
	provider emailprovider.Provider
	timeout  time.Duration
}

// NewEmailClient constructs a delivery client using the provided backend.
func NewEmailClient(provider emailprovider.Provider, logger zerolog.Logger, opts ...Option) (*EmailClient, error) {
	if provider == nil {
		return nil, errors.New("delivery: provider dependency is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	c := &EmailClient{
		logger:   logger,
		provider: provider,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// Deliver converts the message to a provider payload and performs exactly
// one send. Provider failures are wrapped as delivery errors so the
// transport layer can map them to a gateway-class response.
func (c *EmailClient) Deliver(ctx context.Context, msg *notify.Message) error {
	if msg == nil {
		return notify.WrapDelivery(errors.New("delivery: message is nil"))
	}
	if !msg.HasRecipients() {
		return notify.WrapDelivery(errors.New("delivery: message has no recipients"))
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload := c.buildPayload(msg)

	resp, err := c.provider.Send(ctx, payload)
	if err != nil {
		c.logger.Warn().
			Str("message_id", payload.MessageID).
			Str("ce_id", msg.Headers[notify.HeaderEventID]).
			Err(err).
			Msg("email delivery failed")
		return notify.WrapDelivery(err)
	}

	evt := c.logger.Debug().
		Str("message_id", payload.MessageID).
		Str("ce_id", msg.Headers[notify.HeaderEventID])
	if resp != nil {
		evt = evt.Int("smtp_code", resp.Code)
	}
	evt.Msg("email delivery succeeded")
	return nil
}

func (c *EmailClient) buildPayload(msg *notify.Message) *emailprovider.Payload {
	headers := make(map[string]string, len(msg.Headers))
	for key, value := range msg.Headers {
		headers[key] = value
	}

	return &emailprovider.Payload{
		MessageID: fmt.Sprintf("<%s@notifier>", uuid.NewString()),
		From:      msg.Sender,
		To:        append([]string(nil), msg.To...),
		CC:        append([]string(nil), msg.Cc...),
		BCC:       append([]string(nil), msg.Bcc...),
		Subject:   msg.Subject,
		TextBody:  msg.Text,
		HTMLBody:  msg.HTML,
		RawMIME:   msg.RawMIME,
		Headers:   headers,
	}
}
