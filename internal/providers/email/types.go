package email

import (
	"context"
	"time"
)

// Payload is the canonical representation of an outbound email passed to the
// provider. When RawMIME is set it carries a pre-formed message that is
// written verbatim; otherwise the provider assembles headers and body parts
// from the remaining fields.
type Payload struct {
	MessageID string
	From      string
	To        []string
	CC        []string
	BCC       []string
	Subject   string
	TextBody  string
	HTMLBody  string
	RawMIME   string
	Headers   map[string]string
}

// RawResponse mirrors the low level provider response that the delivery
// client inspects when classifying failures.
type RawResponse struct {
	ID        string
	Code      int
	Body      string
	Timestamp time.Time
}

// Provider is the contract exposed by the email backend implementations.
type Provider interface {
	Send(ctx context.Context, payload *Payload) (*RawResponse, error)
}
