package notify

import "github.com/example/event-notifier/internal/event"

// Tracing headers attached to every assembled message.
const (
	HeaderEventID     = "X-CloudEvent-ID"
	HeaderEventType   = "X-CloudEvent-Type"
	HeaderEventSource = "X-CloudEvent-Source"
)

// Message is the fully-formed outbound notification handed to the delivery
// collaborator. It is constructed once and never mutated afterwards.
type Message struct {
	Subject string
	Text    string
	HTML    string
	RawMIME string

	Sender string
	To     []string
	Cc     []string
	Bcc    []string

	Headers map[string]string
}

// HasRecipients reports whether any of the three recipient lists is
// populated. A message without recipients must never reach delivery.
func (m *Message) HasRecipients() bool {
	return len(m.To)+len(m.Cc)+len(m.Bcc) > 0
}

// Disposition is the pipeline's final decision for one request.
type Disposition string

const (
	DispositionSend                Disposition = "send"
	DispositionFiltered            Disposition = "filtered"
	DispositionSkippedNoRecipients Disposition = "skipped_no_recipients"
	DispositionSkippedDryRun       Disposition = "skipped_dry_run"
)

// Assembler combines the static sender configuration with resolver and
// selector output to build outbound messages.
type Assembler struct {
	Sender     string
	DefaultTo  []string
	DefaultCc  []string
	DefaultBcc []string
}

// Build assembles the outbound message. Each recipient field independently
// falls back to its configured default when the resolver returned nothing
// for it. The three tracing headers are always derived from the supplied
// event context.
func (a Assembler) Build(ctx *event.Context, content *Content, to, cc, bcc []string) *Message {
	if len(to) == 0 {
		to = append([]string(nil), a.DefaultTo...)
	}
	if len(cc) == 0 {
		cc = append([]string(nil), a.DefaultCc...)
	}
	if len(bcc) == 0 {
		bcc = append([]string(nil), a.DefaultBcc...)
	}

	return &Message{
		Subject: content.Subject,
		Text:    content.Text,
		HTML:    content.HTML,
		RawMIME: content.RawMIME,
		Sender:  a.Sender,
		To:      to,
		Cc:      cc,
		Bcc:     bcc,
		Headers: map[string]string{
			HeaderEventID:     ctx.ID(),
			HeaderEventType:   ctx.Type(),
			HeaderEventSource: ctx.Source(),
		},
	}
}
