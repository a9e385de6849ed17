package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
)

// ErrMalformed marks envelopes that cannot be parsed or that are missing a
// required attribute. Transport layers should surface it as a client error.
var ErrMalformed = errors.New("malformed event")

// FromHTTPRequest parses the inbound HTTP request as a CloudEvent in either
// binary or structured mode and normalizes it into a Context.
func FromHTTPRequest(r *http.Request) (*Context, error) {
	e, err := cehttp.NewEventFromHTTPRequest(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return FromCloudEvent(e)
}

// FromCloudEvent normalizes a parsed CloudEvent into an immutable Context.
// Spec-reserved attributes become first-class fields; every other envelope
// attribute lands in the extensions mapping with its value preserved as
// received.
func FromCloudEvent(e *cloudevents.Event) (*Context, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil event", ErrMalformed)
	}

	for name, value := range map[string]string{
		"id":     e.ID(),
		"source": e.Source(),
		"type":   e.Type(),
	} {
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("%w: missing required attribute %q", ErrMalformed, name)
		}
	}

	ctx := &Context{
		id:              e.ID(),
		source:          e.Source(),
		eventType:       e.Type(),
		subject:         e.Subject(),
		dataSchema:      e.DataSchema(),
		dataContentType: e.DataContentType(),
		data:            classifyData(e.Data(), e.DataContentType()),
		extensions:      make(map[string]any, len(e.Extensions())),
	}
	if t := e.Time(); !t.IsZero() {
		ctx.time = t.UTC().Format(time.RFC3339)
	}

	// The SDK already separates spec attributes from extensions, so
	// Extensions() is exactly the non-reserved set.
	for k, v := range e.Extensions() {
		ctx.extensions[k] = v
	}

	return ctx, nil
}

// classifyData maps the encoded event data onto the payload variant. JSON
// bodies are eagerly decoded into a mapping or string; anything else stays a
// byte sequence for later best-effort reclassification.
func classifyData(b []byte, contentType string) Payload {
	if len(b) == 0 {
		return AbsentPayload()
	}

	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" || strings.Contains(ct, "json") {
		var decoded any
		if err := json.Unmarshal(b, &decoded); err == nil {
			switch v := decoded.(type) {
			case map[string]any:
				return StructuredPayload(v)
			case string:
				return TextPayload(v)
			}
		}
	}

	return BytesPayload(b)
}
