package event

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// PayloadKind enumerates the shapes an event payload can take after
// normalization.
type PayloadKind int

const (
	// PayloadAbsent means the event carried no data at all.
	PayloadAbsent PayloadKind = iota
	// PayloadBytes holds an opaque byte sequence.
	PayloadBytes
	// PayloadText holds a plain string.
	PayloadText
	// PayloadStructured holds a string-keyed mapping with arbitrary values.
	PayloadStructured
)

// Payload is a tagged variant over the possible event data shapes. It is
// immutable after construction; decode attempts never mutate the receiver,
// they return a reclassified view instead.
type Payload struct {
	kind       PayloadKind
	raw        []byte
	text       string
	structured map[string]any
}

// AbsentPayload returns the empty payload.
func AbsentPayload() Payload {
	return Payload{kind: PayloadAbsent}
}

// BytesPayload wraps a byte sequence. Empty input degrades to absent.
func BytesPayload(b []byte) Payload {
	if len(b) == 0 {
		return AbsentPayload()
	}
	return Payload{kind: PayloadBytes, raw: append([]byte(nil), b...)}
}

// TextPayload wraps a plain string. Empty input degrades to absent.
func TextPayload(s string) Payload {
	if s == "" {
		return AbsentPayload()
	}
	return Payload{kind: PayloadText, text: s}
}

// StructuredPayload wraps a string-keyed mapping.
func StructuredPayload(m map[string]any) Payload {
	if m == nil {
		return AbsentPayload()
	}
	return Payload{kind: PayloadStructured, structured: m}
}

// Kind reports the payload shape.
func (p Payload) Kind() PayloadKind { return p.kind }

// IsAbsent reports whether the event carried no data.
func (p Payload) IsAbsent() bool { return p.kind == PayloadAbsent }

// Bytes returns the raw byte sequence for PayloadBytes, nil otherwise.
func (p Payload) Bytes() []byte {
	if p.kind != PayloadBytes {
		return nil
	}
	return append([]byte(nil), p.raw...)
}

// Text returns the string value for PayloadText, empty otherwise.
func (p Payload) Text() string {
	if p.kind != PayloadText {
		return ""
	}
	return p.text
}

// Map returns the mapping for PayloadStructured, nil otherwise.
func (p Payload) Map() map[string]any {
	if p.kind != PayloadStructured {
		return nil
	}
	return p.structured
}

// AsText returns a best-effort textual view of the payload: text as-is,
// bytes decoded as UTF-8 with undecodable sequences replaced. Structured and
// absent payloads report false.
func (p Payload) AsText() (string, bool) {
	switch p.kind {
	case PayloadText:
		return p.text, true
	case PayloadBytes:
		if utf8.Valid(p.raw) {
			return string(p.raw), true
		}
		return strings.ToValidUTF8(string(p.raw), string(utf8.RuneError)), true
	default:
		return "", false
	}
}

// AsMap returns a best-effort mapping view of the payload. Structured data
// is returned directly; byte and text payloads that look like a JSON object
// are decoded on the fly. Decode failure degrades to absence (false), never
// to an error.
func (p Payload) AsMap() (map[string]any, bool) {
	switch p.kind {
	case PayloadStructured:
		return p.structured, true
	case PayloadBytes, PayloadText:
		s, ok := p.AsText()
		if !ok {
			return nil, false
		}
		s = strings.TrimSpace(s)
		if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
			return nil, false
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, false
		}
		return m, true
	default:
		return nil, false
	}
}
