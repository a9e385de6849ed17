package notify

import (
	"fmt"
	"strings"

	"github.com/example/event-notifier/internal/event"
)

// Recipient hint attribute names. CloudEvents extension names are restricted
// to lowercase alphanumerics, so the wire form is emailto/emailcc/emailbcc;
// inside a structured data payload the underscore spelling is accepted too.
const (
	FieldTo  = "emailto"
	FieldCc  = "emailcc"
	FieldBcc = "emailbcc"
)

var dataAliases = map[string]string{
	FieldTo:  "email_to",
	FieldCc:  "email_cc",
	FieldBcc: "email_bcc",
}

// ResolveRecipients extracts the recipient list for one field from the event.
// Precedence: an extension attribute named exactly field, then a key of the
// same name (or its underscore alias) inside the structured data payload.
// Absence anywhere yields an empty list; callers fall back to static
// configuration.
func ResolveRecipients(ctx *event.Context, field string) []string {
	if v, ok := ctx.Extension(field); ok {
		return ParseRecipients(v)
	}

	if m, ok := ctx.Data().AsMap(); ok {
		if v, ok := m[field]; ok {
			return ParseRecipients(v)
		}
		if alias, ok := dataAliases[field]; ok {
			if v, ok := m[alias]; ok {
				return ParseRecipients(v)
			}
		}
	}

	return nil
}

// ResolveAll resolves the three recipient fields in one pass.
func ResolveAll(ctx *event.Context) (to, cc, bcc []string) {
	return ResolveRecipients(ctx, FieldTo),
		ResolveRecipients(ctx, FieldCc),
		ResolveRecipients(ctx, FieldBcc)
}

// ParseRecipients turns a raw candidate value into an ordered recipient
// list. Strings split on comma, sequences are stringified element-wise;
// every entry is trimmed and empties are dropped. Order and multiplicity
// are preserved, duplicates are not collapsed. Unsupported value types
// yield an empty list, never an error.
func ParseRecipients(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return splitAndTrim(strings.Split(v, ","))
	case []string:
		return splitAndTrim(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, stringify(item))
		}
		return splitAndTrim(parts)
	default:
		return nil
	}
}

func splitAndTrim(parts []string) []string {
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
