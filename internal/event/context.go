package event

// Context is the normalized, read-only representation of one inbound event.
// It is created once per request by the normalizer and discarded when the
// request completes.
type Context struct {
	id              string
	source          string
	eventType       string
	subject         string
	time            string
	dataSchema      string
	dataContentType string
	data            Payload
	extensions      map[string]any
}

// ID returns the required event identifier.
func (c *Context) ID() string { return c.id }

// Source returns the required event source.
func (c *Context) Source() string { return c.source }

// Type returns the required event type.
func (c *Context) Type() string { return c.eventType }

// Subject returns the optional event subject, empty when unset.
func (c *Context) Subject() string { return c.subject }

// Time returns the optional event timestamp in RFC 3339 form, empty when
// unset.
func (c *Context) Time() string { return c.time }

// DataSchema returns the optional data schema URI, empty when unset.
func (c *Context) DataSchema() string { return c.dataSchema }

// DataContentType returns the optional content type of the payload, empty
// when unset.
func (c *Context) DataContentType() string { return c.dataContentType }

// Data returns the event payload.
func (c *Context) Data() Payload { return c.data }

// Extension looks up a caller-defined attribute by its wire name.
func (c *Context) Extension(name string) (any, bool) {
	v, ok := c.extensions[name]
	return v, ok
}

// Extensions returns a copy of the caller-defined attribute mapping, keeping
// the context itself immutable.
func (c *Context) Extensions() map[string]any {
	out := make(map[string]any, len(c.extensions))
	for k, v := range c.extensions {
		out[k] = v
	}
	return out
}

// Attribute resolves a CloudEvents spec attribute by name. It reports false
// for unknown names and for optional attributes that are unset.
func (c *Context) Attribute(name string) (string, bool) {
	var v string
	switch name {
	case "id":
		v = c.id
	case "source":
		v = c.source
	case "type":
		v = c.eventType
	case "subject":
		v = c.subject
	case "time":
		v = c.time
	case "dataschema":
		v = c.dataSchema
	case "datacontenttype":
		v = c.dataContentType
	default:
		return "", false
	}
	if v == "" {
		return "", false
	}
	return v, true
}
