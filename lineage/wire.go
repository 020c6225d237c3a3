package lineage

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Wire envelopes carry events across process boundaries, e.g. to externally
// spawned agents or completion workers. Unlike in-process events, which hold
// only a context reference, the envelope embeds the fully expanded context
// so the far side needs no access to the reference store. Inbound envelopes
// re-associate with a running chain through the embedded correlation id.

// EncodeWire serializes an event and its expanded lineage context into a
// boundary envelope.
func EncodeWire(eventName string, data map[string]any, c *Context) ([]byte, error) {
	if eventName == "" {
		return nil, fmt.Errorf("wire envelope requires an event name")
	}
	out := []byte(`{}`)
	var err error
	if out, err = sjson.SetBytes(out, "name", eventName); err != nil {
		return nil, fmt.Errorf("encode name: %w", err)
	}
	if data != nil {
		if out, err = sjson.SetBytes(out, "data", data); err != nil {
			return nil, fmt.Errorf("encode data: %w", err)
		}
	}
	if c != nil {
		if out, err = sjson.SetBytes(out, "context", c); err != nil {
			return nil, fmt.Errorf("encode context: %w", err)
		}
	}
	return out, nil
}

// DecodeWire parses a boundary envelope. The context result is nil when the
// envelope carries none; callers mint a fresh root in that case.
func DecodeWire(raw []byte) (string, map[string]any, *Context, error) {
	if !gjson.ValidBytes(raw) {
		return "", nil, nil, fmt.Errorf("invalid wire envelope")
	}
	name := gjson.GetBytes(raw, "name").String()
	if name == "" {
		return "", nil, nil, fmt.Errorf("wire envelope missing event name")
	}
	var data map[string]any
	if d := gjson.GetBytes(raw, "data"); d.Exists() {
		v, ok := d.Value().(map[string]any)
		if !ok {
			return "", nil, nil, fmt.Errorf("wire envelope data is not a mapping")
		}
		data = v
	}
	var c *Context
	if cj := gjson.GetBytes(raw, "context"); cj.Exists() {
		c = &Context{}
		if err := json.Unmarshal([]byte(cj.Raw), c); err != nil {
			return "", nil, nil, fmt.Errorf("decode context: %w", err)
		}
	}
	return name, data, c, nil
}

// WireCorrelationID extracts just the correlation id from an envelope
// without a full decode. Returns "" when absent.
func WireCorrelationID(raw []byte) string {
	return gjson.GetBytes(raw, "context.correlation_id").String()
}
