package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope is a decoded inbound frame. Fields keeps every member of the JSON
// object undecoded so relays can forward what they do not understand.
type Envelope struct {
	Type   string
	Fields map[string]json.RawMessage
	Raw    []byte
}

// Decode parses a frame. A frame without a "type" member decodes with an
// empty Type; a frame that is not a JSON object, or whose type is not a
// string, is malformed.
func Decode(data []byte) (*Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedEnvelope)
	}

	env := &Envelope{Fields: fields, Raw: data}
	if raw, ok := fields["type"]; ok {
		if err := json.Unmarshal(raw, &env.Type); err != nil {
			return nil, fmt.Errorf("%w: type: %v", ErrMalformedEnvelope, err)
		}
	}

	return env, nil
}

// String returns a string member. Missing or null members yield "".
func (e *Envelope) String(field string) (string, error) {
	var s string
	if err := e.decodeField(field, &s); err != nil {
		return "", err
	}
	return s, nil
}

// Bool returns a boolean member. Missing or null members yield false.
func (e *Envelope) Bool(field string) (bool, error) {
	var b bool
	if err := e.decodeField(field, &b); err != nil {
		return false, err
	}
	return b, nil
}

func (e *Envelope) decodeField(field string, dst any) error {
	raw, ok := e.Fields[field]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedEnvelope, field, err)
	}
	return nil
}

// WithSender re-encodes the envelope with its "id" member set to sender
func (e *Envelope) WithSender(sender string) (json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(e.Fields)+1)
	for k, v := range e.Fields {
		out[k] = v
	}

	id, err := json.Marshal(sender)
	if err != nil {
		return nil, err
	}
	out["id"] = id

	return json.Marshal(out)
}
