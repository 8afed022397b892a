// Package prototest provides an in-memory protocol.Outbox for tests.
package prototest

import (
	"encoding/json"
)

// Sent is one recorded delivery
type Sent struct {
	To   string
	Type string
	Data json.RawMessage
}

// Decode unmarshals the recorded frame into v
func (s Sent) Decode(v any) error {
	return json.Unmarshal(s.Data, v)
}

// Recorder captures every message passed to Send. It is not safe for
// concurrent use.
type Recorder struct {
	Messages []Sent
}

func (r *Recorder) Send(to string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		panic(err)
	}

	var head struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(data, &head)

	r.Messages = append(r.Messages, Sent{To: to, Type: head.Type, Data: data})
}

// To returns the messages delivered to one client, in order
func (r *Recorder) To(id string) []Sent {
	var out []Sent
	for _, m := range r.Messages {
		if m.To == id {
			out = append(out, m)
		}
	}
	return out
}

// OfType returns the messages with the given type discriminator
func (r *Recorder) OfType(msgType string) []Sent {
	var out []Sent
	for _, m := range r.Messages {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// Count returns how many messages of msgType reached client id
func (r *Recorder) Count(id, msgType string) int {
	n := 0
	for _, m := range r.Messages {
		if m.To == id && m.Type == msgType {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.Messages = nil
}
