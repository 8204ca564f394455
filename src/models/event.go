package models

import "encoding/json"

// AgentEvent is the envelope producers send to the relay, one per line.
// The relay forwards the bytes as received; the parsed form is only inspected.
// Unknown members such as a timestamp are ignored.
type AgentEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}
