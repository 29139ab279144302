// Package protocol defines the canonical wire types exchanged between the
// bridge client and serving agents over the messaging fabric: tool
// descriptors, the four request/response payloads, and the envelope that
// tags each payload with its kind so receivers can dispatch without
// guessing at shapes.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the payload type carried inside an Envelope.
type Kind string

const (
	KindListTools         Kind = "list_tools"
	KindListToolsResponse Kind = "list_tools_response"
	KindCallTool          Kind = "call_tool"
	KindCallToolResponse  Kind = "call_tool_response"
)

// ListTools requests the serving agent's tool catalog. It carries no payload.
type ListTools struct{}

// ListToolsResponse answers a ListTools request. Exactly one of Tools or
// Error is meaningful: a failed listing carries Error and an empty catalog.
type ListToolsResponse struct {
	Tools []Tool `json:"tools,omitempty"`
	Error string `json:"error,omitempty"`
}

// CallTool requests invocation of a named tool with keyword arguments.
type CallTool struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CallToolResponse answers a CallTool request. Exactly one of Result or
// Error is populated, never both.
type CallToolResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Envelope wraps a protocol payload with its kind tag. Fabric messages
// carry envelopes as their data so payloads survive JSON transport intact
// and receivers can switch on Kind before decoding.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Wrap encodes v into an Envelope tagged with kind.
func Wrap(kind Kind, v any) (Envelope, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return Envelope{Kind: kind, Payload: payload}, nil
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Kind, err)
	}
	return nil
}

// EnvelopeFrom extracts an Envelope from arbitrary message data. Local
// in-process delivery hands the struct through unchanged; HTTP delivery
// round-trips it as JSON, arriving as a decoded map. Both forms are
// accepted.
func EnvelopeFrom(data any) (Envelope, error) {
	switch d := data.(type) {
	case Envelope:
		return d, nil
	case *Envelope:
		return *d, nil
	default:
		raw, err := json.Marshal(d)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode envelope data: %w", err)
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return Envelope{}, fmt.Errorf("decode envelope data: %w", err)
		}
		if env.Kind == "" {
			return Envelope{}, fmt.Errorf("message data carries no envelope kind")
		}
		return env, nil
	}
}
