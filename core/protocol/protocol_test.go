package protocol_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/tailored-agentic-units/toolbridge/core/protocol"
)

func TestTool_InputSchema(t *testing.T) {
	tool := protocol.Tool{
		Name:        "get_forecast",
		Description: "Get weather forecast for a location",
		Parameters: map[string]protocol.ParameterSpec{
			"latitude":  {Type: "number", Required: true, Description: "Latitude of the location"},
			"longitude": {Type: "number", Required: true, Description: "Longitude of the location"},
			"units":     {Type: "string", Description: "Unit system"},
		},
	}

	schema := tool.InputSchema()

	if schema["type"] != "object" {
		t.Errorf("schema type = %v, want object", schema["type"])
	}

	required, ok := schema["required"].([]string)
	if !ok {
		t.Fatalf("required is %T, want []string", schema["required"])
	}
	if want := []string{"latitude", "longitude"}; !reflect.DeepEqual(required, want) {
		t.Errorf("required = %v, want %v", required, want)
	}

	properties := schema["properties"].(map[string]any)
	if len(properties) != 3 {
		t.Errorf("properties count = %d, want 3", len(properties))
	}
	lat := properties["latitude"].(map[string]any)
	if lat["type"] != "number" || lat["description"] != "Latitude of the location" {
		t.Errorf("latitude property = %v", lat)
	}
}

func TestTool_InputSchema_NoRequired(t *testing.T) {
	tool := protocol.Tool{
		Name:       "datetime",
		Parameters: map[string]protocol.ParameterSpec{"tz": {Type: "string"}},
	}

	schema := tool.InputSchema()
	if _, exists := schema["required"]; exists {
		t.Error("schema should omit required when no parameter is required")
	}
}

func TestEnvelope_RoundTrip(t *testing.T) {
	env, err := protocol.Wrap(protocol.KindCallTool, protocol.CallTool{
		Tool:      "echo",
		Arguments: map[string]any{"text": "hi"},
	})
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	var call protocol.CallTool
	if err := env.Decode(&call); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if call.Tool != "echo" {
		t.Errorf("Tool = %q, want echo", call.Tool)
	}
	if call.Arguments["text"] != "hi" {
		t.Errorf("Arguments = %v", call.Arguments)
	}
}

func TestEnvelopeFrom(t *testing.T) {
	env, err := protocol.Wrap(protocol.KindListTools, protocol.ListTools{})
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	tests := []struct {
		name    string
		data    any
		wantErr bool
	}{
		{name: "struct passthrough", data: env},
		{name: "pointer passthrough", data: &env},
		{name: "json round trip", data: mustDecodeMap(t, env)},
		{name: "foreign data", data: map[string]any{"weather": "sunny"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := protocol.EnvelopeFrom(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Error("EnvelopeFrom() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("EnvelopeFrom() error = %v", err)
			}
			if got.Kind != protocol.KindListTools {
				t.Errorf("Kind = %q, want %q", got.Kind, protocol.KindListTools)
			}
		})
	}
}

func mustDecodeMap(t *testing.T, v any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}
