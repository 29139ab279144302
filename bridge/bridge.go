// Package bridge translates synchronous JSON-RPC calls into asynchronous
// fabric requests. Each inbound request moves through received → dispatched
// → completed/timed out/failed; the response carries the original request
// id whatever order completions arrive in, so sessions may pipeline freely.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/tailored-agentic-units/toolbridge/client"
	"github.com/tailored-agentic-units/toolbridge/core/protocol"
	"github.com/tailored-agentic-units/toolbridge/observability"
)

// Bridge event types emitted per request state transition.
const (
	EventRequestReceived  observability.EventType = "bridge.request.received"
	EventRequestCompleted observability.EventType = "bridge.request.completed"
	EventRequestFailed    observability.EventType = "bridge.request.failed"
	EventRequestTimeout   observability.EventType = "bridge.request.timeout"
)

// Methods the bridge forwards to the agent.
const (
	MethodListTools = "tools/list"
	MethodCallTool  = "tools/call"
)

// ToolService is the caller-side agent surface the bridge delegates to.
// *client.AgentClient implements it.
type ToolService interface {
	ListTools(ctx context.Context) ([]protocol.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error)
}

// Option configures a Bridge after construction.
type Option func(*Bridge)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// WithObserver overrides the default NoOpObserver.
func WithObserver(o observability.Observer) Option {
	return func(b *Bridge) { b.observer = o }
}

// Bridge exposes a ToolService over JSON-RPC.
type Bridge struct {
	service  ToolService
	logger   *slog.Logger
	observer observability.Observer
}

// New creates a Bridge delegating to service.
func New(service ToolService, opts ...Option) *Bridge {
	b := &Bridge{
		service:  service,
		logger:   slog.Default(),
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Handle dispatches one parsed JSON-RPC request and returns its response.
// Unknown methods fail immediately without contacting the agent. Errors in
// one request never affect another: Handle holds no state between calls.
func (b *Bridge) Handle(ctx context.Context, req Request) *Response {
	b.observer.OnEvent(ctx, observability.NewEvent(EventRequestReceived, observability.LevelVerbose, "bridge", map[string]any{
		"method": req.Method,
		"id":     string(req.ID),
	}))

	switch req.Method {
	case MethodListTools:
		tools, err := b.service.ListTools(ctx)
		if err != nil {
			return b.failure(ctx, req, err)
		}
		return b.success(ctx, req, map[string]any{"tools": tools})

	case MethodCallTool:
		var params callParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				return b.errorResponse(ctx, req, CodeInvalidParams, "malformed params: "+err.Error())
			}
		}
		if params.Name == "" {
			return b.errorResponse(ctx, req, CodeInvalidParams, "params.name is required")
		}

		result, err := b.service.CallTool(ctx, params.Name, params.Arguments)
		if err != nil {
			return b.failure(ctx, req, err)
		}
		return b.success(ctx, req, result)

	default:
		return b.errorResponse(ctx, req, CodeMethodNotFound, "method not found: "+req.Method)
	}
}

func (b *Bridge) success(ctx context.Context, req Request, result any) *Response {
	b.observer.OnEvent(ctx, observability.NewEvent(EventRequestCompleted, observability.LevelInfo, "bridge", map[string]any{
		"method": req.Method,
		"id":     string(req.ID),
	}))
	return NewResult(req.ID, result)
}

// failure maps the client error taxonomy onto distinct JSON-RPC codes.
func (b *Bridge) failure(ctx context.Context, req Request, err error) *Response {
	code := CodeInternalError
	eventType := EventRequestFailed

	var remote *client.RemoteError
	var transport *client.TransportError
	switch {
	case errors.Is(err, client.ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
		code = CodeTimeout
		eventType = EventRequestTimeout
	case errors.As(err, &remote):
		code = CodeRemoteError
	case errors.As(err, &transport):
		code = CodeTransportError
	}

	b.observer.OnEvent(ctx, observability.NewEvent(eventType, observability.LevelError, "bridge", map[string]any{
		"method": req.Method,
		"id":     string(req.ID),
		"code":   code,
		"error":  err.Error(),
	}))
	return NewError(req.ID, code, err.Error())
}

func (b *Bridge) errorResponse(ctx context.Context, req Request, code int, message string) *Response {
	b.observer.OnEvent(ctx, observability.NewEvent(EventRequestFailed, observability.LevelError, "bridge", map[string]any{
		"method": req.Method,
		"id":     string(req.ID),
		"code":   code,
		"error":  message,
	}))
	return NewError(req.ID, code, message)
}
