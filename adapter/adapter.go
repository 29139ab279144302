// Package adapter exposes a tool registry on the messaging fabric. The
// ServerAdapter answers list_tools and call_tool envelopes addressed to it
// and guarantees exactly one reply, to the originating address, for every
// request it accepts — failures travel back as error responses instead of
// crossing the messaging boundary.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tailored-agentic-units/toolbridge/core/protocol"
	"github.com/tailored-agentic-units/toolbridge/fabric"
	"github.com/tailored-agentic-units/toolbridge/observability"
	"github.com/tailored-agentic-units/toolbridge/tools"
)

// Adapter event types.
const (
	EventRequestReceived observability.EventType = "adapter.request.received"
	EventReplySent       observability.EventType = "adapter.reply.sent"
	EventReplyFailed     observability.EventType = "adapter.reply.failed"
)

// Sender routes a message toward its destination address. *fabric.Node
// satisfies it.
type Sender interface {
	Send(ctx context.Context, message *fabric.Message) error
}

// Registrar binds an address to a handler. *fabric.Node and fabric.Hub
// satisfy it.
type Registrar interface {
	Register(address string, handler fabric.Handler) error
}

// Option configures a ServerAdapter after construction.
type Option func(*ServerAdapter)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *ServerAdapter) { a.logger = logger }
}

// WithObserver overrides the default NoOpObserver.
func WithObserver(o observability.Observer) Option {
	return func(a *ServerAdapter) { a.observer = o }
}

// ServerAdapter speaks the fabric tool protocol on behalf of a Registry.
type ServerAdapter struct {
	registry *tools.Registry
	sender   Sender
	address  string
	logger   *slog.Logger
	observer observability.Observer
}

// New creates a ServerAdapter serving registry at the given fabric address.
func New(registry *tools.Registry, sender Sender, address string, opts ...Option) *ServerAdapter {
	a := &ServerAdapter{
		registry: registry,
		sender:   sender,
		address:  address,
		logger:   slog.Default(),
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Address returns the fabric address the adapter answers on.
func (a *ServerAdapter) Address() string { return a.address }

// Bind registers the adapter's address and handler on the fabric.
func (a *ServerAdapter) Bind(r Registrar) error {
	return r.Register(a.address, a.HandleMessage)
}

// HandleMessage is the fabric handler. The fabric dispatches each inbound
// message in its own goroutine, so concurrent call_tool requests execute
// independently and may complete out of order.
func (a *ServerAdapter) HandleMessage(ctx context.Context, msg *fabric.Message) (*fabric.Message, error) {
	env, err := protocol.EnvelopeFrom(msg.Data)
	if err != nil {
		return nil, fmt.Errorf("unreadable message from %s: %w", msg.From, err)
	}

	a.observer.OnEvent(ctx, observability.NewEvent(EventRequestReceived, observability.LevelVerbose, "adapter", map[string]any{
		"kind":       string(env.Kind),
		"from":       msg.From,
		"message_id": msg.ID,
	}))

	switch env.Kind {
	case protocol.KindListTools:
		a.reply(ctx, msg, protocol.KindListToolsResponse, a.listTools())
		return nil, nil
	case protocol.KindCallTool:
		var call protocol.CallTool
		if err := env.Decode(&call); err != nil {
			a.reply(ctx, msg, protocol.KindCallToolResponse, protocol.CallToolResponse{
				Error: "malformed call_tool request: " + err.Error(),
			})
			return nil, nil
		}
		a.reply(ctx, msg, protocol.KindCallToolResponse, a.callTool(ctx, call))
		return nil, nil
	default:
		// Not a request we answer; drop rather than fail the sender.
		a.logger.DebugContext(ctx, "ignoring unknown envelope kind",
			slog.String("kind", string(env.Kind)),
			slog.String("from", msg.From),
		)
		return nil, nil
	}
}

func (a *ServerAdapter) listTools() protocol.ListToolsResponse {
	return protocol.ListToolsResponse{Tools: a.registry.List()}
}

func (a *ServerAdapter) callTool(ctx context.Context, call protocol.CallTool) (response protocol.CallToolResponse) {
	// A panicking handler must still produce a reply.
	defer func() {
		if r := recover(); r != nil {
			response = protocol.CallToolResponse{
				Error: fmt.Sprintf("tool %s panicked: %v", call.Tool, r),
			}
		}
	}()

	result, err := a.registry.Call(ctx, call.Tool, call.Arguments)
	if err != nil {
		return protocol.CallToolResponse{Error: err.Error()}
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return protocol.CallToolResponse{
			Error: fmt.Sprintf("tool %s returned an unencodable result: %v", call.Tool, err),
		}
	}
	return protocol.CallToolResponse{Result: raw}
}

// reply sends exactly one response envelope back to the request's
// originating address, tagged with the request's message ID.
func (a *ServerAdapter) reply(ctx context.Context, request *fabric.Message, kind protocol.Kind, payload any) {
	env, err := protocol.Wrap(kind, payload)
	if err != nil {
		// Payloads are our own types; this is unreachable short of a bug.
		a.logger.ErrorContext(ctx, "failed to encode reply",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return
	}

	response := fabric.NewResponse(a.address, request.From, request.ID, env).Build()
	if err := a.sender.Send(ctx, response); err != nil {
		a.observer.OnEvent(ctx, observability.NewEvent(EventReplyFailed, observability.LevelError, "adapter", map[string]any{
			"to":         request.From,
			"message_id": request.ID,
			"error":      err.Error(),
		}))
		a.logger.ErrorContext(ctx, "failed to send reply",
			slog.String("to", request.From),
			slog.String("error", err.Error()),
		)
		return
	}

	a.observer.OnEvent(ctx, observability.NewEvent(EventReplySent, observability.LevelVerbose, "adapter", map[string]any{
		"kind":       string(kind),
		"to":         request.From,
		"message_id": request.ID,
	}))
}
