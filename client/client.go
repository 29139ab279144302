// Package client implements the caller side of the fabric tool protocol:
// it sends list_tools/call_tool requests to a target address and blocks the
// caller until the correlated response arrives or a deadline passes.
//
// The fabric offers no request/response correlation of its own, so the
// client keeps a pending-call table keyed by the outgoing message id and
// matches inbound responses by their ReplyTo. Responses matching no pending
// call — duplicates, or replies arriving after their caller timed out —
// are dropped.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tailored-agentic-units/toolbridge/core/protocol"
	"github.com/tailored-agentic-units/toolbridge/fabric"
)

const defaultTimeout = 90 * time.Second

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

// Option configures an AgentClient after construction.
type Option func(*AgentClient)

// WithTimeout overrides the default per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *AgentClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *AgentClient) { c.logger = logger }
}

// AgentClient calls tools hosted behind a target fabric address.
type AgentClient struct {
	sender  Sender
	address string
	target  string
	timeout time.Duration
	logger  *slog.Logger
	pending *pendingTable
}

// New creates an AgentClient that sends from address to target.
func New(sender Sender, address, target string, opts ...Option) *AgentClient {
	c := &AgentClient{
		sender:  sender,
		address: address,
		target:  target,
		timeout: defaultTimeout,
		logger:  slog.Default(),
		pending: newPendingTable(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bind registers the client's receive handler on the fabric. Must be called
// before the first request.
func (c *AgentClient) Bind(r Registrar) error {
	return r.Register(c.address, c.handleResponse)
}

// Address returns the client's own fabric address.
func (c *AgentClient) Address() string { return c.address }

// ListTools fetches the target's tool catalog.
func (c *AgentClient) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	env, err := c.roundTrip(ctx, protocol.KindListTools, protocol.KindListToolsResponse, protocol.ListTools{})
	if err != nil {
		return nil, err
	}

	var resp protocol.ListToolsResponse
	if err := env.Decode(&resp); err != nil {
		return nil, &RemoteError{Message: err.Error()}
	}
	if resp.Error != "" {
		return nil, &RemoteError{Message: resp.Error}
	}
	return resp.Tools, nil
}

// CallTool invokes the named tool on the target and returns its raw result.
func (c *AgentClient) CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	env, err := c.roundTrip(ctx, protocol.KindCallTool, protocol.KindCallToolResponse, protocol.CallTool{
		Tool:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, err
	}

	var resp protocol.CallToolResponse
	if err := env.Decode(&resp); err != nil {
		return nil, &RemoteError{Message: err.Error()}
	}
	if resp.Error != "" {
		return nil, &RemoteError{Message: resp.Error}
	}
	return resp.Result, nil
}

// PendingCalls reports the number of in-flight requests.
func (c *AgentClient) PendingCalls() int {
	return c.pending.size()
}

// roundTrip sends one request envelope and blocks until the correlated
// response arrives, ctx is cancelled, or the deadline elapses. Timing out
// removes the pending entry first, so a late response cannot resolve a
// stale call.
func (c *AgentClient) roundTrip(ctx context.Context, reqKind, respKind protocol.Kind, payload any) (protocol.Envelope, error) {
	env, err := protocol.Wrap(reqKind, payload)
	if err != nil {
		return protocol.Envelope{}, err
	}

	message := fabric.NewRequest(c.address, c.target, env).Build()
	deadline := time.Now().Add(c.timeout)
	call := c.pending.insert(message.ID, deadline)

	if err := c.sender.Send(ctx, message); err != nil {
		c.pending.take(message.ID)
		return protocol.Envelope{}, &TransportError{Op: "send", Err: err}
	}

	timer := time.NewTimer(time.Until(call.deadline))
	defer timer.Stop()

	select {
	case response := <-call.result:
		if response.Kind != respKind {
			return protocol.Envelope{}, &RemoteError{
				Message: fmt.Sprintf("unexpected response kind %s to %s request", response.Kind, reqKind),
			}
		}
		return response, nil
	case <-ctx.Done():
		c.pending.take(message.ID)
		return protocol.Envelope{}, ctx.Err()
	case <-timer.C:
		c.pending.take(message.ID)
		return protocol.Envelope{}, fmt.Errorf("%w: %s after %v", ErrTimeout, reqKind, c.timeout)
	}
}

// handleResponse is the fabric receive loop for this client's address.
// Correlation is by ReplyTo; whoever takes the entry delivers the result,
// so every pending call resolves at most once.
func (c *AgentClient) handleResponse(ctx context.Context, msg *fabric.Message) (*fabric.Message, error) {
	if msg.ReplyTo == "" {
		c.logger.DebugContext(ctx, "dropping uncorrelated message",
			slog.String("from", msg.From),
			slog.String("message_id", msg.ID),
		)
		return nil, nil
	}

	call := c.pending.take(msg.ReplyTo)
	if call == nil {
		// Duplicate delivery, or a reply that lost its race with the
		// caller's timeout.
		c.logger.DebugContext(ctx, "dropping response with no pending call",
			slog.String("from", msg.From),
			slog.String("reply_to", msg.ReplyTo),
		)
		return nil, nil
	}

	env, err := protocol.EnvelopeFrom(msg.Data)
	if err != nil {
		// The waiter still gets an answer; an empty envelope surfaces as
		// a remote error rather than a silent timeout.
		c.logger.WarnContext(ctx, "unreadable response payload",
			slog.String("from", msg.From),
			slog.String("error", err.Error()),
		)
	}
	call.result <- env
	return nil, nil
}
