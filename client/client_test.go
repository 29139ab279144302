package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/toolbridge/client"
	"github.com/tailored-agentic-units/toolbridge/core/protocol"
	"github.com/tailored-agentic-units/toolbridge/fabric"
)

// echoResponder registers a fabric endpoint that answers call_tool requests
// by echoing the arguments, and list_tools requests with a fixed catalog.
// Tools named "slow" block until release is closed; tools named "fail"
// reply with a remote error; "mute" never replies at all.
func echoResponder(t *testing.T, hub fabric.Hub, address string, release <-chan struct{}) {
	t.Helper()

	handler := func(ctx context.Context, msg *fabric.Message) (*fabric.Message, error) {
		env, err := protocol.EnvelopeFrom(msg.Data)
		require.NoError(t, err)

		switch env.Kind {
		case protocol.KindListTools:
			resp, err := protocol.Wrap(protocol.KindListToolsResponse, protocol.ListToolsResponse{
				Tools: []protocol.Tool{{Name: "echo", Description: "echoes"}},
			})
			require.NoError(t, err)
			return fabric.NewResponse(address, msg.From, msg.ID, resp).Build(), nil

		case protocol.KindCallTool:
			var call protocol.CallTool
			require.NoError(t, env.Decode(&call))

			switch call.Tool {
			case "mute":
				return nil, nil
			case "slow":
				<-release
			case "fail":
				resp, err := protocol.Wrap(protocol.KindCallToolResponse, protocol.CallToolResponse{
					Error: "tool blew up",
				})
				require.NoError(t, err)
				return fabric.NewResponse(address, msg.From, msg.ID, resp).Build(), nil
			}

			raw, err := json.Marshal(call.Arguments)
			require.NoError(t, err)
			resp, err := protocol.Wrap(protocol.KindCallToolResponse, protocol.CallToolResponse{Result: raw})
			require.NoError(t, err)
			return fabric.NewResponse(address, msg.From, msg.ID, resp).Build(), nil
		}
		return nil, nil
	}

	require.NoError(t, hub.Register(address, handler))
}

func newTestClient(t *testing.T, release <-chan struct{}, opts ...client.Option) *client.AgentClient {
	t.Helper()

	cfg := fabric.DefaultConfig()
	cfg.Name = "test-fabric"
	hub := fabric.NewHub(context.Background(), cfg)
	t.Cleanup(func() { _ = hub.Shutdown(5 * time.Second) })

	echoResponder(t, hub, "tool-agent", release)

	c := client.New(hubSender{hub}, "bridge-client", "tool-agent", opts...)
	require.NoError(t, c.Bind(hub))
	return c
}

type hubSender struct {
	hub fabric.Hub
}

func (s hubSender) Send(ctx context.Context, msg *fabric.Message) error {
	return s.hub.Deliver(ctx, msg)
}

func TestListTools(t *testing.T) {
	c := newTestClient(t, nil)

	tools, err := c.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)
	assert.Zero(t, c.PendingCalls())
}

func TestCallTool(t *testing.T) {
	c := newTestClient(t, nil)

	result, err := c.CallTool(context.Background(), "echo", map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"hi"}`, string(result))
	assert.Zero(t, c.PendingCalls())
}

func TestCallTool_RemoteError(t *testing.T) {
	c := newTestClient(t, nil)

	_, err := c.CallTool(context.Background(), "fail", nil)

	var remote *client.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Contains(t, remote.Message, "tool blew up")
}

func TestCallTool_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, release, client.WithTimeout(50*time.Millisecond))

	_, err := c.CallTool(context.Background(), "slow", nil)
	require.ErrorIs(t, err, client.ErrTimeout)
	assert.Zero(t, c.PendingCalls(), "timed-out call must leave the table")

	// Let the responder finish; its late reply must match nothing and
	// must not disturb the client.
	close(release)
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, c.PendingCalls())

	// The client is still fully usable afterwards.
	result, err := c.CallTool(context.Background(), "echo", map[string]any{"n": float64(1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(result))
}

func TestCallTool_NoReply(t *testing.T) {
	c := newTestClient(t, nil, client.WithTimeout(50*time.Millisecond))

	_, err := c.CallTool(context.Background(), "mute", nil)
	require.ErrorIs(t, err, client.ErrTimeout)
}

func TestCallTool_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := newTestClient(t, release, client.WithTimeout(10*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.CallTool(ctx, "slow", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, c.PendingCalls())
}

func TestCallTool_TransportFailure(t *testing.T) {
	failing := senderFunc(func(_ context.Context, _ *fabric.Message) error {
		return errors.New("connection refused")
	})
	c := client.New(failing, "bridge-client", "tool-agent", client.WithTimeout(time.Second))

	_, err := c.CallTool(context.Background(), "echo", nil)

	var transport *client.TransportError
	require.ErrorAs(t, err, &transport)
	assert.Zero(t, c.PendingCalls(), "failed sends must not leak pending entries")
}

type senderFunc func(ctx context.Context, msg *fabric.Message) error

func (f senderFunc) Send(ctx context.Context, msg *fabric.Message) error { return f(ctx, msg) }

func TestConcurrentCalls_CorrelateIndependently(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, release, client.WithTimeout(5*time.Second))

	var wg sync.WaitGroup
	slowErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := c.CallTool(context.Background(), "slow", nil)
		slowErr <- err
	}()

	// Fast calls complete while the slow one is outstanding, each getting
	// its own arguments back.
	for i := range 5 {
		args := map[string]any{"i": float64(i)}
		result, err := c.CallTool(context.Background(), "echo", args)
		require.NoError(t, err)
		assert.JSONEq(t, fmt.Sprintf(`{"i":%d}`, i), string(result))
	}

	assert.Equal(t, 1, c.PendingCalls(), "slow call still outstanding")

	close(release)
	wg.Wait()
	require.NoError(t, <-slowErr)
	assert.Zero(t, c.PendingCalls())
}
