package bridge_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/toolbridge/bridge"
	"github.com/tailored-agentic-units/toolbridge/core/protocol"
)

func dialWS(t *testing.T, b *bridge.Bridge) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(b.Router())
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocket_RoundTrip(t *testing.T) {
	service := &fakeService{
		listFn: func(context.Context) ([]protocol.Tool, error) {
			return []protocol.Tool{{Name: "echo"}}, nil
		},
	}
	conn := dialWS(t, bridge.New(service))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)))

	var resp bridge.Response
	require.NoError(t, conn.ReadJSON(&resp))
	require.Nil(t, resp.Error)
	assert.Equal(t, json.RawMessage("1"), resp.ID)
}

func TestWebSocket_PipelinedRequestsCompleteOutOfOrder(t *testing.T) {
	release := make(chan struct{})
	service := &fakeService{
		callFn: func(_ context.Context, name string, _ map[string]any) (json.RawMessage, error) {
			if name == "slow" {
				<-release
			}
			return json.RawMessage(`"` + name + `"`), nil
		},
	}
	conn := dialWS(t, bridge.New(service))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"slow"}}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"fast"}}`)))

	var first bridge.Response
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, json.RawMessage("2"), first.ID)

	close(release)

	var second bridge.Response
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, json.RawMessage("1"), second.ID)
}

func TestWebSocket_ParseErrorKeepsSessionAlive(t *testing.T) {
	service := &fakeService{
		listFn: func(context.Context) ([]protocol.Tool, error) { return nil, nil },
	}
	conn := dialWS(t, bridge.New(service))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	var parseErr bridge.Response
	require.NoError(t, conn.ReadJSON(&parseErr))
	require.NotNil(t, parseErr.Error)
	assert.Equal(t, bridge.CodeParseError, parseErr.Error.Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","id":3,"method":"tools/list"}`)))

	var listed bridge.Response
	require.NoError(t, conn.ReadJSON(&listed))
	assert.Nil(t, listed.Error)
	assert.Equal(t, json.RawMessage("3"), listed.ID)
}
