package bridge

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// handleWebSocket runs a JSON-RPC session over a websocket: each text
// message is one request, each response one message. Like the stdio
// session, requests are dispatched concurrently and responses serialized by
// a write mutex, so pipelined calls complete in any order with correct ids.
func (b *Bridge) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()),
		)
		return
	}
	defer conn.Close()

	ctx := r.Context()

	var writeMu sync.Mutex
	var wg sync.WaitGroup
	defer wg.Wait()

	write := func(resp *Response) {
		if resp == nil {
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(resp); err != nil {
			b.logger.ErrorContext(ctx, "failed to write websocket response",
				slog.String("error", err.Error()),
			)
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.logger.DebugContext(ctx, "websocket session ended",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			write(NewError(nil, CodeParseError, "parse error: "+err.Error()))
			continue
		}
		if req.IsNotification() {
			continue
		}

		wg.Add(1)
		go func(req Request) {
			defer wg.Done()
			write(b.Handle(ctx, req))
		}(req)
	}
}
