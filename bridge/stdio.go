package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
)

const maxLineBytes = 1 << 20

// ServeStdio runs a line-delimited JSON-RPC session: one request per line
// in, one response per line out. Requests are dispatched concurrently, so a
// slow call never blocks the next line from being read; responses appear in
// completion order, tagged with their request's id. An unparsable line gets
// a parse-error response and the session continues.
//
// ServeStdio returns when r is exhausted, ctx is cancelled, or reading
// fails; all dispatched requests are drained before it returns.
func (b *Bridge) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var writeMu sync.Mutex
	var wg sync.WaitGroup
	defer wg.Wait()

	write := func(resp *Response) {
		if resp == nil {
			return
		}
		out, err := json.Marshal(resp)
		if err != nil {
			b.logger.ErrorContext(ctx, "failed to encode response",
				slog.String("error", err.Error()),
			)
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		if _, err := w.Write(append(out, '\n')); err != nil {
			b.logger.ErrorContext(ctx, "failed to write response",
				slog.String("error", err.Error()),
			)
		}
	}

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			write(NewError(nil, CodeParseError, "parse error: "+err.Error()))
			continue
		}
		if req.IsNotification() {
			// Nothing to tag a response with; JSON-RPC notifications
			// get none.
			continue
		}

		wg.Add(1)
		go func(req Request) {
			defer wg.Done()
			write(b.Handle(ctx, req))
		}(req)
	}

	return scanner.Err()
}
