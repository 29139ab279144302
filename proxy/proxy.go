// Package proxy is the stdio front door for MCP-dialect clients. It answers
// the client's handshake (initialize, tools/list, resources/list,
// prompts/list) locally and forwards everything else to a bridge over HTTP,
// reshaping tools/call results into the MCP content form the client
// expects.
package proxy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tailored-agentic-units/toolbridge/bridge"
	"github.com/tailored-agentic-units/toolbridge/core/protocol"
)

const (
	// DefaultBridgeURL matches the bridge's default listen address and
	// JSON-RPC path.
	DefaultBridgeURL = "http://localhost:8080/jsonrpc"

	defaultTimeout  = 120 * time.Second
	defaultCacheTTL = 60 * time.Second
	maxLineBytes    = 1 << 20

	serverName    = "toolbridge"
	serverVersion = "0.1.0"
)

// SupportedVersions lists the MCP protocol revisions the proxy can speak,
// newest last.
var SupportedVersions = []string{"2024-11-05", "2025-03-26"}

// ErrVersionMismatch terminates the session when the client asks for a
// protocol revision the proxy does not speak.
var ErrVersionMismatch = errors.New("unsupported protocol version")

// Option configures a Proxy after construction.
type Option func(*Proxy)

// WithTimeout bounds each forwarded bridge call.
func WithTimeout(d time.Duration) Option {
	return func(p *Proxy) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Proxy) { p.logger = logger }
}

// WithHTTPClient overrides the HTTP client used to reach the bridge.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Proxy) { p.client = client }
}

// WithCacheTTL overrides how long a fetched tool catalog stays fresh.
func WithCacheTTL(ttl time.Duration) Option {
	return func(p *Proxy) {
		if ttl > 0 {
			p.cache = newToolCache(ttl)
		}
	}
}

// Proxy adapts a single MCP stdio session onto a bridge.
type Proxy struct {
	bridgeURL string
	client    *http.Client
	timeout   time.Duration
	logger    *slog.Logger
	cache     *toolCache
}

// New creates a Proxy forwarding to the bridge at bridgeURL.
func New(bridgeURL string, opts ...Option) *Proxy {
	if bridgeURL == "" {
		bridgeURL = DefaultBridgeURL
	}
	p := &Proxy{
		bridgeURL: bridgeURL,
		client:    &http.Client{},
		timeout:   defaultTimeout,
		logger:    slog.Default(),
		cache:     newToolCache(defaultCacheTTL),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run serves one stdio session: one JSON-RPC request per line in, one
// response per line out. Handshake methods are answered locally; everything
// else goes to the bridge. Run returns when r is exhausted, ctx is
// cancelled, or the client negotiates a protocol version the proxy does not
// speak.
func (p *Proxy) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req bridge.Request
		if err := json.Unmarshal(line, &req); err != nil {
			p.write(ctx, w, bridge.NewError(nil, bridge.CodeParseError, "parse error: "+err.Error()))
			continue
		}

		if strings.HasPrefix(req.Method, "notifications/") || req.IsNotification() {
			p.logger.DebugContext(ctx, "ignoring notification", slog.String("method", req.Method))
			continue
		}

		switch req.Method {
		case "initialize":
			resp, err := p.initialize(ctx, req)
			p.write(ctx, w, resp)
			if err != nil {
				return err
			}
		case "tools/list":
			p.write(ctx, w, p.listTools(ctx, req))
		case "resources/list":
			p.write(ctx, w, bridge.NewResult(req.ID, map[string]any{"resources": []any{}}))
		case "prompts/list":
			p.write(ctx, w, bridge.NewResult(req.ID, map[string]any{"prompts": []any{}}))
		default:
			p.write(ctx, w, p.forward(ctx, req, line))
		}
	}

	return scanner.Err()
}

// initialize negotiates the protocol version. A revision the proxy does not
// speak gets a descriptive error response and a non-nil error, ending the
// session before any tool call is attempted.
func (p *Proxy) initialize(ctx context.Context, req bridge.Request) (*bridge.Response, error) {
	var params struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return bridge.NewError(req.ID, bridge.CodeInvalidParams, "malformed params: "+err.Error()), nil
		}
	}
	if params.ProtocolVersion == "" {
		params.ProtocolVersion = SupportedVersions[0]
	}

	supported := false
	for _, v := range SupportedVersions {
		if v == params.ProtocolVersion {
			supported = true
			break
		}
	}
	if !supported {
		message := fmt.Sprintf("unsupported protocol version %q (supported: %s)",
			params.ProtocolVersion, strings.Join(SupportedVersions, ", "))
		p.logger.ErrorContext(ctx, "handshake failed", slog.String("error", message))
		return bridge.NewError(req.ID, bridge.CodeInvalidParams, message),
			fmt.Errorf("%w: %s", ErrVersionMismatch, params.ProtocolVersion)
	}

	capabilities := map[string]any{"tools": map[string]any{}}
	if tools, err := p.fetchTools(ctx); err == nil {
		advertised := make(map[string]any, len(tools))
		for _, tool := range tools {
			advertised[tool.Name] = mcpTool(tool)
		}
		capabilities["tools"] = advertised
	} else {
		// The handshake still succeeds; the client discovers tools via
		// tools/list once the bridge is reachable.
		p.logger.WarnContext(ctx, "tool advertisement unavailable", slog.String("error", err.Error()))
	}

	return bridge.NewResult(req.ID, map[string]any{
		"protocolVersion": params.ProtocolVersion,
		"capabilities":    capabilities,
		"serverInfo": map[string]any{
			"name":    serverName,
			"version": serverVersion,
		},
	}), nil
}

func (p *Proxy) listTools(ctx context.Context, req bridge.Request) *bridge.Response {
	tools, err := p.fetchTools(ctx)
	if err != nil {
		return p.failure(req, err)
	}

	descriptors := make([]map[string]any, 0, len(tools))
	for _, tool := range tools {
		descriptors = append(descriptors, mcpTool(tool))
	}
	return bridge.NewResult(req.ID, map[string]any{"tools": descriptors})
}

// mcpTool renders a tool descriptor in the inputSchema dialect.
func mcpTool(tool protocol.Tool) map[string]any {
	return map[string]any{
		"name":        tool.Name,
		"description": tool.Description,
		"inputSchema": tool.InputSchema(),
	}
}

// fetchTools returns the bridge's tool catalog, served from cache inside
// the TTL.
func (p *Proxy) fetchTools(ctx context.Context) ([]protocol.Tool, error) {
	if tools, ok := p.cache.get(); ok {
		return tools, nil
	}

	body, err := p.post(ctx, []byte(`{"jsonrpc":"2.0","id":"proxy-tools-list","method":"tools/list"}`))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			Tools []protocol.Tool `json:"tools"`
		} `json:"result"`
		Error *bridge.Error `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unreadable bridge response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("bridge error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	p.cache.set(resp.Result.Tools)
	return resp.Result.Tools, nil
}

// forward posts the client's request to the bridge unchanged. tools/call
// results are rewrapped as MCP content; everything else passes through.
func (p *Proxy) forward(ctx context.Context, req bridge.Request, line []byte) *bridge.Response {
	body, err := p.post(ctx, line)
	if err != nil {
		return p.failure(req, err)
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *bridge.Error   `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return p.failure(req, fmt.Errorf("unreadable bridge response: %w", err))
	}
	if resp.Error != nil {
		return &bridge.Response{JSONRPC: bridge.Version, ID: req.ID, Error: resp.Error}
	}

	if req.Method == bridge.MethodCallTool {
		return bridge.NewResult(req.ID, map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": string(resp.Result)},
			},
		})
	}
	return bridge.NewResult(req.ID, resp.Result)
}

func (p *Proxy) post(ctx context.Context, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.bridgeURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("bridge returned status %d", httpResp.StatusCode)
	}
	return body, nil
}

// failure maps a forwarding error onto the proxy's two error codes: the
// bridge not answering in time, and everything else.
func (p *Proxy) failure(req bridge.Request, err error) *bridge.Response {
	if errors.Is(err, context.DeadlineExceeded) {
		return bridge.NewError(req.ID, bridge.CodeTimeout, "bridge request timed out")
	}
	return bridge.NewError(req.ID, bridge.CodeRemoteError, "proxy error: "+err.Error())
}

func (p *Proxy) write(ctx context.Context, w io.Writer, resp *bridge.Response) {
	if resp == nil {
		return
	}
	out, err := json.Marshal(resp)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to encode response", slog.String("error", err.Error()))
		return
	}
	if _, err := w.Write(append(out, '\n')); err != nil {
		p.logger.ErrorContext(ctx, "failed to write response", slog.String("error", err.Error()))
	}
}
