package fabric

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Node is a fabric participant with an HTTP transport. Messages addressed
// to endpoints registered on this node are delivered in process; messages
// for anyone else are POSTed to the configured route for that address.
// Delivery is at most once with no acknowledgement beyond the HTTP status.
type Node struct {
	hub     *hub
	routes  map[string]string
	client  *http.Client
	logger  *slog.Logger
	metrics *Metrics
	router  *chi.Mux

	listenAddr string
}

// NewNode creates a Node with an internal hub and the HTTP routes from cfg.
func NewNode(ctx context.Context, cfg Config) *Node {
	metrics := NewMetrics()

	n := &Node{
		hub:     newHub(ctx, cfg, metrics),
		routes:  cfg.Routes,
		client:  &http.Client{Timeout: cfg.DeliveryTimeout},
		logger:  cfg.Logger,
		metrics: metrics,

		listenAddr: cfg.ListenAddr,
	}

	n.router = chi.NewRouter()
	n.router.Use(middleware.RequestID)
	n.router.Use(middleware.Recoverer)
	n.router.Get("/health", n.handleHealth)
	n.router.Post("/messages", n.handleInbound)

	return n
}

// Register binds a handler to an address served by this node.
func (n *Node) Register(address string, handler Handler) error {
	return n.hub.Register(address, handler)
}

// Unregister removes an address from this node.
func (n *Node) Unregister(address string) error {
	return n.hub.Unregister(address)
}

// Send routes a message: locally when the destination address is registered
// on this node, otherwise over HTTP to the destination's configured
// endpoint. An address with neither a local endpoint nor a route is an
// ErrUnknownDestination.
func (n *Node) Send(ctx context.Context, message *Message) error {
	if n.hub.HasEndpoint(message.To) {
		return n.hub.Deliver(ctx, message)
	}

	endpoint, exists := n.routes[message.To]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownDestination, message.To)
	}

	if err := n.forward(ctx, endpoint, message); err != nil {
		return err
	}

	n.metrics.RecordForwarded(1)
	n.logger.DebugContext(
		ctx,
		"message forwarded",
		slog.String("to", message.To),
		slog.String("endpoint", endpoint),
		slog.String("message_id", message.ID),
	)
	return nil
}

func (n *Node) forward(ctx context.Context, endpoint string, message *Message) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build forward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("forward to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("forward to %s: unexpected status %d", endpoint, resp.StatusCode)
	}
	return nil
}

// Router exposes the node's HTTP handler for mounting or tests.
func (n *Node) Router() http.Handler { return n.router }

// ListenAndServe serves the node's HTTP endpoint until ctx is cancelled.
func (n *Node) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:              n.listenAddr,
		Handler:           n.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Metrics returns a snapshot of delivery counters.
func (n *Node) Metrics() MetricsSnapshot {
	return n.metrics.Snapshot()
}

// Shutdown stops local delivery.
func (n *Node) Shutdown(timeout time.Duration) error {
	return n.hub.Shutdown(timeout)
}

func (n *Node) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (n *Node) handleInbound(w http.ResponseWriter, r *http.Request) {
	var message Message
	if err := json.NewDecoder(r.Body).Decode(&message); err != nil {
		writeError(w, http.StatusBadRequest, "invalid message: "+err.Error())
		return
	}

	if err := n.hub.Deliver(r.Context(), &message); err != nil {
		n.metrics.RecordDropped(1)
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
