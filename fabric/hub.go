package fabric

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type registration struct {
	Address string
	Handler Handler
	Channel *MessageChannel[*Message]
}

// Hub delivers messages to addresses registered in this process. Delivery
// is asynchronous and at most once: a message is queued on the endpoint's
// buffered channel and handled in its own goroutine, so two requests to the
// same address may complete out of order.
type Hub interface {
	Register(address string, handler Handler) error
	Unregister(address string) error

	Deliver(ctx context.Context, message *Message) error
	HasEndpoint(address string) bool

	Metrics() MetricsSnapshot
	Shutdown(timeout time.Duration) error
}

type hub struct {
	name string

	endpoints      map[string]*registration
	endpointsMutex sync.RWMutex

	channelBufferSize int

	logger  *slog.Logger
	metrics *Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewHub(ctx context.Context, cfg Config) Hub {
	return newHub(ctx, cfg, NewMetrics())
}

func newHub(ctx context.Context, cfg Config, metrics *Metrics) *hub {
	hubCtx, cancel := context.WithCancel(ctx)

	return &hub{
		name:              cfg.Name,
		endpoints:         make(map[string]*registration),
		channelBufferSize: cfg.ChannelBufferSize,
		logger:            cfg.Logger,
		metrics:           metrics,
		ctx:               hubCtx,
		cancel:            cancel,
	}
}

func (h *hub) Register(address string, handler Handler) error {
	h.endpointsMutex.Lock()
	defer h.endpointsMutex.Unlock()

	if _, exists := h.endpoints[address]; exists {
		return fmt.Errorf("%w: %s", ErrEndpointExists, address)
	}

	reg := &registration{
		Address: address,
		Handler: handler,
		Channel: NewMessageChannel[*Message](h.ctx, h.channelBufferSize),
	}

	h.endpoints[address] = reg
	h.metrics.RecordEndpoint(1)

	h.wg.Add(1)
	go h.deliveryLoop(reg)

	h.logger.DebugContext(
		h.ctx,
		"endpoint registered",
		slog.String("hub_name", h.name),
		slog.String("address", address),
	)

	return nil
}

func (h *hub) Unregister(address string) error {
	h.endpointsMutex.Lock()
	reg, exists := h.endpoints[address]
	if exists {
		delete(h.endpoints, address)
		reg.Channel.Close()
	}
	h.endpointsMutex.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrEndpointNotFound, address)
	}

	h.metrics.RecordEndpoint(-1)
	h.logger.DebugContext(
		h.ctx,
		"endpoint unregistered",
		slog.String("hub_name", h.name),
		slog.String("address", address),
	)

	return nil
}

func (h *hub) HasEndpoint(address string) bool {
	h.endpointsMutex.RLock()
	defer h.endpointsMutex.RUnlock()
	_, exists := h.endpoints[address]
	return exists
}

func (h *hub) Deliver(ctx context.Context, message *Message) error {
	h.endpointsMutex.RLock()
	reg, exists := h.endpoints[message.To]
	h.endpointsMutex.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownDestination, message.To)
	}

	if err := reg.Channel.Send(ctx, message); err != nil {
		return fmt.Errorf("failed to deliver message: %w", err)
	}

	h.metrics.RecordDelivered(1)
	return nil
}

func (h *hub) Metrics() MetricsSnapshot {
	return h.metrics.Snapshot()
}

func (h *hub) Shutdown(timeout time.Duration) error {
	h.logger.DebugContext(
		h.ctx,
		"shutting down hub",
		slog.String("hub_name", h.name),
	)
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("hub shutdown timeout after %v", timeout)
	}
}

func (h *hub) deliveryLoop(reg *registration) {
	defer h.wg.Done()

	for {
		message, err := reg.Channel.Receive(h.ctx)
		if err != nil {
			return
		}
		if message == nil {
			// Closed channel on unregister.
			return
		}
		go h.handleMessage(reg, message)
	}
}

func (h *hub) handleMessage(reg *registration, message *Message) {
	if reg.Handler == nil {
		return
	}

	response, err := reg.Handler(h.ctx, message)
	if err != nil {
		h.logger.ErrorContext(
			h.ctx,
			"message handler failed",
			slog.String("hub_name", h.name),
			slog.String("address", reg.Address),
			slog.String("from", message.From),
			slog.String("error", err.Error()),
		)
		return
	}

	if response == nil {
		return
	}

	if err := h.Deliver(h.ctx, response); err != nil {
		h.metrics.RecordDropped(1)
		h.logger.WarnContext(
			h.ctx,
			"failed to route handler response",
			slog.String("hub_name", h.name),
			slog.String("from", response.From),
			slog.String("to", response.To),
			slog.String("error", err.Error()),
		)
	}
}
