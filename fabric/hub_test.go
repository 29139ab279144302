package fabric_test

import (
	"context"
	"testing"
	"time"

	"github.com/tailored-agentic-units/toolbridge/fabric"
)

// Helper function to create a test hub
func createTestHub(t *testing.T) fabric.Hub {
	t.Helper()
	ctx := context.Background()
	cfg := fabric.DefaultConfig()
	cfg.Name = "test-hub"
	return fabric.NewHub(ctx, cfg)
}

func nopHandler(_ context.Context, _ *fabric.Message) (*fabric.Message, error) {
	return nil, nil
}

func TestHub_Register(t *testing.T) {
	h := createTestHub(t)
	defer h.Shutdown(5 * time.Second)

	if err := h.Register("agent-a", nopHandler); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if !h.HasEndpoint("agent-a") {
		t.Error("HasEndpoint(agent-a) = false after Register")
	}

	metrics := h.Metrics()
	if metrics.Endpoints != 1 {
		t.Errorf("Endpoints = %d, want 1", metrics.Endpoints)
	}
}

func TestHub_Register_Duplicate(t *testing.T) {
	h := createTestHub(t)
	defer h.Shutdown(5 * time.Second)

	if err := h.Register("agent-a", nopHandler); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	if err := h.Register("agent-a", nopHandler); err == nil {
		t.Error("Register() should fail for duplicate address")
	}
}

func TestHub_Unregister(t *testing.T) {
	h := createTestHub(t)
	defer h.Shutdown(5 * time.Second)

	if err := h.Register("agent-a", nopHandler); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := h.Unregister("agent-a"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}

	metrics := h.Metrics()
	if metrics.Endpoints != 0 {
		t.Errorf("Endpoints = %d, want 0", metrics.Endpoints)
	}
}

func TestHub_Unregister_NotFound(t *testing.T) {
	h := createTestHub(t)
	defer h.Shutdown(5 * time.Second)

	if err := h.Unregister("nonexistent"); err == nil {
		t.Error("Unregister() should fail for unknown address")
	}
}

func TestHub_Deliver(t *testing.T) {
	h := createTestHub(t)
	defer h.Shutdown(5 * time.Second)

	received := make(chan string, 1)
	handler := func(_ context.Context, msg *fabric.Message) (*fabric.Message, error) {
		if data, ok := msg.Data.(string); ok {
			received <- data
		}
		return nil, nil
	}

	if err := h.Register("agent-b", handler); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	msg := fabric.NewNotification("agent-a", "agent-b", "hello").Build()
	if err := h.Deliver(context.Background(), msg); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	select {
	case data := <-received:
		if data != "hello" {
			t.Errorf("received %q, want %q", data, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message was not delivered")
	}
}

func TestHub_Deliver_UnknownDestination(t *testing.T) {
	h := createTestHub(t)
	defer h.Shutdown(5 * time.Second)

	msg := fabric.NewNotification("agent-a", "nonexistent", "hello").Build()
	if err := h.Deliver(context.Background(), msg); err == nil {
		t.Error("Deliver() should fail for unknown destination")
	}
}

func TestHub_HandlerReplyRouting(t *testing.T) {
	h := createTestHub(t)
	defer h.Shutdown(5 * time.Second)

	replies := make(chan *fabric.Message, 1)

	// Responder echoes request data back to the sender with ReplyTo set.
	responder := func(_ context.Context, msg *fabric.Message) (*fabric.Message, error) {
		return fabric.NewResponse("responder", msg.From, msg.ID, msg.Data).Build(), nil
	}
	collector := func(_ context.Context, msg *fabric.Message) (*fabric.Message, error) {
		replies <- msg
		return nil, nil
	}

	if err := h.Register("responder", responder); err != nil {
		t.Fatalf("Register(responder) error = %v", err)
	}
	if err := h.Register("caller", collector); err != nil {
		t.Fatalf("Register(caller) error = %v", err)
	}

	request := fabric.NewRequest("caller", "responder", "ping").Build()
	if err := h.Deliver(context.Background(), request); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	select {
	case reply := <-replies:
		if reply.ReplyTo != request.ID {
			t.Errorf("ReplyTo = %q, want %q", reply.ReplyTo, request.ID)
		}
		if !reply.IsResponse() {
			t.Errorf("Type = %q, want response", reply.Type)
		}
		if reply.Data != "ping" {
			t.Errorf("Data = %v, want ping", reply.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reply was not routed back to caller")
	}
}

func TestHub_ConcurrentDelivery_OutOfOrderCompletion(t *testing.T) {
	h := createTestHub(t)
	defer h.Shutdown(5 * time.Second)

	completed := make(chan string, 2)
	release := make(chan struct{})

	handler := func(_ context.Context, msg *fabric.Message) (*fabric.Message, error) {
		if msg.Data == "slow" {
			<-release
		}
		completed <- msg.Data.(string)
		return nil, nil
	}

	if err := h.Register("worker", handler); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	ctx := context.Background()
	if err := h.Deliver(ctx, fabric.NewRequest("caller", "worker", "slow").Build()); err != nil {
		t.Fatalf("Deliver(slow) error = %v", err)
	}
	if err := h.Deliver(ctx, fabric.NewRequest("caller", "worker", "fast").Build()); err != nil {
		t.Fatalf("Deliver(fast) error = %v", err)
	}

	select {
	case first := <-completed:
		if first != "fast" {
			t.Errorf("first completion = %q, want fast", first)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fast message blocked behind slow one")
	}

	close(release)
	select {
	case second := <-completed:
		if second != "slow" {
			t.Errorf("second completion = %q, want slow", second)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("slow message never completed")
	}
}
