package realtime

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

func TestWants_EmptySubscriptionReceivesEverything(t *testing.T) {
	c := &client{}
	for _, event := range []string{EventRiskUpdated, EventDashboardUpdated, EventMonitorState} {
		if !c.wants(event) {
			t.Errorf("empty subscription should receive %s", event)
		}
	}
}

func TestWants_EventFilter(t *testing.T) {
	c := &client{sub: subscription{Events: []string{EventRiskUpdated}}}

	if !c.wants(EventRiskUpdated) {
		t.Error("should receive subscribed event")
	}
	if c.wants(EventDashboardUpdated) {
		t.Error("should NOT receive unsubscribed event")
	}
}

func TestHub_Stats_Initial(t *testing.T) {
	h := testHub()

	stats := h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("expected 0 connected clients, got %v", stats["connectedClients"])
	}
	if stats["totalEvents"].(int64) != 0 {
		t.Errorf("expected 0 total events, got %v", stats["totalEvents"])
	}
}

func TestHub_NotifyAndStats(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	h.Notify(EventRiskUpdated, map[string]any{"score": 12.0})
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["totalEvents"].(int64) != 1 {
		t.Errorf("expected 1 total event, got %v", stats["totalEvents"])
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	c := &client{hub: h, send: make(chan []byte, 64)}

	h.register <- c
	time.Sleep(50 * time.Millisecond)

	if n := h.Stats()["connectedClients"].(int); n != 1 {
		t.Errorf("expected 1 connected client, got %d", n)
	}

	h.unregister <- c
	time.Sleep(50 * time.Millisecond)

	if n := h.Stats()["connectedClients"].(int); n != 0 {
		t.Errorf("expected 0 connected clients after unregister, got %d", n)
	}
}

func TestHub_NotifyReachesClient(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	c := &client{hub: h, send: make(chan []byte, 64)}
	h.register <- c
	time.Sleep(50 * time.Millisecond)

	h.Notify(EventRiskUpdated, map[string]any{"score": 45.0, "level": "MEDIUM"})

	select {
	case msg := <-c.send:
		if len(msg) == 0 {
			t.Error("expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for event")
	}
}

func TestHub_FilteredNotify(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Client only wants monitor state changes.
	c := &client{
		hub:  h,
		send: make(chan []byte, 64),
		sub:  subscription{Events: []string{EventMonitorState}},
	}
	h.register <- c
	time.Sleep(50 * time.Millisecond)

	h.Notify(EventRiskUpdated, nil)
	time.Sleep(100 * time.Millisecond)

	select {
	case <-c.send:
		t.Error("client should NOT receive risk events")
	default:
	}

	h.Notify(EventMonitorState, map[string]any{"running": true})

	select {
	case msg := <-c.send:
		if len(msg) == 0 {
			t.Error("expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("client should receive monitor state event")
	}
}

func TestHub_ContextCancellation(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("hub did not stop after context cancellation")
	}
}
