package httpapi

import (
	"testing"
	"time"
)

func TestSSEHubPublishSubscribe(t *testing.T) {
	t.Parallel()
	hub := NewSSEHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hub.PublishJSON(map[string]any{"type": "suggestion_update", "suggestion_id": 7})

	select {
	case msg := <-ch:
		if string(msg) == "" {
			t.Fatal("empty SSE payload")
		}
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestSSEHubDropsSlowSubscribers(t *testing.T) {
	t.Parallel()
	hub := NewSSEHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	// Fill the buffer past capacity; publishes must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.PublishJSON(map[string]any{"n": i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}

func TestSSEHubUnsubscribeTwice(t *testing.T) {
	t.Parallel()
	hub := NewSSEHub()
	ch := hub.Subscribe()
	hub.Unsubscribe(ch)
	hub.Unsubscribe(ch) // second call is a no-op
}
