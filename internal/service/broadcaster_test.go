package service

import (
	"testing"

	"go.uber.org/zap"
)

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())

	s1 := b.Subscribe()
	s2 := b.Subscribe()
	defer b.Unsubscribe(s1)
	defer b.Unsubscribe(s2)

	b.Broadcast("article:created", map[string]any{"article_id": uint(1)})

	for i, sub := range []*Subscriber{s1, s2} {
		select {
		case event := <-sub.C:
			if event.Name != "article:created" {
				t.Errorf("subscriber %d got %q", i, event.Name)
			}
		default:
			t.Errorf("subscriber %d received nothing", i)
		}
	}
}

func TestStalledSubscriberIsDroppedOthersUnaffected(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())

	stalled := b.Subscribe()
	healthy := b.Subscribe()
	defer b.Unsubscribe(healthy)

	// Fill the stalled subscriber's buffer without draining.
	for i := 0; i < subscriberBuffer; i++ {
		b.Broadcast("article:updated", nil)
	}
	// Drain healthy so it stays live.
	for len(healthy.C) > 0 {
		<-healthy.C
	}

	b.Broadcast("article:updated", map[string]any{"article_id": uint(7)})

	if b.Count() != 1 {
		t.Errorf("subscriber count = %d, want 1 after drop", b.Count())
	}
	select {
	case event := <-healthy.C:
		if event.Data["article_id"] != uint(7) {
			t.Errorf("healthy subscriber got wrong event: %+v", event)
		}
	default:
		t.Error("healthy subscriber missed the event")
	}

	// Dropped subscriber's channel is closed.
	for range stalled.C {
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	if b.Count() != 0 {
		t.Errorf("count = %d, want 0", b.Count())
	}
}

func TestEventJSON(t *testing.T) {
	event := Event{Name: "article:created", Data: map[string]any{"article_id": 1}}
	msg := string(event.JSON())
	if msg != `{"event":"article:created","data":{"article_id":1}}` {
		t.Errorf("json = %s", msg)
	}
}
