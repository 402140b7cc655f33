package serve

import (
	"testing"
	"time"
)

func TestBus_NeverExceedsQueueLimit(t *testing.T) {
	b := NewBus(time.Millisecond)
	for i := 0; i < 50; i++ {
		b.Publish(NewPingMessage("p"))
	}
	b.mu.Lock()
	n := len(b.messages)
	b.mu.Unlock()
	if n > busQueueLimit {
		t.Fatalf("queue length = %d, want <= %d", n, busQueueLimit)
	}
}

func TestBus_LateSubscriberMissesPastMessages(t *testing.T) {
	b := NewBus(time.Millisecond)
	b.Publish(NewPingMessage("p"))
	time.Sleep(10 * time.Millisecond)

	_, ch := b.Subscribe()
	select {
	case m := <-ch:
		t.Fatalf("late subscriber should not receive pre-existing message, got %+v", m)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_SubscriberReceivesHeadAfterSettleDelay(t *testing.T) {
	b := NewBus(5 * time.Millisecond)
	_, ch := b.Subscribe()

	b.Publish(NewCompileWarningMessage("p", "w1"))

	select {
	case m := <-ch:
		if m.WarningMessage != "w1" {
			t.Fatalf("got %+v, want warning w1", m)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestBus_RapidPublishesCoalesceToLatest(t *testing.T) {
	b := NewBus(20 * time.Millisecond)
	_, ch := b.Subscribe()

	b.Publish(NewCompileWarningMessage("p", "w1"))
	b.Publish(NewCompileWarningMessage("p", "w2"))
	b.Publish(NewCompileWarningMessage("p", "w3"))

	select {
	case m := <-ch:
		if m.WarningMessage != "w3" {
			t.Fatalf("got %+v, want coalesced latest w3", m)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for delivery")
	}

	select {
	case m := <-ch:
		t.Fatalf("expected no second delivery, got %+v", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus(time.Millisecond)
	id, ch := b.Subscribe()
	b.Unsubscribe(id)

	b.Publish(NewPingMessage("p"))

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel after unsubscribe")
		}
	case <-time.After(50 * time.Millisecond):
		t.Fatal("channel neither closed nor readable after unsubscribe")
	}
}

func TestBus_SlowSubscriberEventuallyGetsLatest(t *testing.T) {
	b := NewBus(time.Millisecond)
	_, ch := b.Subscribe()

	b.Publish(NewCompileWarningMessage("p", "first"))
	time.Sleep(10 * time.Millisecond)
	b.Publish(NewCompileWarningMessage("p", "second"))
	time.Sleep(10 * time.Millisecond)

	m := <-ch
	if m.WarningMessage != "second" {
		t.Fatalf("got %+v, want the most recent message", m)
	}
}
