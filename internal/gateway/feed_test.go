package gateway

import (
	"testing"
)

func TestFeed_PublishSubscribe(t *testing.T) {
	t.Parallel()

	f := NewFeed(2)
	events, cancel := f.Subscribe("c1")
	other, cancelOther := f.Subscribe("c2")
	defer cancelOther()

	if n := f.Publish(FeedEvent{Conversation: "c1", Kind: FeedUser, Text: "hi"}); n != 1 {
		t.Fatalf("Publish delivered to %d, want 1", n)
	}
	ev := <-events
	if ev.Text != "hi" || ev.Time.IsZero() {
		t.Errorf("event = %+v", ev)
	}
	select {
	case ev := <-other:
		t.Fatalf("other conversation received %+v", ev)
	default:
	}

	if f.Conversations() != 2 {
		t.Errorf("Conversations = %d, want 2", f.Conversations())
	}
	cancel()
	cancel()
	if _, ok := <-events; ok {
		t.Error("expected channel closed after cancel")
	}
	if f.Subscribers("c1") != 0 {
		t.Errorf("Subscribers(c1) = %d, want 0", f.Subscribers("c1"))
	}
}

func TestFeed_SlowSubscriberDropsEvents(t *testing.T) {
	t.Parallel()

	f := NewFeed(1)
	_, cancel := f.Subscribe("c")
	defer cancel()

	if n := f.Publish(FeedEvent{Conversation: "c", Text: "1"}); n != 1 {
		t.Fatalf("first publish delivered %d", n)
	}
	if n := f.Publish(FeedEvent{Conversation: "c", Text: "2"}); n != 0 {
		t.Fatalf("second publish delivered %d, want 0 on a full buffer", n)
	}
}

func TestFeed_Close(t *testing.T) {
	t.Parallel()

	f := NewFeed(1)
	events, cancel := f.Subscribe("c")
	f.Close()
	if _, ok := <-events; ok {
		t.Error("expected channel closed by Close")
	}
	cancel()

	late, _ := f.Subscribe("c")
	if _, ok := <-late; ok {
		t.Error("expected closed channel after Close")
	}
}
