package bus

import (
	"testing"

	"github.com/justin4957/logflow-anomaly-detector/pkg/models"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := New(4)
	sub1 := b.Subscribe()
	sub2 := b.Subscribe()

	d := models.Detection{ID: "d1"}
	b.Publish(d)

	got1 := <-sub1.C
	got2 := <-sub2.C
	if got1.ID != "d1" || got2.ID != "d1" {
		t.Errorf("both subscribers should receive the published detection, got %+v / %+v", got1, got2)
	}
}

func TestSubscriberCountReflectsSubscribeAndUnsubscribe(t *testing.T) {
	b := New(4)
	if b.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount = %d, want 0", b.SubscriberCount())
	}
	sub := b.Subscribe()
	if b.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", b.SubscriberCount())
	}
	b.Unsubscribe(sub.ID)
	if b.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount = %d, want 0 after unsubscribe", b.SubscriberCount())
	}
}

func TestPublishNeverBlocksOnAFullQueue(t *testing.T) {
	b := New(2)
	sub := b.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(models.Detection{ID: "flood"})
		}
		close(done)
	}()

	select {
	case <-done:
	default:
	}
	<-done // Publish must return promptly even though nothing drains sub.C.

	if b.DropCount(sub.ID) == 0 {
		t.Error("expected drops to be recorded once the bounded queue filled up")
	}
}

func TestOfferPreservesQueueDepthUnderOverflow(t *testing.T) {
	b := New(2)
	sub := b.Subscribe()

	for i := 0; i < 10; i++ {
		b.Publish(models.Detection{ID: "x"})
	}

	if len(sub.C) != 2 {
		t.Errorf("queue length = %d, want 2 (bounded depth)", len(sub.C))
	}
}

func TestUnsubscribeUnknownIDIsANoop(t *testing.T) {
	b := New(4)
	b.Unsubscribe("does-not-exist")
	if b.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d, want 0", b.SubscriberCount())
	}
}

func TestDropCountForUnknownSubscriberIsZero(t *testing.T) {
	b := New(4)
	if b.DropCount("does-not-exist") != 0 {
		t.Error("expected 0 drops for an unknown subscriber id")
	}
}
