package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-commerce/kite/internal/domain"
)

func TestChannelBusPublishSubscribe(t *testing.T) {
	b := NewChannelBus(100)
	defer b.Close()
	ctx := context.Background()

	var mu sync.Mutex
	var got *domain.Message
	var wg sync.WaitGroup
	wg.Add(1)

	_, err := b.Subscribe(ctx, domain.TopicRunCompleted, func(ctx context.Context, msg *domain.Message) error {
		mu.Lock()
		got = msg
		mu.Unlock()
		wg.Done()
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	// Allow subscription to be active
	time.Sleep(10 * time.Millisecond)

	if err := b.Publish(ctx, domain.TopicRunCompleted, []byte(`{"runId":"r1"}`)); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}

	mu.Lock()
	defer mu.Unlock()
	if string(got.Payload) != `{"runId":"r1"}` {
		t.Errorf("unexpected payload: %s", got.Payload)
	}
	if got.Topic != domain.TopicRunCompleted {
		t.Errorf("unexpected topic: %s", got.Topic)
	}
	if got.ID == "" || got.Timestamp == 0 {
		t.Error("message id and timestamp must be set")
	}
}

func TestChannelBusTopicIsolation(t *testing.T) {
	b := NewChannelBus(100)
	defer b.Close()
	ctx := context.Background()

	var count atomic.Int32
	b.Subscribe(ctx, domain.TopicRunStarted, func(ctx context.Context, msg *domain.Message) error {
		count.Add(1)
		return nil
	})

	time.Sleep(10 * time.Millisecond)

	b.Publish(ctx, domain.TopicApprovalQueue, []byte("other"))
	time.Sleep(50 * time.Millisecond)

	if count.Load() != 0 {
		t.Errorf("subscriber received message from a different topic")
	}
}

func TestChannelBusMultipleSubscribers(t *testing.T) {
	b := NewChannelBus(100)
	defer b.Close()
	ctx := context.Background()

	var count atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	for i := 0; i < 3; i++ {
		b.Subscribe(ctx, domain.TopicRepriceApplied, func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			wg.Done()
			return nil
		})
	}

	time.Sleep(10 * time.Millisecond)
	b.Publish(ctx, domain.TopicRepriceApplied, []byte("x"))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if count.Load() != 3 {
			t.Errorf("expected 3 deliveries, got %d", count.Load())
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout: delivered %d/3", count.Load())
	}
}

func TestChannelBusUnsubscribe(t *testing.T) {
	b := NewChannelBus(100)
	defer b.Close()
	ctx := context.Background()

	var count atomic.Int32
	sub, err := b.Subscribe(ctx, domain.TopicRunStarted, func(ctx context.Context, msg *domain.Message) error {
		count.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if sub.Topic() != domain.TopicRunStarted {
		t.Errorf("unexpected topic: %s", sub.Topic())
	}

	sub.Unsubscribe()
	time.Sleep(10 * time.Millisecond)

	b.Publish(ctx, domain.TopicRunStarted, []byte("after"))
	time.Sleep(50 * time.Millisecond)

	if count.Load() != 0 {
		t.Error("unsubscribed handler still received a message")
	}
}

func TestChannelBusClose(t *testing.T) {
	b := NewChannelBus(10)
	ctx := context.Background()

	if err := b.Ping(ctx); err != nil {
		t.Errorf("Ping before close failed: %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := b.Ping(ctx); err == nil {
		t.Error("expected Ping to fail on closed bus")
	}
	if err := b.Publish(ctx, domain.TopicRunStarted, []byte("x")); err == nil {
		t.Error("expected Publish to fail on closed bus")
	}
	if _, err := b.Subscribe(ctx, domain.TopicRunStarted, nil); err == nil {
		t.Error("expected Subscribe to fail on closed bus")
	}

	// Second close is a no-op.
	if err := b.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestFactoryUnsupportedType(t *testing.T) {
	if _, err := New(domain.EventBusConfig{Type: "kafka"}); err == nil {
		t.Error("expected error for unsupported bus type")
	}
}

func TestFactoryChannel(t *testing.T) {
	b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 10})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer b.Close()

	if err := b.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
