package pubsub

import (
	"context"
	"testing"
	"time"

	"oracleboxing-funnel-layer/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveEvent(t *testing.T, ch *EventChannel) *domain.Event {
	t.Helper()
	select {
	case e := <-ch.Events:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestPublishReachesAllSinks(t *testing.T) {
	bus := NewEventBus(zerolog.Nop())
	ctx := context.Background()

	a := bus.Subscribe(ctx, nil)
	b := bus.Subscribe(ctx, nil)

	bus.Publish(&domain.Event{Name: "PageView"})

	assert.Equal(t, "PageView", receiveEvent(t, a).Name)
	assert.Equal(t, "PageView", receiveEvent(t, b).Name)
}

func TestFilterByName(t *testing.T) {
	bus := NewEventBus(zerolog.Nop())
	ctx := context.Background()

	purchases := bus.Subscribe(ctx, &EventFilter{Names: []string{"Purchase"}})
	all := bus.Subscribe(ctx, nil)

	bus.Publish(&domain.Event{Name: "PageView"})
	bus.Publish(&domain.Event{Name: "Purchase"})

	assert.Equal(t, "Purchase", receiveEvent(t, purchases).Name)
	assert.Equal(t, "PageView", receiveEvent(t, all).Name)
	assert.Equal(t, "Purchase", receiveEvent(t, all).Name)
	assert.Empty(t, purchases.Events)
}

func TestPublishNeverBlocksOnFullSink(t *testing.T) {
	bus := NewEventBus(zerolog.Nop())
	ch := bus.Subscribe(context.Background(), nil)

	// Overfill the buffer; the extra events must be dropped, not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(ch.Events)+10; i++ {
			bus.Publish(&domain.Event{Name: "PageView"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full sink")
	}
	assert.Len(t, ch.Events, cap(ch.Events))
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus(zerolog.Nop())
	ch := bus.Subscribe(context.Background(), nil)

	bus.Unsubscribe(ch.ID)

	_, open := <-ch.Events
	assert.False(t, open)
	assert.Equal(t, 0, bus.GetStats()["active_sinks"])

	// Publishing after unsubscribe is a no-op.
	bus.Publish(&domain.Event{Name: "PageView"})
}

func TestContextCancelUnsubscribes(t *testing.T) {
	bus := NewEventBus(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	bus.Subscribe(ctx, nil)

	cancel()

	require.Eventually(t, func() bool {
		return bus.GetStats()["active_sinks"] == 0
	}, time.Second, 10*time.Millisecond)
}
