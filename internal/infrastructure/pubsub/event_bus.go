package pubsub

import (
	"context"
	"fmt"
	"sync"

	"oracleboxing-funnel-layer/internal/domain"

	"github.com/rs/zerolog"
)

// EventChannel represents one analytics sink subscription
type EventChannel struct {
	ID     string
	Filter *EventFilter
	Events chan *domain.Event
	ctx    context.Context
	cancel context.CancelFunc
}

// EventFilter filters analytics events by name
type EventFilter struct {
	Names []string
}

// EventBus decouples fire-and-forget event logging from its sinks: the
// tracking service publishes without blocking, sinks consume from buffered
// channels. A full sink drops events rather than stalling a request.
type EventBus struct {
	mu       sync.RWMutex
	channels map[string]*EventChannel
	logger   zerolog.Logger
	nextID   int64
	idMu     sync.Mutex
}

// NewEventBus creates a new analytics event bus
func NewEventBus(logger zerolog.Logger) *EventBus {
	return &EventBus{
		channels: make(map[string]*EventChannel),
		logger:   logger,
	}
}

// Subscribe creates a new sink channel
func (b *EventBus) Subscribe(ctx context.Context, filter *EventFilter) *EventChannel {
	b.idMu.Lock()
	b.nextID++
	id := fmt.Sprintf("sink-%d", b.nextID)
	b.idMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	channel := &EventChannel{
		ID:     id,
		Filter: filter,
		Events: make(chan *domain.Event, 64),
		ctx:    subCtx,
		cancel: cancel,
	}

	b.mu.Lock()
	b.channels[id] = channel
	b.mu.Unlock()

	b.logger.Info().Str("channelId", id).Msg("Analytics sink subscribed")

	go func() {
		<-subCtx.Done()
		b.Unsubscribe(id)
	}()

	return channel
}

// Unsubscribe removes a sink channel
func (b *EventBus) Unsubscribe(channelID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	channel, exists := b.channels[channelID]
	if !exists {
		return
	}

	close(channel.Events)
	channel.cancel()
	delete(b.channels, channelID)

	b.logger.Info().Str("channelId", channelID).Msg("Analytics sink unsubscribed")
}

// Publish broadcasts an event to all matching sinks without blocking
func (b *EventBus) Publish(event *domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, channel := range b.channels {
		if !b.matchesFilter(event, channel.Filter) {
			continue
		}
		select {
		case channel.Events <- event:
		case <-channel.ctx.Done():
			// Sink is shutting down, skip
		default:
			b.logger.Warn().
				Str("channelId", channel.ID).
				Str("event", event.Name).
				Msg("Sink buffer full, dropping event")
		}
	}
}

func (b *EventBus) matchesFilter(event *domain.Event, filter *EventFilter) bool {
	if filter == nil || len(filter.Names) == 0 {
		return true
	}
	for _, name := range filter.Names {
		if event.Name == name {
			return true
		}
	}
	return false
}

// GetStats returns bus statistics
func (b *EventBus) GetStats() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return map[string]interface{}{
		"active_sinks": len(b.channels),
	}
}
