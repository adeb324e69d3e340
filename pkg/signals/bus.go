// Package signals carries the core's lifecycle signals over an in-process
// publish/subscribe bus, and wires external signals (transaction confirmed,
// wallet changed, backend reloaded) into cache invalidation and router
// resets.
package signals

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mintlaunch/launchindex/pkg/contracts"
	"github.com/mintlaunch/launchindex/pkg/logging"
)

// Bus is a synchronous in-process pub/sub bus. Handlers for a topic run in
// subscription order on the publisher's goroutine; a handler error is logged
// and does not stop delivery to later handlers.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]map[contracts.HandlerID]contracts.MessageHandler
	order  map[string][]contracts.HandlerID
	closed bool
	log    *logging.ColoredLogger
}

// NewBus creates an empty bus.
func NewBus(log *logging.ColoredLogger) *Bus {
	return &Bus{
		topics: make(map[string]map[contracts.HandlerID]contracts.MessageHandler),
		order:  make(map[string][]contracts.HandlerID),
		log:    log,
	}
}

// Subscribe registers a handler for a topic. Multiple handlers can subscribe
// to the same topic with independent lifecycles.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler contracts.MessageHandler) (contracts.HandlerID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", contracts.ErrBusClosed
	}

	id := contracts.HandlerID(uuid.NewString())
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[contracts.HandlerID]contracts.MessageHandler)
	}
	b.topics[topic][id] = handler
	b.order[topic] = append(b.order[topic], id)
	return id, nil
}

// Unsubscribe removes a specific handler from a topic.
func (b *Bus) Unsubscribe(ctx context.Context, topic string, handlerID contracts.HandlerID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers, ok := b.topics[topic]
	if !ok {
		return nil
	}
	delete(handlers, handlerID)

	ids := b.order[topic]
	for i, id := range ids {
		if id == handlerID {
			b.order[topic] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(handlers) == 0 {
		delete(b.topics, topic)
		delete(b.order, topic)
	}
	return nil
}

// Publish delivers a message to every handler subscribed to the topic.
func (b *Bus) Publish(ctx context.Context, topic string, data []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return contracts.ErrBusClosed
	}
	handlers := make([]contracts.MessageHandler, 0, len(b.order[topic]))
	for _, id := range b.order[topic] {
		if h, ok := b.topics[topic][id]; ok {
			handlers = append(handlers, h)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(topic, data); err != nil {
			b.log.ComponentWarn(logging.ComponentSignals, "signal handler failed",
				zap.String("topic", topic), zap.Error(err))
		}
	}
	return nil
}

// Close removes all subscriptions. Publish and Subscribe fail afterwards.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.topics = make(map[string]map[contracts.HandlerID]contracts.MessageHandler)
	b.order = make(map[string][]contracts.HandlerID)
	return nil
}
