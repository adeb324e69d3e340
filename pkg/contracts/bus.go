package contracts

import (
	"context"
	"errors"
)

// ErrBusClosed is returned by bus operations after Close.
var ErrBusClosed = errors.New("bus closed")

// Topics emitted by the core.
const (
	TopicSyncStart    = "sync:start"
	TopicSyncProgress = "sync:progress"
	TopicSyncComplete = "sync:complete"
	TopicSyncError    = "sync:error"
	TopicModeChanged  = "mode:changed"
	TopicCleared      = "cleared"
)

// Topics consumed by the core.
const (
	TopicTxConfirmed        = "transaction:confirmed"
	TopicWalletConnected    = "wallet:connected"
	TopicWalletDisconnected = "wallet:disconnected"
	TopicBackendReloaded    = "backend:reloaded"
)

// MessageHandler processes messages received from a subscribed topic.
// Multiple handlers can be registered for the same topic; each receives the
// message. Handlers should return an error only for critical failures; the
// error is logged but does not stop delivery to other handlers.
type MessageHandler func(topic string, data []byte) error

// HandlerID uniquely identifies a subscription handler. Each Subscribe call
// generates a new HandlerID, allowing multiple independent subscriptions to
// the same topic.
type HandlerID string

// Bus is the in-process publish/subscribe surface for lifecycle signals.
// The composition root wires wallet, transaction, and deployment events into
// it; the core subscribes for invalidation and emits its own sync topics.
type Bus interface {
	// Publish delivers a message to every handler subscribed to the topic.
	Publish(ctx context.Context, topic string, data []byte) error

	// Subscribe registers a handler for messages on a topic and returns a
	// HandlerID that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (HandlerID, error)

	// Unsubscribe removes a specific handler from a topic.
	Unsubscribe(ctx context.Context, topic string, handlerID HandlerID) error

	// Close removes all subscriptions.
	Close() error
}
