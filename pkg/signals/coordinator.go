package signals

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/mintlaunch/launchindex/pkg/cache"
	"github.com/mintlaunch/launchindex/pkg/contracts"
	"github.com/mintlaunch/launchindex/pkg/logging"
)

// Resettable is the router surface the coordinator needs: a reset back to
// the unprobed state when the backend identity changes.
type Resettable interface {
	Reset()
}

// TxConfirmedPayload is the body of a transaction:confirmed signal.
type TxConfirmedPayload struct {
	ContractAddress string `json:"contractAddress"`
}

// Coordinator subscribes to external lifecycle signals and translates them
// into scoped cache evictions and router resets. It writes only to the
// cache's eviction surface and the router's reset surface.
type Coordinator struct {
	bus    contracts.Bus
	cache  *cache.QueryCache
	router Resettable
	log    *logging.ColoredLogger

	subs map[string]contracts.HandlerID
}

// NewCoordinator creates a coordinator. Call Start to begin consuming
// signals and Stop to detach.
func NewCoordinator(bus contracts.Bus, qc *cache.QueryCache, router Resettable, log *logging.ColoredLogger) *Coordinator {
	return &Coordinator{
		bus:    bus,
		cache:  qc,
		router: router,
		log:    log,
		subs:   make(map[string]contracts.HandlerID),
	}
}

// Start subscribes to every consumed topic.
func (c *Coordinator) Start(ctx context.Context) error {
	for topic, handler := range map[string]contracts.MessageHandler{
		contracts.TopicTxConfirmed:        c.onTxConfirmed,
		contracts.TopicWalletConnected:    c.onWalletChanged,
		contracts.TopicWalletDisconnected: c.onWalletChanged,
		contracts.TopicBackendReloaded:    c.onBackendReloaded,
	} {
		id, err := c.bus.Subscribe(ctx, topic, handler)
		if err != nil {
			return err
		}
		c.subs[topic] = id
	}
	return nil
}

// Stop detaches every subscription.
func (c *Coordinator) Stop(ctx context.Context) {
	for topic, id := range c.subs {
		if err := c.bus.Unsubscribe(ctx, topic, id); err != nil {
			c.log.ComponentWarn(logging.ComponentSignals, "failed to unsubscribe",
				zap.String("topic", topic), zap.Error(err))
		}
		delete(c.subs, topic)
	}
}

// onTxConfirmed evicts the confirmed contract's card and the home-scoped
// aggregates that embed it. Unrelated entities stay cached.
func (c *Coordinator) onTxConfirmed(topic string, data []byte) error {
	var p TxConfirmedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.log.ComponentWarn(logging.ComponentSignals, "malformed transaction:confirmed payload",
			zap.Error(err))
		return nil
	}
	if p.ContractAddress == "" {
		return nil
	}
	c.cache.InvalidateEntity(p.ContractAddress)
	return nil
}

// onWalletChanged evicts user-scoped entries on wallet connect/disconnect.
func (c *Coordinator) onWalletChanged(topic string, data []byte) error {
	c.cache.InvalidateUserScoped()
	return nil
}

// onBackendReloaded flushes the cache, resets the router to force a
// re-probe, and announces the flush.
func (c *Coordinator) onBackendReloaded(topic string, data []byte) error {
	c.cache.Clear()
	if c.router != nil {
		c.router.Reset()
	}
	if err := c.bus.Publish(context.Background(), contracts.TopicCleared, []byte(`{}`)); err != nil {
		c.log.ComponentWarn(logging.ComponentSignals, "failed to publish cleared signal",
			zap.Error(err))
	}
	return nil
}
