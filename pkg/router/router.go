// Package router dispatches UI-facing queries either to the batched
// aggregator gateway or, when the aggregator is missing or broken, to a
// per-entity fallback decomposition. It owns the availability state machine
// and degrades to typed-empty results while the backend is pre-launch.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mintlaunch/launchindex/pkg/cache"
	"github.com/mintlaunch/launchindex/pkg/config"
	"github.com/mintlaunch/launchindex/pkg/contracts"
	lierrors "github.com/mintlaunch/launchindex/pkg/errors"
	"github.com/mintlaunch/launchindex/pkg/logging"
)

// State is the router's availability state. It settles once per process
// lifetime unless an explicit reload signal resets it.
type State int32

const (
	StateUninitialized State = iota
	StateProbing
	StateAggregatorAvailable
	StateFallbackMode
	StatePrelaunch
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateProbing:
		return "probing"
	case StateAggregatorAvailable:
		return "aggregator_available"
	case StateFallbackMode:
		return "fallback_mode"
	case StatePrelaunch:
		return "prelaunch"
	default:
		return "unknown"
	}
}

// Router routes queries by availability state. It is the sole writer of the
// state; queries go through the shared query cache so concurrent identical
// calls coalesce into one fetch.
type Router struct {
	gateway  contracts.AggregatorGateway
	registry contracts.InstanceRegistry
	adapters map[contracts.ContractKind]contracts.ContractAdapter
	detector contracts.LaunchDetector
	cache    *cache.QueryCache
	bus      contracts.Bus
	log      *logging.ColoredLogger

	aggregatorAddr string
	probeTimeout   time.Duration

	mu    sync.Mutex
	state State
}

// New creates a router. gateway, detector, and bus may be nil; a nil gateway
// forces fallback mode at probe time.
func New(gateway contracts.AggregatorGateway, registry contracts.InstanceRegistry,
	adapters []contracts.ContractAdapter, detector contracts.LaunchDetector,
	qc *cache.QueryCache, bus contracts.Bus, cfg config.AggregatorConfig,
	log *logging.ColoredLogger) *Router {

	byKind := make(map[contracts.ContractKind]contracts.ContractAdapter, len(adapters))
	for _, a := range adapters {
		byKind[a.Kind()] = a
	}

	return &Router{
		gateway:        gateway,
		registry:       registry,
		adapters:       byKind,
		detector:       detector,
		cache:          qc,
		bus:            bus,
		log:            log,
		aggregatorAddr: cfg.Address,
		probeTimeout:   cfg.ProbeTimeout,
		state:          StateUninitialized,
	}
}

// State returns the current router state without triggering a probe.
func (r *Router) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// PreLaunch reports whether the router has settled on the pre-launch state.
// Non-blocking; implements the sync engine's PrelaunchChecker.
func (r *Router) PreLaunch() bool {
	return r.State() == StatePrelaunch
}

// Reset returns the router to UNINITIALIZED, forcing a re-probe on next use.
// Wired to the backend:reloaded signal.
func (r *Router) Reset() {
	r.mu.Lock()
	prev := r.state
	r.state = StateUninitialized
	r.mu.Unlock()
	r.log.ComponentInfo(logging.ComponentRouter, "router reset",
		zap.String("previous_state", prev.String()))
}

// ensure settles the state machine on first use and returns the settled
// state. Concurrent first callers serialize on the probe; later calls are a
// cheap read.
func (r *Router) ensure(ctx context.Context) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateUninitialized {
		return r.state
	}
	r.state = StateProbing

	probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	// Pre-launch takes precedence over every other outcome.
	if r.detector != nil {
		launched, err := r.detector.Launched(probeCtx)
		if err == nil && !launched {
			r.setStateLocked(StatePrelaunch)
			return r.state
		}
	}

	if r.gateway == nil || isMissingAddress(r.aggregatorAddr) {
		r.setStateLocked(StateFallbackMode)
		return r.state
	}

	if err := r.gateway.Ping(probeCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = lierrors.NewTimeoutError("aggregator probe")
		}
		r.log.ComponentWarn(logging.ComponentRouter, "aggregator probe failed, using fallback",
			zap.Error(err))
		r.setStateLocked(StateFallbackMode)
		return r.state
	}

	r.setStateLocked(StateAggregatorAvailable)
	return r.state
}

// degrade drops from AGGREGATOR_AVAILABLE to FALLBACK_MODE after a runtime
// gateway failure. The failure itself is absorbed; callers retry on the
// fallback path.
func (r *Router) degrade(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateAggregatorAvailable {
		return
	}
	r.log.ComponentWarn(logging.ComponentRouter, "aggregator call failed, degrading to fallback",
		zap.Error(err))
	r.setStateLocked(StateFallbackMode)
}

// setStateLocked transitions the state and emits mode:changed. Caller holds
// the mutex.
func (r *Router) setStateLocked(next State) {
	r.state = next
	r.log.ComponentInfo(logging.ComponentRouter, "router state settled",
		zap.String("state", next.String()))
	if r.bus == nil {
		return
	}
	data, err := json.Marshal(map[string]string{"state": next.String()})
	if err != nil {
		return
	}
	if err := r.bus.Publish(context.Background(), contracts.TopicModeChanged, data); err != nil {
		r.log.ComponentWarn(logging.ComponentRouter, "failed to publish mode change", zap.Error(err))
	}
}

// HomePage answers the home page aggregate for one window.
func (r *Router) HomePage(ctx context.Context, offset, limit int) (contracts.HomePageData, error) {
	if r.ensure(ctx) == StatePrelaunch {
		return emptyHomePage(), nil
	}

	return cache.Cached(ctx, r.cache, cache.KeyHome(offset, limit), cache.ClassHome,
		func(ctx context.Context) (contracts.HomePageData, error) {
			if r.State() == StateAggregatorAvailable {
				data, err := r.gateway.HomePageData(ctx, offset, limit)
				if err == nil {
					return data, nil
				}
				r.degrade(err)
			}
			return r.homePageFallback(ctx, offset, limit)
		})
}

// VaultLeaderboard answers the top vaults ordered by sortBy.
func (r *Router) VaultLeaderboard(ctx context.Context, sortBy string, limit int) ([]contracts.VaultSummary, error) {
	if r.ensure(ctx) == StatePrelaunch {
		return []contracts.VaultSummary{}, nil
	}

	return cache.Cached(ctx, r.cache, cache.KeyLeaderboard(sortBy, limit), cache.ClassLeaderboard,
		func(ctx context.Context) ([]contracts.VaultSummary, error) {
			if r.State() == StateAggregatorAvailable {
				rows, err := r.gateway.VaultLeaderboard(ctx, sortBy, limit)
				if err == nil {
					return rows, nil
				}
				r.degrade(err)
			}
			return r.leaderboardFallback(ctx, sortBy, limit)
		})
}

// Portfolio answers one user's positions across the given instances.
func (r *Router) Portfolio(ctx context.Context, userAddress string, instances []string) (contracts.PortfolioData, error) {
	if r.ensure(ctx) == StatePrelaunch {
		return emptyPortfolio(), nil
	}

	return cache.Cached(ctx, r.cache, cache.KeyPortfolio(userAddress, instances), cache.ClassPortfolio,
		func(ctx context.Context) (contracts.PortfolioData, error) {
			if r.State() == StateAggregatorAvailable {
				data, err := r.gateway.PortfolioData(ctx, userAddress, instances)
				if err == nil {
					return data, nil
				}
				r.degrade(err)
			}
			return r.portfolioFallback(ctx, userAddress, instances)
		})
}

// ProjectCards returns one card per requested address, results[i] matching
// addresses[i] regardless of which were cache hits and in what order fetches
// completed. A failed per-entity fetch yields a placeholder card, never a
// failed batch.
func (r *Router) ProjectCards(ctx context.Context, addresses []string) ([]contracts.ProjectCard, error) {
	if r.ensure(ctx) == StatePrelaunch {
		return []contracts.ProjectCard{}, nil
	}

	results := make([]contracts.ProjectCard, len(addresses))
	var missIdx []int
	for i, addr := range addresses {
		if v, ok := r.cache.Get(cache.KeyCard(addr)); ok {
			results[i] = v.(contracts.ProjectCard)
			continue
		}
		missIdx = append(missIdx, i)
	}
	if len(missIdx) == 0 {
		return results, nil
	}

	if r.State() == StateAggregatorAvailable {
		missAddrs := make([]string, len(missIdx))
		for j, i := range missIdx {
			missAddrs[j] = addresses[i]
		}
		cards, err := r.gateway.ProjectCardsBatch(ctx, missAddrs)
		if err == nil && len(cards) == len(missAddrs) {
			for j, i := range missIdx {
				results[i] = cards[j]
				r.cache.Set(cache.KeyCard(addresses[i]), cache.ClassCard, cards[j])
			}
			return results, nil
		}
		if err != nil {
			r.degrade(err)
		}
	}

	// Per-entity fallback: one concurrent fetch per miss, each isolated so a
	// single failure substitutes a placeholder instead of failing the batch.
	var wg sync.WaitGroup
	for _, i := range missIdx {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr := addresses[i]
			card, err := r.cardFallback(ctx, addr)
			if err != nil {
				r.log.ComponentDebug(logging.ComponentRouter, "entity fetch failed, substituting placeholder",
					zap.String("address", addr), zap.Error(err))
				results[i] = placeholderCard(addr)
				return
			}
			results[i] = card
			r.cache.Set(cache.KeyCard(addr), cache.ClassCard, card)
		}(i)
	}
	wg.Wait()

	return results, nil
}

// isMissingAddress treats empty and all-zero hex addresses as "no aggregator
// configured".
func isMissingAddress(addr string) bool {
	addr = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(addr)), "0x")
	if addr == "" {
		return true
	}
	return strings.Trim(addr, "0") == ""
}

func emptyHomePage() contracts.HomePageData {
	return contracts.HomePageData{
		Projects:       []contracts.ProjectCard{},
		TopVaults:      []contracts.VaultSummary{},
		RecentActivity: []contracts.ActivityItem{},
	}
}

func emptyPortfolio() contracts.PortfolioData {
	return contracts.PortfolioData{
		ERC404Holdings:  []contracts.Holding{},
		ERC1155Holdings: []contracts.Holding{},
		VaultPositions:  []contracts.VaultPosition{},
		TotalClaimable:  "0",
	}
}

func placeholderCard(address string) contracts.ProjectCard {
	return contracts.ProjectCard{
		Instance:    strings.ToLower(address),
		Name:        "Unknown",
		Unavailable: true,
	}
}
