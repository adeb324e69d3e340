// Package syncer pulls registration events off the ledger and folds them
// into the persistent index. One engine instance runs at most one sync pass
// at a time; a concurrent call short-circuits with a skipped result instead
// of queuing.
package syncer

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mintlaunch/launchindex/pkg/config"
	"github.com/mintlaunch/launchindex/pkg/contracts"
	lierrors "github.com/mintlaunch/launchindex/pkg/errors"
	"github.com/mintlaunch/launchindex/pkg/index"
	"github.com/mintlaunch/launchindex/pkg/logging"
)

// progressEvery is the row cadence at which sync:progress is emitted.
const progressEvery = 100

// Result describes one sync call. Skipped is set when the call did nothing:
// index off, storage unavailable, pre-launch, or another sync in progress.
type Result struct {
	Added     int    `json:"added"`
	Updated   int    `json:"updated"`
	FromBlock uint64 `json:"from_block"`
	ToBlock   uint64 `json:"to_block"`
	Skipped   bool   `json:"skipped"`
}

// PrelaunchChecker reports, without blocking, whether the backend is known
// to be pre-launch. The fallback router implements this off its settled
// state.
type PrelaunchChecker interface {
	PreLaunch() bool
}

// Engine drives full and incremental syncs from a LedgerSource into the
// index store.
type Engine struct {
	store     *index.Store
	ledger    contracts.LedgerSource
	bus       contracts.Bus
	prelaunch PrelaunchChecker
	log       *logging.ColoredLogger

	syncing atomic.Bool
}

// NewEngine creates a sync engine. bus and prelaunch may be nil.
func NewEngine(store *index.Store, ledger contracts.LedgerSource, bus contracts.Bus, prelaunch PrelaunchChecker, log *logging.ColoredLogger) *Engine {
	return &Engine{
		store:     store,
		ledger:    ledger,
		bus:       bus,
		prelaunch: prelaunch,
		log:       log,
	}
}

// Syncing reports whether a sync pass is currently running.
func (e *Engine) Syncing() bool {
	return e.syncing.Load()
}

// Sync runs one sync pass. The first pass (checkpoint at zero) scans from
// genesis to the current height; later passes scan only the window above the
// checkpoint. The entity upserts and the checkpoint advance for a pass
// commit as one transaction, so a mid-pass failure leaves both untouched.
//
// Recoverable conditions (index off, storage unavailable, pre-launch,
// concurrent sync) return a skipped result, never an error. Only ledger
// failures during an active pass propagate.
func (e *Engine) Sync(ctx context.Context) (Result, error) {
	if !e.store.IsSupported() || e.ledger == nil {
		return Result{Skipped: true}, nil
	}

	cp, err := e.store.Checkpoint(ctx)
	if err != nil {
		return Result{}, err
	}
	if cp.Mode == string(config.IndexModeOff) {
		return Result{Skipped: true}, nil
	}
	if e.prelaunch != nil && e.prelaunch.PreLaunch() {
		return Result{Skipped: true}, nil
	}

	if !e.syncing.CompareAndSwap(false, true) {
		e.log.ComponentDebug(logging.ComponentSync, "sync already in progress, skipping")
		return Result{Skipped: true}, nil
	}
	defer e.syncing.Store(false)

	from := cp.LastIndexedBlock
	e.publish(ctx, contracts.TopicSyncStart, Result{FromBlock: from})

	height, err := e.ledger.CurrentHeight(ctx)
	if err != nil {
		syncErr := lierrors.NewSyncError(from, 0, err)
		e.publishError(ctx, syncErr)
		return Result{}, syncErr
	}

	var events []contracts.RegistrationEvent
	switch {
	case from == 0:
		// Full sync: everything from genesis.
		e.log.ComponentInfo(logging.ComponentSync, "starting full sync",
			zap.Uint64("to_block", height))
		events, err = e.ledger.QueryRegistrations(ctx, 0, height)
	case height > from:
		events, err = e.ledger.QueryRegistrations(ctx, from+1, height)
	default:
		// Nothing new; the checkpoint advance below is a no-op.
	}
	if err != nil {
		syncErr := lierrors.NewSyncError(from, height, err)
		e.publishError(ctx, syncErr)
		return Result{}, syncErr
	}

	entities := make([]index.IndexedEntity, 0, len(events))
	for _, ev := range events {
		entities = append(entities, entityFromEvent(ev))
	}

	added, updated, err := e.store.ApplySyncBatch(ctx, entities, height, progressEvery,
		func(done, total int) {
			e.publish(ctx, contracts.TopicSyncProgress, progressPayload{Added: done, Total: total})
		})
	if err != nil {
		syncErr := lierrors.NewSyncError(from, height, err)
		e.publishError(ctx, syncErr)
		return Result{}, syncErr
	}

	res := Result{Added: added, Updated: updated, FromBlock: from, ToBlock: height}
	e.log.ComponentInfo(logging.ComponentSync, "sync complete",
		zap.Int("added", added), zap.Int("updated", updated),
		zap.Uint64("from_block", from), zap.Uint64("to_block", height))
	e.publish(ctx, contracts.TopicSyncComplete, res)
	return res, nil
}

// Hydrate merges aggregator card data into an already-indexed row and marks
// it hydrated. Unknown addresses are a no-op, matching the store contract.
func (e *Engine) Hydrate(ctx context.Context, address string, card contracts.ProjectCard) error {
	hydrated := true
	p := index.Partial{Hydrated: &hydrated}
	if card.Name != "" {
		p.Name = &card.Name
	}
	if card.Vault != "" {
		p.Vault = &card.Vault
	}
	if card.ContractType != "" {
		p.ContractType = &card.ContractType
	}
	if card.RegisteredAt != 0 {
		p.RegisteredAt = &card.RegisteredAt
	}
	return e.store.UpdateProject(ctx, address, p)
}

type progressPayload struct {
	Added int `json:"added"`
	Total int `json:"total"`
}

type errorPayload struct {
	Error string `json:"error"`
}

func (e *Engine) publish(ctx context.Context, topic string, payload interface{}) {
	if e.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		e.log.ComponentWarn(logging.ComponentSync, "failed to marshal signal payload",
			zap.String("topic", topic), zap.Error(err))
		return
	}
	if err := e.bus.Publish(ctx, topic, data); err != nil {
		e.log.ComponentWarn(logging.ComponentSync, "failed to publish signal",
			zap.String("topic", topic), zap.Error(err))
	}
}

func (e *Engine) publishError(ctx context.Context, err error) {
	e.log.ComponentError(logging.ComponentSync, "sync failed", zap.Error(err))
	e.publish(ctx, contracts.TopicSyncError, errorPayload{Error: err.Error()})
}

func entityFromEvent(ev contracts.RegistrationEvent) index.IndexedEntity {
	return index.IndexedEntity{
		Address:         index.NormalizeAddress(ev.Instance.Hex()),
		Name:            ev.Name,
		Factory:         index.NormalizeAddress(ev.Factory.Hex()),
		Creator:         index.NormalizeAddress(ev.Creator.Hex()),
		BlockNumber:     ev.BlockNumber,
		TransactionHash: ev.TransactionHash.Hex(),
		Indexed:         true,
	}
}
