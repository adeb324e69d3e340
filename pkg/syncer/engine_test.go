package syncer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintlaunch/launchindex/pkg/config"
	"github.com/mintlaunch/launchindex/pkg/contracts"
	lierrors "github.com/mintlaunch/launchindex/pkg/errors"
	"github.com/mintlaunch/launchindex/pkg/index"
	"github.com/mintlaunch/launchindex/pkg/logging"
)

type fakeLedger struct {
	mu        sync.Mutex
	height    uint64
	events    []contracts.RegistrationEvent
	heightErr error
	queryErr  error
	queries   [][2]uint64
	blockOn   chan struct{} // when set, QueryRegistrations waits on it
}

func (f *fakeLedger) CurrentHeight(ctx context.Context) (uint64, error) {
	if f.heightErr != nil {
		return 0, f.heightErr
	}
	return f.height, nil
}

func (f *fakeLedger) QueryRegistrations(ctx context.Context, fromBlock, toBlock uint64) ([]contracts.RegistrationEvent, error) {
	if f.blockOn != nil {
		<-f.blockOn
	}
	f.mu.Lock()
	f.queries = append(f.queries, [2]uint64{fromBlock, toBlock})
	f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var out []contracts.RegistrationEvent
	for _, ev := range f.events {
		if ev.BlockNumber >= fromBlock && ev.BlockNumber <= toBlock {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeLedger) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type fakeBus struct {
	mu     sync.Mutex
	topics []string
}

func (f *fakeBus) Publish(ctx context.Context, topic string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, topic string, handler contracts.MessageHandler) (contracts.HandlerID, error) {
	return "", nil
}

func (f *fakeBus) Unsubscribe(ctx context.Context, topic string, handlerID contracts.HandlerID) error {
	return nil
}

func (f *fakeBus) Close() error { return nil }

func (f *fakeBus) count(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.topics {
		if t == topic {
			n++
		}
	}
	return n
}

type fixedPrelaunch bool

func (p fixedPrelaunch) PreLaunch() bool { return bool(p) }

func regEvent(addr string, block uint64) contracts.RegistrationEvent {
	return contracts.RegistrationEvent{
		Instance:        common.HexToAddress(addr),
		Factory:         common.HexToAddress("0xF1"),
		Creator:         common.HexToAddress("0xC1"),
		Name:            fmt.Sprintf("project-%d", block),
		BlockNumber:     block,
		TransactionHash: common.HexToHash(fmt.Sprintf("0x%x", block)),
	}
}

func newTestEngine(t *testing.T, ledger contracts.LedgerSource, bus contracts.Bus, prelaunch PrelaunchChecker) (*Engine, *index.Store) {
	t.Helper()
	log, err := logging.NewColoredLogger(logging.ComponentSync, false)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	store := index.NewStore(filepath.Join(t.TempDir(), "sync.db"), log)
	if !store.IsSupported() {
		t.Fatal("expected supported store")
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewEngine(store, ledger, bus, prelaunch, log), store
}

func TestFullThenIncrementalSync(t *testing.T) {
	ledger := &fakeLedger{
		height: 30,
		events: []contracts.RegistrationEvent{
			regEvent("0x1", 10), regEvent("0x2", 20), regEvent("0x3", 30),
		},
	}
	bus := &fakeBus{}
	engine, store := newTestEngine(t, ledger, bus, nil)
	ctx := context.Background()

	res, err := engine.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	want := Result{Added: 3, Updated: 0, FromBlock: 0, ToBlock: 30}
	if res != want {
		t.Errorf("first sync = %+v, want %+v", res, want)
	}

	// Second pass over an unchanged chain touches no entities but still
	// reports the (empty) window it covered.
	res, err = engine.Sync(ctx)
	if err != nil {
		t.Fatalf("second Sync failed: %v", err)
	}
	want = Result{Added: 0, Updated: 0, FromBlock: 30, ToBlock: 30}
	if res != want {
		t.Errorf("second sync = %+v, want %+v", res, want)
	}
	if ledger.queryCount() != 1 {
		t.Errorf("expected exactly one event query, got %d", ledger.queryCount())
	}

	cp, _ := store.Checkpoint(ctx)
	if cp.LastIndexedBlock != 30 {
		t.Errorf("expected checkpoint 30, got %d", cp.LastIndexedBlock)
	}
	if bus.count(contracts.TopicSyncComplete) != 2 {
		t.Errorf("expected 2 sync:complete signals, got %d", bus.count(contracts.TopicSyncComplete))
	}
}

func TestIncrementalWindow(t *testing.T) {
	ledger := &fakeLedger{
		height: 30,
		events: []contracts.RegistrationEvent{regEvent("0x1", 10)},
	}
	engine, _ := newTestEngine(t, ledger, nil, nil)
	ctx := context.Background()

	if _, err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// New events land; the next pass scans only above the checkpoint.
	ledger.height = 50
	ledger.events = append(ledger.events, regEvent("0x2", 40))

	res, err := engine.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if res.Added != 1 || res.FromBlock != 30 || res.ToBlock != 50 {
		t.Errorf("unexpected incremental result: %+v", res)
	}
	if got := ledger.queries[1]; got != [2]uint64{31, 50} {
		t.Errorf("expected incremental query window [31,50], got %v", got)
	}
}

func TestSyncIdempotent(t *testing.T) {
	ledger := &fakeLedger{
		height: 30,
		events: []contracts.RegistrationEvent{
			regEvent("0x1", 10), regEvent("0x2", 20),
		},
	}
	engine, store := newTestEngine(t, ledger, nil, nil)
	ctx := context.Background()

	if _, err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	countOnce, _ := store.ProjectCount(ctx)
	cpOnce, _ := store.Checkpoint(ctx)

	if _, err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	countTwice, _ := store.ProjectCount(ctx)
	cpTwice, _ := store.Checkpoint(ctx)

	if countOnce != countTwice || cpOnce.LastIndexedBlock != cpTwice.LastIndexedBlock {
		t.Errorf("sync not idempotent: count %d vs %d, checkpoint %d vs %d",
			countOnce, countTwice, cpOnce.LastIndexedBlock, cpTwice.LastIndexedBlock)
	}
}

func TestConcurrentSyncSkips(t *testing.T) {
	release := make(chan struct{})
	ledger := &fakeLedger{
		height:  30,
		events:  []contracts.RegistrationEvent{regEvent("0x1", 10)},
		blockOn: release,
	}
	engine, _ := newTestEngine(t, ledger, nil, nil)
	ctx := context.Background()

	done := make(chan Result, 1)
	go func() {
		res, _ := engine.Sync(ctx)
		done <- res
	}()

	// Wait for the first sync to take the flag.
	for i := 0; i < 100 && !engine.Syncing(); i++ {
		time.Sleep(5 * time.Millisecond)
	}
	if !engine.Syncing() {
		t.Fatal("first sync never started")
	}

	res, err := engine.Sync(ctx)
	if err != nil {
		t.Fatalf("concurrent Sync errored: %v", err)
	}
	if !res.Skipped {
		t.Error("expected concurrent sync to be skipped")
	}

	close(release)
	first := <-done
	if first.Skipped || first.Added != 1 {
		t.Errorf("first sync should have completed normally: %+v", first)
	}
}

func TestSyncSkipConditions(t *testing.T) {
	t.Run("index mode off", func(t *testing.T) {
		ledger := &fakeLedger{height: 30}
		engine, store := newTestEngine(t, ledger, nil, nil)
		ctx := context.Background()
		if err := store.SetIndexMode(ctx, config.IndexModeOff); err != nil {
			t.Fatalf("SetIndexMode failed: %v", err)
		}

		res, err := engine.Sync(ctx)
		if err != nil {
			t.Fatalf("Sync errored: %v", err)
		}
		if !res.Skipped {
			t.Error("expected skipped result with index mode off")
		}
		if ledger.queryCount() != 0 {
			t.Error("expected no ledger calls with index mode off")
		}
	})

	t.Run("pre-launch", func(t *testing.T) {
		ledger := &fakeLedger{height: 30}
		engine, _ := newTestEngine(t, ledger, nil, fixedPrelaunch(true))

		res, err := engine.Sync(context.Background())
		if err != nil {
			t.Fatalf("Sync errored: %v", err)
		}
		if !res.Skipped {
			t.Error("expected skipped result during pre-launch")
		}
		if ledger.queryCount() != 0 {
			t.Error("expected no ledger calls during pre-launch")
		}
	})
}

func TestSyncNetworkFailureLeavesCheckpoint(t *testing.T) {
	ledger := &fakeLedger{
		height: 30,
		events: []contracts.RegistrationEvent{regEvent("0x1", 10)},
	}
	bus := &fakeBus{}
	engine, store := newTestEngine(t, ledger, bus, nil)
	ctx := context.Background()

	if _, err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	ledger.height = 60
	ledger.queryErr = errors.New("rpc: connection refused")

	_, err := engine.Sync(ctx)
	if err == nil {
		t.Fatal("expected sync failure")
	}
	if !lierrors.IsSyncFailure(err) {
		t.Errorf("expected SyncError, got %T: %v", err, err)
	}
	if bus.count(contracts.TopicSyncError) != 1 {
		t.Errorf("expected 1 sync:error signal, got %d", bus.count(contracts.TopicSyncError))
	}

	cp, _ := store.Checkpoint(ctx)
	if cp.LastIndexedBlock != 30 {
		t.Errorf("failed sync must leave checkpoint at 30, got %d", cp.LastIndexedBlock)
	}

	// A retry after the outage behaves as if the failed call never started.
	ledger.queryErr = nil
	ledger.events = append(ledger.events, regEvent("0x2", 45))
	res, err := engine.Sync(ctx)
	if err != nil {
		t.Fatalf("retry Sync failed: %v", err)
	}
	if res.Added != 1 || res.FromBlock != 30 || res.ToBlock != 60 {
		t.Errorf("unexpected retry result: %+v", res)
	}
}

func TestSyncProgressCadence(t *testing.T) {
	var events []contracts.RegistrationEvent
	for i := 0; i < 250; i++ {
		events = append(events, regEvent(fmt.Sprintf("0x%04x", i+1), uint64(i+1)))
	}
	ledger := &fakeLedger{height: 250, events: events}
	bus := &fakeBus{}
	engine, _ := newTestEngine(t, ledger, bus, nil)

	res, err := engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if res.Added != 250 {
		t.Fatalf("expected 250 added, got %d", res.Added)
	}
	// 250 rows at a 100-row cadence emits progress at 100 and 200.
	if got := bus.count(contracts.TopicSyncProgress); got != 2 {
		t.Errorf("expected 2 sync:progress signals, got %d", got)
	}
}

func TestHydrate(t *testing.T) {
	ledger := &fakeLedger{
		height: 10,
		events: []contracts.RegistrationEvent{regEvent("0xAB", 10)},
	}
	engine, store := newTestEngine(t, ledger, nil, nil)
	ctx := context.Background()

	if _, err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	addr := common.HexToAddress("0xAB").Hex()
	card := contracts.ProjectCard{
		Name:         "Hydrated Name",
		Vault:        "0xVA",
		ContractType: "erc404",
		RegisteredAt: 1700000000,
	}
	if err := engine.Hydrate(ctx, addr, card); err != nil {
		t.Fatalf("Hydrate failed: %v", err)
	}

	e, err := store.GetProject(ctx, addr)
	if err != nil || e == nil {
		t.Fatalf("GetProject failed: %v, %v", e, err)
	}
	if !e.Hydrated || e.Name != "Hydrated Name" || e.ContractType != "erc404" || e.RegisteredAt != 1700000000 {
		t.Errorf("hydration incomplete: %+v", e)
	}
}
