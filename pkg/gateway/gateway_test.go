package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mintlaunch/launchindex/pkg/cache"
	"github.com/mintlaunch/launchindex/pkg/config"
	"github.com/mintlaunch/launchindex/pkg/contracts"
	"github.com/mintlaunch/launchindex/pkg/index"
	"github.com/mintlaunch/launchindex/pkg/logging"
	"github.com/mintlaunch/launchindex/pkg/router"
	"github.com/mintlaunch/launchindex/pkg/syncer"
)

type stubRegistry struct{}

func (stubRegistry) GetInstance(ctx context.Context, address string) (contracts.InstanceInfo, error) {
	return contracts.InstanceInfo{Instance: address, Name: "Stub", Kind: contracts.KindERC404}, nil
}

func (stubRegistry) GetAllInstances(ctx context.Context) ([]contracts.InstanceInfo, error) {
	return []contracts.InstanceInfo{}, nil
}

func (stubRegistry) GetFactoryInfo(ctx context.Context, factory string) (contracts.FactoryInfo, error) {
	return contracts.FactoryInfo{Factory: factory}, nil
}

func (stubRegistry) GetVaultInfo(ctx context.Context, vault string) (contracts.VaultInfo, error) {
	return contracts.VaultInfo{Vault: vault}, nil
}

func newTestGateway(t *testing.T) (*httptest.Server, *index.Store) {
	t.Helper()
	log, err := logging.NewColoredLogger(logging.ComponentGateway, false)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	store := index.NewStore(filepath.Join(t.TempDir(), "gw.db"), log)
	t.Cleanup(func() { _ = store.Close() })

	qc := cache.New(config.CacheConfig{
		HomeTTL:        time.Minute,
		CardTTL:        time.Minute,
		PortfolioTTL:   time.Minute,
		LeaderboardTTL: time.Minute,
	}, log)
	t.Cleanup(qc.Close)

	// No aggregator configured: the router settles in fallback mode over the
	// stub registry.
	qrouter := router.New(nil, stubRegistry{}, nil, nil, qc, nil,
		config.AggregatorConfig{ProbeTimeout: time.Second}, log)

	engine := syncer.NewEngine(store, nil, nil, qrouter, log)

	g := New(qrouter, store, engine, config.GatewayConfig{ListenAddress: "127.0.0.1:0"}, log)
	srv := httptest.NewServer(g.Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func seedProjects(t *testing.T, store *index.Store) {
	t.Helper()
	entities := []index.IndexedEntity{
		{Address: "0xaaa1", Name: "Moon Token", Factory: "0xf1", Creator: "0xc1", BlockNumber: 10, TransactionHash: "0xt1"},
		{Address: "0xaaa2", Name: "Star Vault", Factory: "0xf2", Creator: "0xc2", BlockNumber: 20, TransactionHash: "0xt2"},
	}
	if _, _, err := store.ApplySyncBatch(context.Background(), entities, 20, 0, nil); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response from %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv, _ := newTestGateway(t)
	var body map[string]string
	if code := getJSON(t, srv.URL+"/health", &body); code != http.StatusOK {
		t.Fatalf("health returned %d", code)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestSearchEndpoint(t *testing.T) {
	srv, store := newTestGateway(t)
	seedProjects(t, store)

	var body struct {
		Addresses []string `json:"addresses"`
	}
	if code := getJSON(t, srv.URL+"/v1/search?q=moon", &body); code != http.StatusOK {
		t.Fatalf("search returned %d", code)
	}
	if len(body.Addresses) != 1 || body.Addresses[0] != "0xaaa1" {
		t.Errorf("unexpected search result: %v", body.Addresses)
	}

	if code := getJSON(t, srv.URL+"/v1/search?factory=0xf2", &body); code != http.StatusOK {
		t.Fatalf("filter search returned %d", code)
	}
	if len(body.Addresses) != 1 || body.Addresses[0] != "0xaaa2" {
		t.Errorf("unexpected filter result: %v", body.Addresses)
	}

	if code := getJSON(t, srv.URL+"/v1/search", nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 without q or filter, got %d", code)
	}
}

func TestProjectEndpoints(t *testing.T) {
	srv, store := newTestGateway(t)
	seedProjects(t, store)

	var list []index.IndexedEntity
	if code := getJSON(t, srv.URL+"/v1/projects", &list); code != http.StatusOK {
		t.Fatalf("projects returned %d", code)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 projects, got %d", len(list))
	}

	var one index.IndexedEntity
	if code := getJSON(t, srv.URL+"/v1/projects/0xAAA1", &one); code != http.StatusOK {
		t.Fatalf("project lookup returned %d", code)
	}
	if one.Name != "Moon Token" {
		t.Errorf("unexpected project: %+v", one)
	}

	if code := getJSON(t, srv.URL+"/v1/projects/0xmissing", nil); code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown project, got %d", code)
	}
}

func TestHomeServesFallback(t *testing.T) {
	srv, _ := newTestGateway(t)

	var home contracts.HomePageData
	if code := getJSON(t, srv.URL+"/v1/home", &home); code != http.StatusOK {
		t.Fatalf("home returned %d", code)
	}
	if home.Projects == nil || home.TopVaults == nil {
		t.Errorf("expected typed-empty collections, got %+v", home)
	}
}

func TestCardsRequiresAddresses(t *testing.T) {
	srv, _ := newTestGateway(t)

	resp, err := http.Post(srv.URL+"/v1/cards", "application/json", strings.NewReader(`{"addresses":[]}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for an empty address list, got %d", resp.StatusCode)
	}
}

func TestSyncWithoutLedgerIsSkipped(t *testing.T) {
	srv, _ := newTestGateway(t)

	resp, err := http.Post(srv.URL+"/v1/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync returned %d", resp.StatusCode)
	}
	var res syncer.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode sync result: %v", err)
	}
	if !res.Skipped {
		t.Error("expected a skipped result with no ledger configured")
	}
}

func TestStatus(t *testing.T) {
	srv, store := newTestGateway(t)
	seedProjects(t, store)

	var status map[string]interface{}
	if code := getJSON(t, srv.URL+"/v1/status", &status); code != http.StatusOK {
		t.Fatalf("status returned %d", code)
	}
	if status["project_count"].(float64) != 2 {
		t.Errorf("unexpected project count: %v", status["project_count"])
	}
	if status["last_indexed_block"].(float64) != 20 {
		t.Errorf("unexpected checkpoint: %v", status["last_indexed_block"])
	}
	if status["storage_supported"] != true {
		t.Errorf("unexpected storage flag: %v", status["storage_supported"])
	}
}
