package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mintlaunch/launchindex/pkg/aggregator"
	"github.com/mintlaunch/launchindex/pkg/cache"
	"github.com/mintlaunch/launchindex/pkg/config"
	"github.com/mintlaunch/launchindex/pkg/contracts"
	"github.com/mintlaunch/launchindex/pkg/gateway"
	"github.com/mintlaunch/launchindex/pkg/index"
	"github.com/mintlaunch/launchindex/pkg/ledger"
	"github.com/mintlaunch/launchindex/pkg/logging"
	"github.com/mintlaunch/launchindex/pkg/router"
	"github.com/mintlaunch/launchindex/pkg/signals"
	"github.com/mintlaunch/launchindex/pkg/syncer"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file (defaults used when empty)")
	dbPath := flag.String("db", "", "Index database path (overrides config)")
	listenAddr := flag.String("listen", "", "Gateway listen address (overrides config)")
	flag.Parse()

	logger, err := logging.NewColoredLogger(logging.ComponentGeneral, true)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
		if err != nil {
			logger.Error("Failed to load config", zap.Error(err))
			os.Exit(1)
		}
	}
	if *dbPath != "" {
		cfg.Index.Path = *dbPath
	}
	if *listenAddr != "" {
		cfg.Gateway.ListenAddress = *listenAddr
	}

	// Every service is constructed here and handed down explicitly; nothing
	// holds package-level state.
	bus := signals.NewBus(logger)
	defer bus.Close()

	store := index.NewStore(cfg.Index.Path, logger)
	defer store.Close()
	if store.IsSupported() {
		if err := store.SetIndexMode(context.Background(), cfg.Index.Mode); err != nil {
			logger.ComponentWarn(logging.ComponentIndex, "failed to persist index mode", zap.Error(err))
		}
	}

	qc := cache.New(cfg.Cache, logger)
	defer qc.Close()

	var gw contracts.AggregatorGateway
	var detector contracts.LaunchDetector
	if cfg.Aggregator.URL != "" {
		client := aggregator.NewClient(cfg.Aggregator.URL)
		gw = client
		detector = client
	}

	// Registry and adapter bindings are deployment-specific; without them
	// the fallback path serves empty results and the aggregator path is
	// unaffected.
	var registry contracts.InstanceRegistry
	var adapters []contracts.ContractAdapter

	qrouter := router.New(gw, registry, adapters, detector, qc, bus, cfg.Aggregator, logger)

	var source contracts.LedgerSource
	if cfg.Ledger.RPCEndpoint != "" {
		source, err = ledger.Dial(context.Background(), cfg.Ledger.RPCEndpoint,
			common.HexToAddress(cfg.Ledger.RegistryAddress), logger)
		if err != nil {
			logger.Error("Failed to connect to ledger", zap.Error(err))
			os.Exit(1)
		}
	}

	engine := syncer.NewEngine(store, source, bus, qrouter, logger)

	coordinator := signals.NewCoordinator(bus, qc, qrouter, logger)
	if err := coordinator.Start(context.Background()); err != nil {
		logger.Error("Failed to start invalidation coordinator", zap.Error(err))
		os.Exit(1)
	}
	defer coordinator.Stop(context.Background())

	gate := gateway.New(qrouter, store, engine, cfg.Gateway, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- gate.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Gateway failed", zap.Error(err))
			os.Exit(1)
		}
	case sig := <-sigCh:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gate.Shutdown(shutdownCtx); err != nil {
		logger.Error("Gateway shutdown failed", zap.Error(err))
	}
}
