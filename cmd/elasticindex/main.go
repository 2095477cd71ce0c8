package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/greymass/elasticindex/internal/config"
	"github.com/greymass/elasticindex/internal/elastic"
	"github.com/greymass/elasticindex/internal/filter"
	"github.com/greymass/elasticindex/internal/ingest"
	"github.com/greymass/elasticindex/internal/logger"
	"github.com/greymass/elasticindex/internal/metrics"
	"github.com/greymass/elasticindex/internal/stream"
)

var Version = "dev"

// All categories for column alignment.
var logCategories = []string{
	"startup", "sync", "stream", "elastic", "abi",
	"error", "warning", "enforce", "debug",
}

func main() {
	config.CheckVersion(Version)

	var cfg Config
	if err := config.Load(&cfg, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger.RegisterCategories(logCategories...)
	if cfg.Debug {
		logger.SetMinLevel(logger.LevelDebug)
	} else {
		logger.SetCategoryFilter(cfg.LogFilter)
	}
	if cfg.LogFile != "" {
		if err := logger.SetLogFile(cfg.LogFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot open log file: %v\n", err)
			os.Exit(1)
		}
	}
	defer logger.Close()

	logger.Printf("startup", "elasticindex %s", Version)

	onEntries, onStar, err := filter.ParseEntries(cfg.FilterOn)
	if err != nil {
		logger.Fatal("invalid filter-on: %v", err)
	}
	outEntries, outStar, err := filter.ParseEntries(cfg.FilterOut)
	if err != nil {
		logger.Fatal("invalid filter-out: %v", err)
	}
	if outStar {
		logger.Fatal("filter-out '*' would reject every action")
	}
	f := filter.New(onStar, onEntries, outEntries)
	logger.Printf("startup", "action filter: %s", f.Summary())

	client, err := elastic.NewClient(cfg.ElasticURLs, cfg.IndexName)
	if err != nil {
		logger.Fatal("cannot create elasticsearch client: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var failed atomic.Bool
	quit := func() {
		// Non-recoverable backend error: stop taking events and let an
		// orchestrator restart us once the issue is fixed.
		failed.Store(true)
		cancel()
	}

	in := ingest.New(client, f, ingest.Options{
		MaxQueueSize:         cfg.MaxQueueSize,
		AbiCacheSize:         cfg.AbiCacheSize,
		AbiSerializerMaxTime: cfg.AbiSerializerMaxTime,
		StartBlockNum:        cfg.StartBlockNum,
		DeleteIndexOnStartup: cfg.DeleteIndexOnStartup,
		ChainID:              cfg.ChainID,

		StoreBlocks:            cfg.StoreBlocks,
		StoreBlockStates:       cfg.StoreBlockStates,
		StoreTransactions:      cfg.StoreTransactions,
		StoreTransactionTraces: cfg.StoreTransactionTraces,
		StoreActionTraces:      cfg.StoreActionTraces,
	}, quit)

	if err := in.Start(); err != nil {
		logger.Fatal("failed to initialize ingestion: %v", err)
	}

	var metricsSrv *http.Server
	if cfg.MetricsListen != "" && cfg.MetricsListen != "none" {
		metricsSrv = metrics.Serve(cfg.MetricsListen)
		logger.Printf("startup", "metrics on %s", cfg.MetricsListen)
	}

	source := stream.NewClient(cfg.RelayURL, in)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return source.Run(gctx)
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sigChan:
		logger.Printf("startup", "received %v, shutting down", s)
		cancel()
	case <-gctx.Done():
	}

	// Source first so nothing new is enqueued, then drain the consumer.
	g.Wait()
	in.Stop()

	if metricsSrv != nil {
		metricsSrv.Shutdown(context.Background())
	}

	if failed.Load() {
		logger.Error("exited after backend failure")
		logger.Close()
		os.Exit(1)
	}
}
