// Command blobemu runs a local, wire-compatible Azure Blob Storage
// emulator: one process, one listener, one storage engine (spec §1, §9).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/blobemu/blobemu/auth"
	"github.com/blobemu/blobemu/cmn"
	"github.com/blobemu/blobemu/handlers"
	"github.com/blobemu/blobemu/server"
	"github.com/blobemu/blobemu/stats"
	"github.com/blobemu/blobemu/storage/extent"
	"github.com/blobemu/blobemu/storage/metadata"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := cmn.DefaultConfig()
	flag.StringVar(&cfg.Net.Host, "host", cfg.Net.Host, "address to bind the blob endpoint to")
	flag.IntVar(&cfg.Net.BlobPort, "blob-port", cfg.Net.BlobPort, "port to serve the Blob Storage REST API on")
	flag.BoolVar(&cfg.Net.SkipAPIVersionCheck, "skip-api-version-check", cfg.Net.SkipAPIVersionCheck, "accept requests missing x-ms-version")
	flag.BoolVar(&cfg.Storage.InMemory, "in-memory", cfg.Storage.InMemory, "keep all blob data in memory instead of on disk")
	flag.StringVar(&cfg.Storage.LocationDir, "location-dir", cfg.Storage.LocationDir, "directory to persist extents to when -in-memory=false")
	flag.BoolVar(&cfg.Storage.Loose, "loose", cfg.Storage.Loose, "loose mode; stored in the config, no code path reads it")
	flag.IntVar(&cfg.Storage.ExtentShards, "extent-shards", cfg.Storage.ExtentShards, "number of shards the in-memory extent store locks independently")
	flag.BoolVar(&cfg.Storage.CompressExtents, "compress-extents", cfg.Storage.CompressExtents, "lz4-compress extents at rest")
	flag.Int64Var(&cfg.Storage.MaxRequestBody, "max-request-body", cfg.Storage.MaxRequestBody, "largest request body accepted, in bytes")
	flag.DurationVar(&cfg.Storage.GCInterval, "gc-interval", cfg.Storage.GCInterval, "interval between extent GC sweeps (0 disables)")
	flag.StringVar(&cfg.Accounts.KeysFile, "keys-file", cfg.Accounts.KeysFile, "JSON file of account -> base64 shared key, merged over the devstore default")
	metricsAddr := flag.String("metrics-addr", "", "address to serve Prometheus /metrics on (empty disables)")
	flag.Parse()

	if err := cfg.LoadAccountKeys(); err != nil {
		glog.Errorf("%v", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		glog.Errorf("invalid configuration: %v", err)
		return 1
	}
	cmn.GCO.Put(cfg)
	glog.Infof("blobemu starting: %s", cfg.String())

	extents, closeExtents, err := buildExtentStore(cfg)
	if err != nil {
		glog.Errorf("%v", err)
		return 1
	}
	defer closeExtents()

	store := metadata.NewStore()
	gc := metadata.NewGC(store, extents, cfg.Storage.GCInterval)

	account := cmn.DefaultDevstoreAccount
	for acct := range cfg.Accounts.Keys {
		account = acct
		break
	}
	h := &handlers.Handlers{Store: store, Extents: extents, GC: gc, Account: account}
	table := buildDispatchTable(h)

	keys := auth.KeyLookup(func(acct string) (string, bool) { return cfg.AccountKey(acct) })
	addr := fmt.Sprintf("%s:%d", cfg.Net.Host, cfg.Net.BlobPort)
	st := stats.New()
	srv := server.New(addr, table, keys, account, st)

	metricsSrv, err := buildMetricsServer(*metricsAddr, extents, st)
	if err != nil {
		glog.Errorf("%v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx) })
	g.Go(func() error { return gc.Run(gctx) })
	if metricsSrv != nil {
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			if err := metricsSrv.ListenAndServe(); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	glog.Infof("blobemu listening on %s", addr)
	if err := g.Wait(); err != nil && gctx.Err() == nil {
		glog.Errorf("blobemu exiting: %v", err)
		glog.Flush()
		return 1
	}
	glog.Flush()
	return 0
}

func buildExtentStore(cfg *cmn.Config) (extent.Store, func(), error) {
	if cfg.Storage.InMemory {
		s := extent.NewMemStore(cfg.Storage.ExtentShards, 0, cfg.Storage.CompressExtents)
		return s, func() {}, nil
	}
	s, err := extent.NewFSStore(cfg.Storage.LocationDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening location directory %q: %w", cfg.Storage.LocationDir, err)
	}
	return s, func() {}, nil
}
