package main

import (
	"net/http"
	"time"

	"github.com/blobemu/blobemu/storage/extent"
	"github.com/blobemu/blobemu/stats"
)

// buildMetricsServer starts the optional Prometheus /metrics endpoint (spec
// §9's domain-stack wiring), serving the same registry the server records
// per-request counters into so request accounting and extent/disk gauges
// show up on one scrape. Returns nil when addr is empty so the caller can
// skip supervising it entirely.
func buildMetricsServer(addr string, extents extent.Store, s *stats.Stats) (*http.Server, error) {
	if addr == "" {
		return nil, nil
	}
	if _, ok := extents.(*extent.FSStore); ok {
		disk := s.NewDiskCollector()
		stop := make(chan struct{})
		go disk.Run(stop, 15*time.Second)
	}
	go pollExtentSize(s, extents)

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Handler())
	return &http.Server{Addr: addr, Handler: mux}, nil
}

func pollExtentSize(s *stats.Stats, extents extent.Store) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()
	for range t.C {
		s.SetExtentBytes(int64(extents.TotalSize()))
	}
}
