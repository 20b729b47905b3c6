// ARM SMMU v3 translation core
// https://github.com/usbarmory/smmu
//
// Copyright (c) John Greninger
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Command smmu-debug is a peripheral inspection tool for a running
// AddressSpace/TLBCache pair. It never imports net/http into the core
// packages; this binary is the only place in the module that does.
package main

import (
	"expvar"
	"flag"
	"net/http"

	// Registers /debug/charts on http.DefaultServeMux.
	_ "github.com/mkevac/debugcharts"

	"github.com/sirupsen/logrus"

	"github.com/usbarmory/smmu/addrspace"
	"github.com/usbarmory/smmu/tlb"
)

var (
	cacheHits    = expvar.NewInt("smmu_tlb_hits")
	cacheMisses  = expvar.NewInt("smmu_tlb_misses")
	cacheSize    = expvar.NewInt("smmu_tlb_size")
	mappedPages  = expvar.NewInt("smmu_addrspace_pages")
	addressSpace = expvar.NewInt("smmu_addrspace_bytes")
)

func publishStatistics(as *addrspace.AddressSpace, cache *tlb.Cache) {
	stats := cache.GetAtomicStatistics()

	cacheHits.Set(int64(stats.Hits))
	cacheMisses.Set(int64(stats.Misses))
	cacheSize.Set(int64(stats.Size))
	mappedPages.Set(int64(as.GetPageCount().ValueOr(0)))
	addressSpace.Set(int64(as.GetAddressSpaceSize()))
}

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("smmu-debug: failed to load config")
	}

	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}

	cache, err := tlb.New(cfg.CacheSize)
	if err != nil {
		log.WithError(err).Fatal("smmu-debug: failed to build cache")
	}
	cache.SetLogger(log)

	as := addrspace.New()

	http.HandleFunc("/debug/smmu/stats", func(w http.ResponseWriter, r *http.Request) {
		publishStatistics(as, cache)
		expvar.Handler().ServeHTTP(w, r)
	})

	log.WithFields(logrus.Fields{
		"listen_address": cfg.ListenAddress,
		"cache_size":     cfg.CacheSize,
	}).Info("smmu-debug: serving /debug/charts and /debug/smmu/stats")

	if err := http.ListenAndServe(cfg.ListenAddress, nil); err != nil {
		log.WithError(err).Fatal("smmu-debug: server exited")
	}
}
