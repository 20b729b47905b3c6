// ARM SMMU v3 translation core
// https://github.com/usbarmory/smmu
//
// Copyright (c) John Greninger
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"github.com/BurntSushi/toml"
)

// config is the smmu-debug tool's on-disk configuration. It carries
// nothing the translation core itself needs; the core stays
// net/http-free and config-file-free, per the separation described in
// this command's package doc (main.go).
type config struct {
	// ListenAddress is the address the debug HTTP server (expvar +
	// debugcharts) binds to.
	ListenAddress string `toml:"listen_address"`

	// CacheSize is the capacity handed to tlb.New when the tool stands
	// up its own demonstration cache.
	CacheSize int `toml:"cache_size"`

	// LogLevel is parsed with logrus.ParseLevel; an empty or invalid
	// value falls back to logrus.InfoLevel.
	LogLevel string `toml:"log_level"`
}

func defaultConfig() config {
	return config{
		ListenAddress: "127.0.0.1:6060",
		CacheSize:     1024,
		LogLevel:      "info",
	}
}

// loadConfig reads a TOML file at path, overlaying it onto
// defaultConfig. A missing path is not an error; the caller passes "".
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	if path == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return config{}, err
	}

	return cfg, nil
}
