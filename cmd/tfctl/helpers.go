package main

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"

	"github.com/abelbrown/tailfeed/internal/config"
	"github.com/abelbrown/tailfeed/internal/store"
)

// dataDir returns ~/.tailfeed/, creating it if needed.
func dataDir() (string, error) {
	dir := config.DataDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dir, nil
}

// openDB opens the store named by --db, or the default one.
func openDB() (*store.Store, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	return store.Open(cmp.Or(global.DB, filepath.Join(dir, "tailfeed.db")))
}

// loadConfig reads the config named by --config, or the default one.
func loadConfig() (*config.Config, error) {
	return config.LoadFrom(cmp.Or(global.Config, config.ConfigPath()))
}

// eventLogPath returns the path to events.jsonl.
func eventLogPath() string {
	return filepath.Join(config.DataDir(), "events.jsonl")
}
