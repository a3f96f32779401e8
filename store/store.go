// Package store provides attend.Store implementations.
package store

import (
	"fmt"
	"log"

	"punchd/attend"
)

// Config selects and configures the backing store.
type Config struct {
	Driver string `yaml:"driver"` // "postgres", "memory"
	DSN    string `yaml:"dsn"`
}

// New creates a store based on the provided configuration. An empty
// driver with no DSN falls back to the in-memory store, which keeps the
// daemon usable for eventpipe-driven runs without a database.
func New(cfg Config) (attend.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(cfg.DSN)
	case "memory":
		return NewMemory(), nil
	case "":
		if cfg.DSN != "" {
			return NewPostgres(cfg.DSN)
		}
		log.Println("store: no dsn configured, using in-memory store")
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
