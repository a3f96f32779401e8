package main

import (
	"punchd/eventpipe"
	"punchd/indicator"
	"punchd/link"
	"punchd/mqtt"
	"punchd/reader"
	"punchd/store"
	"punchd/watcher"
)

// Config is the main configuration structure for punchd.
type Config struct {
	// MQTT connection settings
	MQTT mqtt.Config `yaml:"mqtt"`

	// Reader configuration (serial or keyboard mode)
	Reader reader.Config `yaml:"reader"`

	// Device watcher configuration
	Watcher watcher.Config `yaml:"watcher"`

	// Connection/reconnection policy
	Link link.Config `yaml:"link"`

	// Attendance store configuration
	Store store.Config `yaml:"store"`

	// Indicator configuration
	Indicator indicator.Config `yaml:"indicator"`

	// Synthetic event pipe (empty path = disabled)
	EventPipe eventpipe.Config `yaml:"event_pipe"`

	// General settings
	ClientID string `yaml:"client_id"`
}
