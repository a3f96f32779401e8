// Package link owns the reader connection lifecycle: explicit
// connect/disconnect requests and automatic reconnection driven by
// hot-plug events.
package link

import (
	"fmt"
	"log"
	"time"

	"punchd/watcher"
)

// State is the connection state. The coordinator is its only writer.
type State int

const (
	Disconnected State = iota
	Connected
)

// Config holds reconnection policy settings.
type Config struct {
	AutoConnectOnStartup bool          `yaml:"auto_connect_on_startup"`
	AutoConnectOnPlug    bool          `yaml:"auto_connect_on_plug"`
	Baud                 int           `yaml:"baud"`
	PreferredClass       string        `yaml:"preferred_device_class"` // "reader" (default) or "generic"
	LastPort             string        `yaml:"last_connected_port"`
	SettleDelay          time.Duration `yaml:"settle_delay"`
}

// Deps are the coordinator's collaborators, injected as funcs so tests
// can drive the state machine synchronously. After must run its
// callback on the same goroutine that calls the coordinator's methods;
// the app loop satisfies this by posting the closure back onto itself.
type Deps struct {
	Open         func(port string, baud int) error
	Close        func()
	Ports        func() []string
	Notify       func(msg string)
	After        func(d time.Duration, fn func())
	RememberPort func(port string)
}

// Coordinator decides when to open or close the reader connection. All
// methods must be called from the single consumer goroutine.
type Coordinator struct {
	cfg  Config
	deps Deps

	state     State
	port      string
	inventory []string
	seen      map[string]watcher.DeviceDescriptor
}

// New creates a coordinator in the Disconnected state with the current
// port inventory as its baseline.
func New(cfg Config, deps Deps) *Coordinator {
	if cfg.Baud == 0 {
		cfg.Baud = 9600
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 500 * time.Millisecond
	}
	return &Coordinator{
		cfg:       cfg,
		deps:      deps,
		inventory: deps.Ports(),
		seen:      make(map[string]watcher.DeviceDescriptor),
	}
}

// State returns the current connection state.
func (c *Coordinator) State() State { return c.state }

// Port returns the connected port, or "" when disconnected.
func (c *Coordinator) Port() string {
	if c.state != Connected {
		return ""
	}
	return c.port
}

// Startup applies the auto-connect-on-startup policy: the last
// successfully connected port is tried first, then the first available
// port. Failures are transient notifications, never fatal.
func (c *Coordinator) Startup() {
	if !c.cfg.AutoConnectOnStartup || c.state != Disconnected {
		return
	}
	candidates := c.inventory
	if c.cfg.LastPort != "" {
		ordered := []string{c.cfg.LastPort}
		for _, p := range candidates {
			if p != c.cfg.LastPort {
				ordered = append(ordered, p)
			}
		}
		candidates = ordered
	}
	for _, port := range candidates {
		if err := c.open(port); err != nil {
			log.Printf("link: startup connect %s: %v", port, err)
			continue
		}
		return
	}
}

// HandleDeviceEvent reacts to one hot-plug transition. The inventory is
// re-queried only after a short settle delay because the OS can report
// a device before its serial port is fully enumerated; the wait is a
// timer, it never blocks event processing.
func (c *Coordinator) HandleDeviceEvent(ev watcher.Event) {
	if ev.Attach {
		if ev.Desc.Port != "" {
			c.seen[ev.Desc.Port] = ev.Desc
		}
		if !c.cfg.AutoConnectOnPlug || c.state != Disconnected {
			return
		}
		c.deps.After(c.cfg.SettleDelay, c.autoConnect)
		return
	}
	c.deps.After(c.cfg.SettleDelay, c.recheck)
}

// autoConnect picks the best newly-present port and opens it.
// Reader-class ports win over generic ones; among equals the first in
// stable inventory order wins.
func (c *Coordinator) autoConnect() {
	if c.state != Disconnected {
		return
	}
	current := c.deps.Ports()
	fresh := missingFrom(c.inventory, current)
	c.inventory = current
	if len(fresh) == 0 {
		return
	}

	pick := fresh[0]
	if c.cfg.PreferredClass != "generic" {
		for _, port := range fresh {
			if c.seen[port].IsReaderClass {
				pick = port
				break
			}
		}
	}

	if err := c.open(pick); err != nil {
		c.deps.Notify(fmt.Sprintf("Reader detected on %s but connect failed: %v", pick, err))
	}
}

// recheck force-disconnects when the connected port left the inventory.
// Unrelated detaches only refresh the baseline.
func (c *Coordinator) recheck() {
	current := c.deps.Ports()
	c.inventory = current
	if c.state != Connected {
		return
	}
	for _, port := range current {
		if port == c.port {
			return
		}
	}
	c.deps.Close()
	c.state = Disconnected
	c.deps.Notify(fmt.Sprintf("Reader on %s was unplugged", c.port))
	c.port = ""
}

// ConnectRequest is an operator-initiated connect. The returned error
// carries enough detail for a blocking dialog.
func (c *Coordinator) ConnectRequest(port string) error {
	if c.state == Connected {
		return fmt.Errorf("already connected to %s, disconnect first", c.port)
	}
	if err := c.open(port); err != nil {
		return fmt.Errorf("cannot open %s at %d baud: %w (check the device is plugged in and the port is not in use)",
			port, c.cfg.Baud, err)
	}
	return nil
}

// DisconnectRequest closes the connection unconditionally.
func (c *Coordinator) DisconnectRequest() {
	if c.state != Connected {
		return
	}
	c.deps.Close()
	c.state = Disconnected
	c.deps.Notify(fmt.Sprintf("Disconnected from %s", c.port))
	c.port = ""
}

func (c *Coordinator) open(port string) error {
	if err := c.deps.Open(port, c.cfg.Baud); err != nil {
		return err
	}
	c.state = Connected
	c.port = port
	c.inventory = c.deps.Ports()
	if c.deps.RememberPort != nil {
		c.deps.RememberPort(port)
	}
	c.deps.Notify(fmt.Sprintf("Reader connected on %s", port))
	return nil
}

// missingFrom returns the elements of current that are not in baseline,
// preserving current's order.
func missingFrom(baseline, current []string) []string {
	known := make(map[string]bool, len(baseline))
	for _, p := range baseline {
		known[p] = true
	}
	var fresh []string
	for _, p := range current {
		if !known[p] {
			fresh = append(fresh, p)
		}
	}
	return fresh
}
