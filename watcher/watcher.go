// Package watcher observes serial-capable devices coming and going and
// classifies them as generic or reader-class bridges.
package watcher

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"go.bug.st/serial/enumerator"
)

// DeviceDescriptor describes one observed serial-capable device.
type DeviceDescriptor struct {
	Port          string // inferred port name, may be empty
	Name          string
	Caption       string
	PnPID         string
	IsReaderClass bool
}

// Event is one attach or detach transition. Platform notifications are
// best-effort; duplicates or missed events must not crash the pipeline.
type Event struct {
	Attach bool
	Desc   DeviceDescriptor
}

// Config holds configuration for the device watcher.
type Config struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Watcher polls the host's serial port inventory and raises one event
// per appeared or removed port. Go has no portable hot-plug
// notification API, so the inventory is snapshot-diffed on a short
// ticker.
type Watcher struct {
	interval time.Duration
	events   chan Event
	known    map[string]DeviceDescriptor
	warned   bool
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	// list is swappable for tests.
	list func() ([]*enumerator.PortDetails, error)
}

// New creates a watcher. It does nothing until Start is called.
func New(cfg Config) *Watcher {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		interval: interval,
		events:   make(chan Event, 8),
		known:    make(map[string]DeviceDescriptor),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		list:     enumerator.GetDetailedPortsList,
	}
}

// Events is the attach/detach stream, drained by the dispatcher loop.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins hot-plug observation on its own goroutine. If the
// inventory cannot be enumerated the watcher logs and keeps running
// with no events; the daemon degrades to manual connect, it never
// aborts startup.
func (w *Watcher) Start() {
	go func() {
		defer close(w.done)

		// Prime the known set so devices present at startup do not
		// raise synthetic attach events.
		if current, err := w.snapshot(); err == nil {
			w.known = current
		}

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.poll()
			}
		}
	}()
}

// Stop halts observation and closes the event channel.
func (w *Watcher) Stop() {
	w.cancel()
	<-w.done
	close(w.events)
}

func (w *Watcher) poll() {
	current, err := w.snapshot()
	if err != nil {
		if !w.warned {
			log.Printf("watcher: enumerate serial ports: %v (hot-plug degraded to manual connect)", err)
			w.warned = true
		}
		return
	}
	w.warned = false

	for _, ev := range Diff(w.known, current) {
		select {
		case w.events <- ev:
		case <-w.ctx.Done():
			return
		}
	}
	w.known = current
}

func (w *Watcher) snapshot() (map[string]DeviceDescriptor, error) {
	details, err := w.list()
	if err != nil {
		return nil, err
	}
	current := make(map[string]DeviceDescriptor, len(details))
	for _, d := range details {
		desc := Describe(d)
		if !PlausiblySerial(desc) {
			continue
		}
		current[desc.Port] = desc
	}
	return current, nil
}

// Describe converts an enumerated port into a DeviceDescriptor,
// including its heuristic classification.
func Describe(d *enumerator.PortDetails) DeviceDescriptor {
	desc := DeviceDescriptor{
		Port:    d.Name,
		Name:    d.Name,
		Caption: d.Product,
	}
	if d.IsUSB {
		desc.PnPID = fmt.Sprintf(`USB\VID_%s&PID_%s`, d.VID, d.PID)
	}
	desc.IsReaderClass = Classify(desc)
	return desc
}

// Diff compares two inventory snapshots and returns detach events for
// ports that left, then attach events for ports that appeared, in
// stable order.
func Diff(known, current map[string]DeviceDescriptor) []Event {
	var events []Event
	for port, desc := range known {
		if _, ok := current[port]; !ok {
			events = append(events, Event{Attach: false, Desc: desc})
		}
	}
	for port, desc := range current {
		if _, ok := known[port]; !ok {
			events = append(events, Event{Attach: true, Desc: desc})
		}
	}
	// Detaches before attaches, then port order, so the diff is
	// deterministic regardless of map iteration order.
	sort.Slice(events, func(i, j int) bool {
		if events[i].Attach != events[j].Attach {
			return !events[i].Attach
		}
		return events[i].Desc.Port < events[j].Desc.Port
	})
	return events
}
