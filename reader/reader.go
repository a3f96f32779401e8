// Package reader acquires card scans from a physical reader, in either
// raw serial mode or keystroke-emulation mode, and normalizes both into
// a single stream of raw card-identifier strings.
package reader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	bugst "go.bug.st/serial"
)

// ErrPortUnavailable indicates the named port could not be opened:
// already in use, device removed, or permission denied. Retry policy
// lives with the caller.
var ErrPortUnavailable = errors.New("port unavailable")

// ScanEvent is one physical card presentation.
type ScanEvent struct {
	Raw string
	At  time.Time
}

// Config holds common configuration for reader modes.
type Config struct {
	Type   string `yaml:"type"`   // "serial", "keyboard"
	Device string `yaml:"device"` // evdev path for keyboard mode, e.g. "/dev/input/event0"
	Baud   int    `yaml:"baud"`
}

// source pumps raw card ids until its context is cancelled.
type source interface {
	run(ctx context.Context, emit func(string))
	Close() error
}

// FrontEnd owns at most one open reader connection and delivers scans
// on a hand-off channel. The read loop runs on its own goroutine and
// never touches consumer state; callers drain Scans from wherever they
// own state.
type FrontEnd struct {
	cfg Config

	mu     sync.Mutex
	src    source
	cancel context.CancelFunc
	done   chan struct{}

	scans chan ScanEvent
}

// NewFrontEnd creates a front-end for the configured reader mode.
func NewFrontEnd(cfg Config) *FrontEnd {
	return &FrontEnd{
		cfg:   cfg,
		scans: make(chan ScanEvent, 16),
	}
}

// Scans is the normalized scan stream. It stays valid across
// reconnects.
func (f *FrontEnd) Scans() <-chan ScanEvent {
	return f.scans
}

// Connected reports whether a reader connection is currently open.
func (f *FrontEnd) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.src != nil
}

// AvailablePorts returns the serial ports currently present on the
// host, in stable sorted order.
func (f *FrontEnd) AvailablePorts() []string {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil
	}
	sort.Strings(ports)
	return ports
}

// Connect opens the configured reader mode on the given port. Failures
// wrap ErrPortUnavailable and are reported to the caller, never retried
// here.
func (f *FrontEnd) Connect(port string, baud int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.src != nil {
		return fmt.Errorf("connect %s: already connected", port)
	}

	if baud == 0 {
		baud = f.cfg.Baud
	}

	var src source
	var err error
	switch f.cfg.Type {
	case "keyboard":
		device := f.cfg.Device
		if device == "" {
			device = port
		}
		src, err = newKeyboardSource(device)
	default:
		src, err = newSerialSource(port, baud)
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.src = src
	f.cancel = cancel
	f.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		src.run(ctx, func(raw string) {
			select {
			case f.scans <- ScanEvent{Raw: raw, At: time.Now()}:
			case <-ctx.Done():
			}
		})
	}(f.done)

	return nil
}

// Disconnect closes the current connection. Calling it while already
// disconnected is a no-op.
func (f *FrontEnd) Disconnect() {
	f.mu.Lock()
	src, cancel, done := f.src, f.cancel, f.done
	f.src, f.cancel, f.done = nil, nil, nil
	f.mu.Unlock()

	if src == nil {
		return
	}
	cancel()
	src.Close()
	<-done
}
