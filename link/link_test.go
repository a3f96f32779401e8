package link_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"punchd/link"
	"punchd/watcher"
)

// harness wires a coordinator to fake collaborators. After queues
// callbacks so tests control when settle work runs, mirroring how the
// dispatcher batches attach events before the settle timer fires.
type harness struct {
	ports      []string
	openErr    map[string]error
	opened     []string
	closes     int
	notices    []string
	remembered []string
	pending    []func()
}

func (h *harness) deps() link.Deps {
	return link.Deps{
		Open: func(port string, baud int) error {
			if err := h.openErr[port]; err != nil {
				return err
			}
			h.opened = append(h.opened, port)
			return nil
		},
		Close:  func() { h.closes++ },
		Ports:  func() []string { return h.ports },
		Notify: func(msg string) { h.notices = append(h.notices, msg) },
		After: func(d time.Duration, fn func()) {
			h.pending = append(h.pending, fn)
		},
		RememberPort: func(port string) { h.remembered = append(h.remembered, port) },
	}
}

func (h *harness) settle() {
	pending := h.pending
	h.pending = nil
	for _, fn := range pending {
		fn()
	}
}

func attach(port, caption string, readerClass bool) watcher.Event {
	return watcher.Event{Attach: true, Desc: watcher.DeviceDescriptor{
		Port: port, Name: port, Caption: caption, IsReaderClass: readerClass,
	}}
}

func detach(port string) watcher.Event {
	return watcher.Event{Attach: false, Desc: watcher.DeviceDescriptor{Port: port, Name: port}}
}

func TestAutoConnectPrefersReaderClass(t *testing.T) {
	h := &harness{}
	c := link.New(link.Config{AutoConnectOnPlug: true}, h.deps())

	h.ports = []string{"COM5", "COM6"}
	c.HandleDeviceEvent(attach("COM5", "Communications Port (COM5)", false))
	c.HandleDeviceEvent(attach("COM6", "CP2102 USB to UART Bridge (COM6)", true))
	h.settle()

	if len(h.opened) != 1 || h.opened[0] != "COM6" {
		t.Fatalf("opened = %v, want [COM6]", h.opened)
	}
	if c.State() != link.Connected || c.Port() != "COM6" {
		t.Fatalf("state = %v port = %q, want Connected COM6", c.State(), c.Port())
	}
	if len(h.remembered) != 1 || h.remembered[0] != "COM6" {
		t.Fatalf("remembered = %v, want [COM6]", h.remembered)
	}
}

func TestAutoConnectGenericFallback(t *testing.T) {
	h := &harness{}
	c := link.New(link.Config{AutoConnectOnPlug: true}, h.deps())

	h.ports = []string{"COM5"}
	c.HandleDeviceEvent(attach("COM5", "Communications Port (COM5)", false))
	h.settle()

	if len(h.opened) != 1 || h.opened[0] != "COM5" {
		t.Fatalf("opened = %v, want [COM5]", h.opened)
	}
}

func TestAutoConnectPreferredClassGeneric(t *testing.T) {
	h := &harness{}
	c := link.New(link.Config{AutoConnectOnPlug: true, PreferredClass: "generic"}, h.deps())

	h.ports = []string{"COM5", "COM6"}
	c.HandleDeviceEvent(attach("COM5", "Communications Port (COM5)", false))
	c.HandleDeviceEvent(attach("COM6", "CP2102 USB to UART Bridge (COM6)", true))
	h.settle()

	if len(h.opened) != 1 || h.opened[0] != "COM5" {
		t.Fatalf("opened = %v, want [COM5] with generic preference", h.opened)
	}
}

func TestAutoConnectDisabled(t *testing.T) {
	h := &harness{}
	c := link.New(link.Config{}, h.deps())

	h.ports = []string{"COM6"}
	c.HandleDeviceEvent(attach("COM6", "CP2102 (COM6)", true))
	h.settle()

	if len(h.opened) != 0 {
		t.Fatalf("opened = %v with auto-connect disabled", h.opened)
	}
}

func TestAutoConnectOpenFailure(t *testing.T) {
	h := &harness{openErr: map[string]error{"COM6": errors.New("access denied")}}
	c := link.New(link.Config{AutoConnectOnPlug: true}, h.deps())

	h.ports = []string{"COM6"}
	c.HandleDeviceEvent(attach("COM6", "CP2102 (COM6)", true))
	h.settle()

	if c.State() != link.Disconnected {
		t.Fatalf("state = %v after failed open, want Disconnected", c.State())
	}
	if len(h.notices) != 1 || !strings.Contains(h.notices[0], "COM6") {
		t.Fatalf("notices = %v, want transient failure mentioning COM6", h.notices)
	}
}

func TestDetachOfConnectedPortDisconnects(t *testing.T) {
	h := &harness{}
	c := link.New(link.Config{AutoConnectOnPlug: true}, h.deps())

	h.ports = []string{"COM6"}
	c.HandleDeviceEvent(attach("COM6", "CP2102 (COM6)", true))
	h.settle()
	if c.State() != link.Connected {
		t.Fatalf("precondition: not connected")
	}

	h.ports = nil
	c.HandleDeviceEvent(detach("COM6"))
	h.settle()

	if c.State() != link.Disconnected {
		t.Fatalf("state = %v after detach, want Disconnected", c.State())
	}
	if h.closes != 1 {
		t.Fatalf("closes = %d, want 1", h.closes)
	}
}

func TestUnrelatedDetachIgnored(t *testing.T) {
	h := &harness{}
	c := link.New(link.Config{AutoConnectOnPlug: true}, h.deps())

	h.ports = []string{"COM5", "COM6"}
	c.HandleDeviceEvent(attach("COM6", "CP2102 (COM6)", true))
	h.settle()

	h.ports = []string{"COM6"}
	c.HandleDeviceEvent(detach("COM5"))
	h.settle()

	if c.State() != link.Connected || c.Port() != "COM6" {
		t.Fatalf("unrelated detach changed state: %v %q", c.State(), c.Port())
	}
	if h.closes != 0 {
		t.Fatalf("closes = %d, want 0", h.closes)
	}
}

func TestExplicitConnect(t *testing.T) {
	h := &harness{openErr: map[string]error{"COM9": errors.New("in use")}}
	c := link.New(link.Config{Baud: 115200}, h.deps())

	err := c.ConnectRequest("COM9")
	if err == nil {
		t.Fatal("connect to busy port succeeded")
	}
	if !strings.Contains(err.Error(), "COM9") || !strings.Contains(err.Error(), "115200") {
		t.Fatalf("error %q missing port or baud detail", err)
	}
	if c.State() != link.Disconnected {
		t.Fatalf("state = %v after failed connect, want Disconnected", c.State())
	}

	if err := c.ConnectRequest("COM3"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if c.State() != link.Connected || c.Port() != "COM3" {
		t.Fatalf("state = %v port = %q, want Connected COM3", c.State(), c.Port())
	}

	if err := c.ConnectRequest("COM4"); err == nil {
		t.Fatal("second connect while connected succeeded")
	}
}

func TestExplicitDisconnect(t *testing.T) {
	h := &harness{}
	c := link.New(link.Config{}, h.deps())

	c.DisconnectRequest() // no-op while disconnected
	if h.closes != 0 {
		t.Fatalf("disconnect while disconnected closed %d times", h.closes)
	}

	if err := c.ConnectRequest("COM3"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	c.DisconnectRequest()
	if c.State() != link.Disconnected || h.closes != 1 {
		t.Fatalf("state = %v closes = %d, want Disconnected/1", c.State(), h.closes)
	}
}

func TestStartupTriesLastPortFirst(t *testing.T) {
	h := &harness{ports: []string{"COM3", "COM4"}}
	c := link.New(link.Config{AutoConnectOnStartup: true, LastPort: "COM4"}, h.deps())

	c.Startup()
	if len(h.opened) != 1 || h.opened[0] != "COM4" {
		t.Fatalf("opened = %v, want [COM4]", h.opened)
	}
}

func TestStartupFallsBackWhenLastPortFails(t *testing.T) {
	h := &harness{
		ports:   []string{"COM3", "COM4"},
		openErr: map[string]error{"COM4": errors.New("gone")},
	}
	c := link.New(link.Config{AutoConnectOnStartup: true, LastPort: "COM4"}, h.deps())

	c.Startup()
	if len(h.opened) != 1 || h.opened[0] != "COM3" {
		t.Fatalf("opened = %v, want [COM3]", h.opened)
	}
}

func TestStartupDisabled(t *testing.T) {
	h := &harness{ports: []string{"COM3"}}
	c := link.New(link.Config{}, h.deps())

	c.Startup()
	if len(h.opened) != 0 {
		t.Fatalf("opened = %v with startup auto-connect disabled", h.opened)
	}
}
