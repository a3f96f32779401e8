// Package eventpipe injects synthetic scanner and hot-plug events
// through a named pipe, so the whole pipeline can be exercised without
// a reader attached.
package eventpipe

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"
)

// EventType identifies a synthetic event.
type EventType int

const (
	EventScan EventType = iota
	EventAttach
	EventDetach
	EventConnect
	EventDisconnect
	EventRegister
)

// Event is one parsed pipe command.
type Event struct {
	Type       EventType
	Card       string // scan, register
	Name       string // register
	Department string // register
	Port       string // attach, detach, connect
	Caption    string // attach
}

// Config holds configuration for the event pipe.
type Config struct {
	Path string `yaml:"path"` // path to named pipe, e.g. "/tmp/punchd-events"
}

// EventHandler is called for each event received from the pipe.
type EventHandler func(Event)

// EventPipe listens for events on a named pipe.
type EventPipe struct {
	path    string
	handler EventHandler
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a new EventPipe. Returns nil if path is empty.
func New(cfg Config, handler EventHandler) (*EventPipe, error) {
	if cfg.Path == "" {
		return nil, nil
	}

	// Remove existing pipe if it exists
	os.Remove(cfg.Path)

	if err := syscall.Mkfifo(cfg.Path, 0666); err != nil {
		return nil, fmt.Errorf("create named pipe %s: %w", cfg.Path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &EventPipe{
		path:    cfg.Path,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins listening for events on the pipe.
// This should be called as a goroutine.
func (ep *EventPipe) Start() {
	log.Printf("Event pipe listening on %s", ep.path)

	for {
		select {
		case <-ep.ctx.Done():
			return
		default:
		}

		// Open blocks until a writer connects; a closed writer loops
		// back to wait for the next one.
		file, err := os.OpenFile(ep.path, os.O_RDONLY, 0)
		if err != nil {
			if ep.ctx.Err() != nil {
				return
			}
			log.Printf("Event pipe open error: %v", err)
			continue
		}

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			select {
			case <-ep.ctx.Done():
				file.Close()
				return
			default:
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			event, err := parseLine(line)
			if err != nil {
				log.Printf("Event pipe parse error: %v", err)
				continue
			}

			if ep.handler != nil {
				ep.handler(event)
			}
		}

		file.Close()
	}
}

// Close stops the event pipe listener and removes the pipe.
func (ep *EventPipe) Close() error {
	ep.cancel()
	return os.Remove(ep.path)
}

// parseLine parses a command line into an Event.
// Command format:
//
//	scan <card-id>                      - Card tap
//	attach <port> [description...]      - Synthetic device attach
//	detach <port>                       - Synthetic device detach
//	connect <port>                      - Operator connect request
//	disconnect                          - Operator disconnect request
//	register <card-id> <name> [dept]    - Register a new employee
func parseLine(line string) (Event, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Event{}, fmt.Errorf("empty command")
	}

	cmd := strings.ToLower(parts[0])

	switch cmd {
	case "scan", "tap":
		if len(parts) < 2 {
			return Event{}, fmt.Errorf("scan requires a card id")
		}
		return Event{Type: EventScan, Card: parts[1]}, nil

	case "attach":
		if len(parts) < 2 {
			return Event{}, fmt.Errorf("attach requires a port")
		}
		return Event{
			Type:    EventAttach,
			Port:    parts[1],
			Caption: strings.Join(parts[2:], " "),
		}, nil

	case "detach":
		if len(parts) < 2 {
			return Event{}, fmt.Errorf("detach requires a port")
		}
		return Event{Type: EventDetach, Port: parts[1]}, nil

	case "connect":
		if len(parts) < 2 {
			return Event{}, fmt.Errorf("connect requires a port")
		}
		return Event{Type: EventConnect, Port: parts[1]}, nil

	case "disconnect":
		return Event{Type: EventDisconnect}, nil

	case "register":
		if len(parts) < 3 {
			return Event{}, fmt.Errorf("register requires <card-id> <name> [department]")
		}
		ev := Event{Type: EventRegister, Card: parts[1], Name: parts[2]}
		if len(parts) > 3 {
			ev.Department = strings.Join(parts[3:], " ")
		}
		return ev, nil

	default:
		return Event{}, fmt.Errorf("unknown command: %s", cmd)
	}
}
