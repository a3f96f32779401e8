package reader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tarm/serial"
)

// serialPort is the subset of *serial.Port the read loop needs,
// separated so the loop can be tested without hardware.
type serialPort interface {
	Read(p []byte) (int, error)
	Close() error
}

// serialSource reads newline-delimited ASCII card ids from a serial
// reader.
type serialSource struct {
	port   serialPort
	device string
}

func newSerialSource(device string, baud int) (*serialSource, error) {
	if baud == 0 {
		baud = 9600
	}
	c := &serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: 250 * time.Millisecond,
	}
	port, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w (%v)", device, ErrPortUnavailable, err)
	}
	return &serialSource{port: port, device: device}, nil
}

// run reads until cancelled. A corrupt or failed read must not end the
// stream: errors are treated like timeouts and the loop keeps
// listening. Partial lines stay buffered until a terminator arrives.
func (s *serialSource) run(ctx context.Context, emit func(string)) {
	var lb lineBuffer
	buf := make([]byte, 256)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, _ := s.port.Read(buf)
		if n == 0 {
			// Timeout or failed read. Stay fail-soft, but pace the
			// retry so a yanked device returning hard errors does
			// not spin the loop until the watcher notices.
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		for _, line := range lb.feed(buf[:n]) {
			emit(line)
		}
	}
}

// Close implements source.Close.
func (s *serialSource) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}

// lineBuffer accumulates serial bytes and splits complete lines on \r
// or \n. One read chunk may carry several lines; each non-empty trimmed
// line is one scan, in arrival order.
type lineBuffer struct {
	buf []byte
}

func (b *lineBuffer) feed(p []byte) []string {
	var lines []string
	for _, c := range p {
		if c == '\r' || c == '\n' {
			line := strings.TrimSpace(string(b.buf))
			b.buf = b.buf[:0]
			if line != "" {
				lines = append(lines, line)
			}
			continue
		}
		b.buf = append(b.buf, c)
	}
	return lines
}
