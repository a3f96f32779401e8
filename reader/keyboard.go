package reader

import (
	"context"
	"fmt"
	"log"

	"github.com/kenshaw/evdev"
)

// keyboardSource reads card ids from readers that present themselves as
// a USB keyboard: characters arrive as key presses, Enter terminates
// one scan.
type keyboardSource struct {
	device *evdev.Evdev
}

func newKeyboardSource(device string) (*keyboardSource, error) {
	dev, err := evdev.OpenFile(device)
	if err != nil {
		return nil, fmt.Errorf("open evdev %s: %w (%v)", device, ErrPortUnavailable, err)
	}
	log.Printf("Opened keyboard device: %s", dev.Name())
	return &keyboardSource{device: dev}, nil
}

// run accumulates key presses until Enter, then emits the buffered id.
func (k *keyboardSource) run(ctx context.Context, emit func(string)) {
	ch := k.device.Poll(ctx)
	var kb keyBuffer

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ch:
			if event == nil {
				log.Printf("keyboard device closed")
				return
			}
			switch event.Type.(type) {
			case evdev.KeyType:
				if event.Value != 1 {
					continue
				}
				if event.Type == evdev.KeyEnter {
					if id := kb.flush(); id != "" {
						emit(id)
					}
					continue
				}
				kb.push(evdev.KeyType(event.Code).String())
			}
		}
	}
}

// Close implements source.Close.
func (k *keyboardSource) Close() error {
	if k.device == nil {
		return nil
	}
	return k.device.Close()
}

// keyBuffer accumulates keystroke characters into one card id. Only
// digits and letters are appended; everything else (shift chatter,
// punctuation) is ignored by policy, not an error.
type keyBuffer struct {
	buf []byte
}

func (b *keyBuffer) push(key string) {
	if len(key) != 1 {
		return
	}
	c := key[0]
	if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
		b.buf = append(b.buf, c)
	}
}

func (b *keyBuffer) flush() string {
	id := string(b.buf)
	b.buf = b.buf[:0]
	return id
}
