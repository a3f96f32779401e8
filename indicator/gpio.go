package indicator

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// GPIO implements Indicator using discrete LED and buzzer lines.
type GPIO struct {
	green  *gpiocdev.Line
	red    *gpiocdev.Line
	buzzer *gpiocdev.Line
	beep   bool
}

// NewGPIO creates a new GPIO-based indicator.
func NewGPIO(cfg Config) (*GPIO, error) {
	chip := cfg.Chip
	if chip == "" {
		chip = "gpiochip0"
	}

	g := &GPIO{beep: cfg.Beep}

	request := func(pin *int) (*gpiocdev.Line, error) {
		if pin == nil {
			return nil, nil
		}
		line, err := gpiocdev.RequestLine(chip, *pin, gpiocdev.AsOutput(0))
		if err != nil {
			return nil, fmt.Errorf("request gpio %s:%d: %w", chip, *pin, err)
		}
		return line, nil
	}

	var err error
	if g.green, err = request(cfg.GreenPin); err != nil {
		return nil, err
	}
	if g.red, err = request(cfg.RedPin); err != nil {
		g.Release()
		return nil, err
	}
	if g.buzzer, err = request(cfg.BuzzerPin); err != nil {
		g.Release()
		return nil, err
	}

	return g, nil
}

// Idle implements Indicator.Idle.
func (g *GPIO) Idle() {
	g.set(g.green, 0)
	g.set(g.red, 0)
}

// Accepted implements Indicator.Accepted.
func (g *GPIO) Accepted() {
	g.set(g.green, 1)
	g.set(g.red, 0)
	if g.beep {
		g.pulse(g.buzzer, 100*time.Millisecond)
	}
}

// Denied implements Indicator.Denied.
func (g *GPIO) Denied() {
	g.set(g.green, 0)
	g.set(g.red, 1)
	if g.beep {
		g.pulse(g.buzzer, 400*time.Millisecond)
	}
}

// LinkLost implements Indicator.LinkLost.
func (g *GPIO) LinkLost() {
	g.set(g.green, 0)
	g.set(g.red, 1)
}

// Release implements Indicator.Release.
func (g *GPIO) Release() error {
	for _, line := range []*gpiocdev.Line{g.green, g.red, g.buzzer} {
		if line != nil {
			line.SetValue(0)
			line.Close()
		}
	}
	g.green, g.red, g.buzzer = nil, nil, nil
	return nil
}

func (g *GPIO) set(line *gpiocdev.Line, v int) {
	if line != nil {
		line.SetValue(v)
	}
}

func (g *GPIO) pulse(line *gpiocdev.Line, d time.Duration) {
	if line == nil {
		return
	}
	line.SetValue(1)
	time.AfterFunc(d, func() { line.SetValue(0) })
}
