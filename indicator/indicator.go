// Package indicator gives the operator scan feedback through LEDs and
// a beeper.
package indicator

// Indicator is the interface for status indicator implementations.
type Indicator interface {
	// Idle sets the indicator to idle/ready state.
	Idle()

	// Accepted signals a successful clock-in or clock-out.
	Accepted()

	// Denied signals an unknown, inactive or rejected card.
	Denied()

	// LinkLost signals that no reader is connected.
	LinkLost()

	// Release releases any hardware resources.
	Release() error
}

// Config holds configuration for indicator implementations.
type Config struct {
	Chip      string `yaml:"chip"` // GPIO chip, default "gpiochip0"
	GreenPin  *int   `yaml:"green_pin"`
	RedPin    *int   `yaml:"red_pin"`
	BuzzerPin *int   `yaml:"buzzer_pin"`

	// Beep emits a short buzzer pulse on every accepted scan.
	Beep bool `yaml:"beep"`
}

// New creates an Indicator based on the provided configuration.
// Returns a Noop when no pins are configured.
func New(cfg Config) (Indicator, error) {
	if cfg.GreenPin == nil && cfg.RedPin == nil && cfg.BuzzerPin == nil {
		return &Noop{}, nil
	}
	return NewGPIO(cfg)
}
