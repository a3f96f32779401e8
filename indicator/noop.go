package indicator

// Noop is a no-op indicator used when no hardware is configured.
type Noop struct{}

// Idle implements Indicator.Idle.
func (n *Noop) Idle() {}

// Accepted implements Indicator.Accepted.
func (n *Noop) Accepted() {}

// Denied implements Indicator.Denied.
func (n *Noop) Denied() {}

// LinkLost implements Indicator.LinkLost.
func (n *Noop) LinkLost() {}

// Release implements Indicator.Release.
func (n *Noop) Release() error { return nil }
