package crawler

import (
	"fmt"
	"time"
)

// RunConfig is the immutable configuration of the orchestrator.
type RunConfig struct {
	Source            string        // tag stamped on every result
	NavigationTimeout time.Duration // ceiling per navigation, enforced by the navigator
	SettleDelay       time.Duration // wait between navigation and extraction
	InterItemDelay    time.Duration // politeness pause between items
}

// Validate requires positive durations and a source tag.
func (c RunConfig) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("crawler: empty source tag")
	}
	if c.NavigationTimeout <= 0 || c.SettleDelay <= 0 || c.InterItemDelay <= 0 {
		return fmt.Errorf("crawler: durations must be positive (navigation %s, settle %s, pacing %s)",
			c.NavigationTimeout, c.SettleDelay, c.InterItemDelay)
	}
	return nil
}
