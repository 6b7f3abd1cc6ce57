package tracking

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects what counts as having read a section.
type Mode string

const (
	// ModeDwell marks a section read after it has been open for Threshold.
	ModeDwell Mode = "timer"
	// ModeScroll marks a section read when the reader scrolls to its end.
	ModeScroll Mode = "endofpage"
)

const (
	DefaultThreshold       = 5 * time.Second
	MinThreshold           = 1 * time.Second
	MaxThreshold           = 30 * time.Second
	DefaultScrollProximity = 50
)

// ParseMode accepts the stored names and the aliases "dwell" and "scroll".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeDwell), "dwell":
		return ModeDwell, nil
	case string(ModeScroll), "scroll":
		return ModeScroll, nil
	}
	return "", fmt.Errorf("unknown tracking mode %q (want %s or %s)", s, ModeDwell, ModeScroll)
}

// Config is passed to a Tracker explicitly; there are no ambient settings.
type Config struct {
	Mode            Mode          `json:"mode"`
	Threshold       time.Duration `json:"threshold"`
	ScrollProximity float64       `json:"scroll_proximity"` // pixels or lines from the end
}

// DefaultConfig returns dwell tracking with a 5s threshold.
func DefaultConfig() Config {
	return Config{
		Mode:            ModeDwell,
		Threshold:       DefaultThreshold,
		ScrollProximity: DefaultScrollProximity,
	}
}

// Validate reports settings outside the supported bounds.
func (c Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.Threshold < MinThreshold || c.Threshold > MaxThreshold {
		return fmt.Errorf("tracking threshold %s outside [%s, %s]", c.Threshold, MinThreshold, MaxThreshold)
	}
	if c.ScrollProximity < 0 {
		return fmt.Errorf("scroll proximity %v is negative", c.ScrollProximity)
	}
	return nil
}

// normalized fills zero values with defaults and clamps the threshold.
func (c Config) normalized() Config {
	if m, err := ParseMode(string(c.Mode)); err == nil {
		c.Mode = m
	} else {
		c.Mode = ModeDwell
	}
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	c.Threshold = min(max(c.Threshold, MinThreshold), MaxThreshold)
	if c.ScrollProximity <= 0 {
		c.ScrollProximity = DefaultScrollProximity
	}
	return c
}

// Viewport is the scroll state of the reading pane.
type Viewport struct {
	ScrollTop    float64 `json:"scroll_top"`
	ClientHeight float64 `json:"client_height"`
	ScrollHeight float64 `json:"scroll_height"`
}

// Known reports whether the viewport has been measured.
func (v Viewport) Known() bool {
	return v.ScrollHeight > 0
}

// AtEnd reports whether the bottom of the pane is within proximity of the
// end of the content.
func (v Viewport) AtEnd(proximity float64) bool {
	return v.Known() && v.ScrollTop+v.ClientHeight >= v.ScrollHeight-proximity
}
