package config

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Window is an inclusive range of durations a random delay is drawn from.
type Window struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// Pick returns a uniformly random duration in [Min, Max].
func (w Window) Pick() time.Duration {
	if w.Max <= w.Min {
		return w.Min
	}
	return w.Min + rand.N(w.Max-w.Min+1)
}

func (w Window) validate(name string) error {
	if w.Min < 0 || w.Max < 0 {
		return fmt.Errorf("%s: negative duration", name)
	}
	if w.Max < w.Min {
		return fmt.Errorf("%s: max %s is below min %s", name, w.Max, w.Min)
	}
	return nil
}
