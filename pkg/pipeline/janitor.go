package pipeline

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSweepSchedule is the janitor's sweep cadence when none is given.
const DefaultSweepSchedule = "@every 1m"

// Janitor periodically sweeps expired entries out of a result cache. The
// sweep never removes unexpired entries and is safe to run concurrently
// with reads and writes.
type Janitor struct {
	cron  *cron.Cron
	cache *ResultCache
}

// NewJanitor schedules cache sweeps on a cron schedule expression such as
// "@every 30s". An empty schedule uses DefaultSweepSchedule.
func NewJanitor(cache *ResultCache, schedule string) (*Janitor, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	c := cron.New()
	j := &Janitor{cron: c, cache: cache}

	if _, err := c.AddFunc(schedule, j.sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	return j, nil
}

// Start begins the sweep schedule in its own goroutine.
func (j *Janitor) Start() {
	j.cron.Start()
	log.Debug().Msg("Cache janitor started")
}

// Stop halts the schedule. A sweep already in progress runs to completion.
func (j *Janitor) Stop() {
	j.cron.Stop()
	log.Debug().Msg("Cache janitor stopped")
}

func (j *Janitor) sweep() {
	j.cache.Sweep()
}
