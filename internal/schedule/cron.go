package schedule

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Maintenance runs the housekeeping jobs that want wall-clock schedules
// rather than intervals: the nightly credential pre-refresh and the archive
// prune.
type Maintenance struct {
	cron *cron.Cron
	jobs map[string]cron.EntryID
}

// NewMaintenance creates a maintenance scheduler in the given timezone.
func NewMaintenance(timezone string) (*Maintenance, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}
	return &Maintenance{
		cron: cron.New(cron.WithLocation(loc)),
		jobs: make(map[string]cron.EntryID),
	}, nil
}

// AddJob adds a job with a cron schedule, e.g. "30 4 * * *".
func (m *Maintenance) AddJob(name, schedule string, job Task) error {
	entryID, err := m.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		start := time.Now()
		if err := job(ctx); err != nil {
			log.Printf("[schedule] job %s failed: %v", name, err)
			return
		}
		log.Printf("[schedule] job %s completed in %v", name, time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	m.jobs[name] = entryID
	log.Printf("[schedule] added job %s (schedule: %s)", name, schedule)
	return nil
}

// Start begins running jobs in the background.
func (m *Maintenance) Start() {
	m.cron.Start()
}

// Stop stops the scheduler and waits for running jobs to finish.
func (m *Maintenance) Stop() {
	<-m.cron.Stop().Done()
}
