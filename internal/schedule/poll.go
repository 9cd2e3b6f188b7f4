// Package schedule runs the bot's recurring work: the feed poll loop, the
// daily post plan and the cron maintenance jobs.
package schedule

import (
	"context"
	"log"
	"time"
)

// Task is one unit of recurring work.
type Task func(ctx context.Context) error

// Poller runs a task at a fixed interval, stretching the gap after
// failures so a broken session doesn't hammer the servers.
type Poller struct {
	name     string
	interval time.Duration
	// maxBackoff caps the stretched interval after repeated failures.
	maxBackoff time.Duration
	task       Task

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPoller creates a poller. maxBackoff of zero means 8x the interval.
func NewPoller(name string, interval, maxBackoff time.Duration, task Task) *Poller {
	if maxBackoff <= 0 {
		maxBackoff = 8 * interval
	}
	return &Poller{
		name:       name,
		interval:   interval,
		maxBackoff: maxBackoff,
		task:       task,
	}
}

// Start launches the poll loop. The first run happens one interval after
// Start, not immediately. Calling Start on a running poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	if p.running {
		return
	}
	p.running = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		delay := p.interval
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			if err := p.task(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				delay = min(delay*2, p.maxBackoff)
				log.Printf("[schedule] %s failed, next run in %v: %v", p.name, delay, err)
				continue
			}
			delay = p.interval
		}
	}()
}

// Stop cancels the loop and waits for the in-flight run to finish.
func (p *Poller) Stop() {
	if !p.running {
		return
	}
	p.running = false
	p.cancel()
	<-p.done
}
