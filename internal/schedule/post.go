package schedule

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"time"
)

// PostPlanner decides when the bot publishes. Each day it derives fire
// times from the configured base times, shifted by a random jitter, and a
// single coin flip decides whether that day posts at all. Fire times are
// consumed as they pass even on a no-post day, so a flip of the coin never
// bunches posts up.
type PostPlanner struct {
	baseTimes []int // minutes since midnight
	jitter    time.Duration
	// probability is the daily chance that due fire times actually post.
	probability float64
	task        Task

	now  func() time.Time
	rand *rand.Rand

	planDay   time.Time // midnight of the day the plan covers
	fireTimes []time.Time
	postToday bool

	running bool
	cancel  func()
	done    chan struct{}
}

// NewPostPlanner parses base times like "09:30" and builds a planner.
func NewPostPlanner(baseTimes []string, jitter time.Duration, probability float64, task Task) (*PostPlanner, error) {
	p := &PostPlanner{
		jitter:      jitter,
		probability: probability,
		task:        task,
		now:         time.Now,
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, s := range baseTimes {
		t, err := time.Parse("15:04", s)
		if err != nil {
			return nil, fmt.Errorf("invalid post time %q: %w", s, err)
		}
		p.baseTimes = append(p.baseTimes, t.Hour()*60+t.Minute())
	}
	sort.Ints(p.baseTimes)
	return p, nil
}

// plan regenerates the day's fire times and flips the day's coin. Fire
// times already in the past when the plan is made are dropped, so a
// mid-day restart doesn't fire a burst of stale slots.
func (p *PostPlanner) plan(day time.Time) {
	p.planDay = day
	p.postToday = p.rand.Float64() < p.probability
	p.fireTimes = p.fireTimes[:0]

	now := p.now()
	for _, m := range p.baseTimes {
		at := day.Add(time.Duration(m) * time.Minute)
		if p.jitter > 0 {
			at = at.Add(time.Duration(p.rand.Int63n(int64(2*p.jitter))) - p.jitter)
		}
		if at.After(now) {
			p.fireTimes = append(p.fireTimes, at)
		}
	}
	sort.Slice(p.fireTimes, func(i, j int) bool { return p.fireTimes[i].Before(p.fireTimes[j]) })

	verdict := "posting"
	if !p.postToday {
		verdict = "staying quiet"
	}
	log.Printf("[schedule] planned %d post slots for %s, %s today",
		len(p.fireTimes), day.Format("2006-01-02"), verdict)
}

// due pops fire times that have passed and reports whether any of them
// should actually post. Consumption happens regardless of the coin flip.
func (p *PostPlanner) due(now time.Time) bool {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !day.Equal(p.planDay) {
		p.plan(day)
	}

	fired := false
	for len(p.fireTimes) > 0 && !p.fireTimes[0].After(now) {
		p.fireTimes = p.fireTimes[1:]
		fired = true
	}
	return fired && p.postToday
}

// Start launches the planning loop, checking for due slots once a minute.
// Calling Start on a running planner does nothing.
func (p *PostPlanner) Start(ctx context.Context) {
	if p.running {
		return
	}
	p.running = true
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if !p.due(p.now()) {
				continue
			}
			if err := p.task(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("[schedule] scheduled post failed: %v", err)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight post to finish.
func (p *PostPlanner) Stop() {
	if !p.running {
		return
	}
	p.running = false
	p.cancel()
	<-p.done
}
