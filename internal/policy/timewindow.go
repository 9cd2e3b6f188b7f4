// Package policy decides when the bot is allowed to react.
package policy

import (
	"fmt"
	"strings"
	"time"
)

// Window is a daily time window by wall-clock minutes. A window whose start
// is later than its end wraps past midnight, e.g. 23:00-07:00.
type Window struct {
	startMin int
	endMin   int
}

// ParseWindow parses "HH:MM-HH:MM".
func ParseWindow(s string) (Window, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return Window{}, fmt.Errorf("invalid time window %q: want HH:MM-HH:MM", s)
	}
	start, err := parseClock(strings.TrimSpace(parts[0]))
	if err != nil {
		return Window{}, fmt.Errorf("invalid time window %q: %w", s, err)
	}
	end, err := parseClock(strings.TrimSpace(parts[1]))
	if err != nil {
		return Window{}, fmt.Errorf("invalid time window %q: %w", s, err)
	}
	return Window{startMin: start, endMin: end}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether the instant's wall-clock time falls inside the
// window. Both edges are inclusive.
func (w Window) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	if w.startMin <= w.endMin {
		return m >= w.startMin && m <= w.endMin
	}
	// Wraps past midnight.
	return m >= w.startMin || m <= w.endMin
}

// Policy gates reactions by silent windows. During a silent window likes
// and comments are suppressed unless explicitly re-enabled.
type Policy struct {
	windows []Window

	// LikeInSilent / CommentInSilent allow the respective reaction even
	// inside a silent window.
	LikeInSilent    bool
	CommentInSilent bool
}

// New builds a policy from window specs like "23:00-07:00".
func New(specs []string) (*Policy, error) {
	p := &Policy{}
	for _, spec := range specs {
		w, err := ParseWindow(spec)
		if err != nil {
			return nil, err
		}
		p.windows = append(p.windows, w)
	}
	return p, nil
}

// Silent reports whether t falls inside any silent window.
func (p *Policy) Silent(t time.Time) bool {
	for _, w := range p.windows {
		if w.Contains(t) {
			return true
		}
	}
	return false
}

// AllowLike reports whether a like may be sent at t.
func (p *Policy) AllowLike(t time.Time) bool {
	return !p.Silent(t) || p.LikeInSilent
}

// AllowComment reports whether a comment or reply may be sent at t.
func (p *Policy) AllowComment(t time.Time) bool {
	return !p.Silent(t) || p.CommentInSilent
}
