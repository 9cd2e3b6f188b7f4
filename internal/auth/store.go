// Package auth acquires and maintains the opaque cookie bundle the protocol
// client authenticates with. Acquisition runs through an ordered list of
// strategies with the on-disk copy of the last good bundle as a final
// fallback.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Bundle is the opaque credential set for one account: named cookie values.
// Two fields are load-bearing: p_skey (signing-token derivation) and skey
// (image upload auth).
type Bundle map[string]string

// Strategy is one way of acquiring a fresh Bundle. Interactive strategies
// (browser/QR login) are the most disruptive and get their own day-scale
// cooldown in the store.
type Strategy interface {
	Name() string
	Interactive() bool
	Acquire(ctx context.Context) (Bundle, error)
}

// AcquisitionError means every configured strategy and the disk fallback
// failed. It is fatal for the current cycle, never for the process.
type AcquisitionError struct {
	Errs []error
}

func (e *AcquisitionError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return "credential acquisition failed: " + strings.Join(msgs, "; ")
}

func (e *AcquisitionError) Unwrap() []error { return e.Errs }

// Store caches the current bundle, refreshes it through the strategies and
// persists every successful acquisition to one JSON file per account.
// EnsureFresh is safe to call from both scheduler loops concurrently.
type Store struct {
	path       string
	strategies []Strategy

	// minRefresh suppresses re-acquisition when the last success is
	// recent, so bursts of protocol calls don't hammer the acquisition
	// sources. interactiveCooldown separately suppresses the interactive
	// strategy for a day-scale window after it succeeds once.
	minRefresh          time.Duration
	interactiveCooldown time.Duration
	fallbackToDisk      bool

	now func() time.Time

	mu              sync.Mutex
	cached          Bundle
	lastRefresh     time.Time
	lastInteractive time.Time
}

// Option tweaks a Store.
type Option func(*Store)

// WithMinRefresh sets the suppression window after a successful refresh.
func WithMinRefresh(d time.Duration) Option {
	return func(s *Store) { s.minRefresh = d }
}

// WithInteractiveCooldown sets the window during which the interactive
// strategy is skipped after it has succeeded.
func WithInteractiveCooldown(d time.Duration) Option {
	return func(s *Store) { s.interactiveCooldown = d }
}

// WithDiskFallback controls whether the last persisted bundle is used when
// every strategy fails.
func WithDiskFallback(enabled bool) Option {
	return func(s *Store) { s.fallbackToDisk = enabled }
}

// NewStore creates a credential store persisting to path, trying the given
// strategies in order.
func NewStore(path string, strategies []Strategy, opts ...Option) *Store {
	s := &Store{
		path:                path,
		strategies:          strategies,
		minRefresh:          time.Minute,
		interactiveCooldown: 24 * time.Hour,
		fallbackToDisk:      true,
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FilePath returns the per-account credential file path. Leading zeros in
// the account id are not significant to the remote and are trimmed.
func FilePath(dir, uin string) string {
	return filepath.Join(dir, "cookies-"+strings.TrimLeft(uin, "0")+".json")
}

// EnsureFresh returns a usable credential bundle, re-acquiring it when the
// cached one is stale or force is set. Strategies run in order and the
// first success wins; an individual strategy's failure is logged and
// swallowed. Only when every strategy and the disk fallback fail does the
// call fail, with an AcquisitionError.
func (s *Store) EnsureFresh(ctx context.Context, force bool) (Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !force && s.cached != nil && now.Sub(s.lastRefresh) < s.minRefresh {
		return s.cached, nil
	}

	var errs []error
	for _, strat := range s.strategies {
		if strat.Interactive() && !s.lastInteractive.IsZero() && now.Sub(s.lastInteractive) < s.interactiveCooldown {
			log.Printf("[auth] strategy %s in cooldown, skipping", strat.Name())
			continue
		}

		bundle, err := strat.Acquire(ctx)
		if err != nil {
			log.Printf("[auth] strategy %s failed: %v", strat.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", strat.Name(), err))
			continue
		}

		if err := s.persist(bundle); err != nil {
			return nil, fmt.Errorf("persist credentials: %w", err)
		}
		s.cached = bundle
		s.lastRefresh = s.now()
		if strat.Interactive() {
			s.lastInteractive = s.lastRefresh
		}
		log.Printf("[auth] credentials refreshed via %s", strat.Name())
		return bundle, nil
	}

	if s.fallbackToDisk {
		bundle, err := LoadBundle(s.path)
		if err == nil {
			log.Printf("[auth] all strategies failed, using on-disk credentials")
			s.cached = bundle
			s.lastRefresh = s.now()
			return bundle, nil
		}
		errs = append(errs, fmt.Errorf("disk fallback: %w", err))
	}
	return nil, &AcquisitionError{Errs: errs}
}

// persist writes the bundle to the per-account JSON file.
func (s *Store) persist(bundle Bundle) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// LoadBundle reads a previously persisted bundle.
func LoadBundle(path string) (Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, err
	}
	if len(bundle) == 0 {
		return nil, errors.New("credential file is empty")
	}
	return bundle, nil
}

// ParseCookieString splits a "k=v; k2=v2" cookie header into a Bundle.
func ParseCookieString(s string) Bundle {
	bundle := make(Bundle)
	for _, pair := range strings.Split(s, "; ") {
		if k, v, ok := strings.Cut(pair, "="); ok {
			bundle[k] = v
		}
	}
	return bundle
}
