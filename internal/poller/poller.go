package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/padmexporter/padmexporter/internal/padm"
	"github.com/padmexporter/padmexporter/internal/store"
)

// Default retry budget per cycle. Each tick's budget is independent, so a
// long outage never accumulates into a retry storm.
const (
	DefaultMaxRetries = 2
	DefaultBaseDelay  = 500 * time.Millisecond
	DefaultMaxDelay   = 5 * time.Second
)

// Fetcher is the slice of the PADM client the poller drives.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]padm.Reading, error)
}

// TokenInvalidator lets the poller force a re-authentication after the API
// rejects a bearer token.
type TokenInvalidator interface {
	Invalidate()
}

// Options holds the per-target polling schedule and retry budget.
type Options struct {
	Interval   time.Duration
	MaxRetries uint64
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Poller runs the poll loop for a single target. It is strictly sequential:
// one cycle completes (or exhausts its retry budget) before the next begins.
type Poller struct {
	fetcher Fetcher
	tokens  TokenInvalidator
	store   *store.Store
	opts    Options
	now     func() time.Time
}

// New creates a Poller. Zero retry options get the package defaults.
func New(fetcher Fetcher, tokens TokenInvalidator, st *store.Store, opts Options) *Poller {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	return &Poller{
		fetcher: fetcher,
		tokens:  tokens,
		store:   st,
		opts:    opts,
		now:     time.Now,
	}
}

// Run drives the loop until ctx is cancelled. The first cycle runs
// immediately; later cycles follow the ticker.
func (p *Poller) Run(ctx context.Context) {
	p.cycle(ctx)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// cycle runs one fetch pass and publishes its outcome. The short cycle ID
// correlates the retry logs of a single pass.
func (p *Poller) cycle(ctx context.Context) {
	cycle := uuid.NewString()[:8]
	target := p.fetcher.Name()

	readings, err := p.fetch(ctx, cycle)
	at := p.now()
	if err != nil {
		if ctx.Err() != nil {
			return // shutting down, not a poll failure
		}
		p.store.SetStatus(target, err, at)
		slog.Error("poller: cycle failed", "target", target, "cycle", cycle, "err", err)
		return
	}

	p.store.Merge(target, readings, at)
	p.store.SetStatus(target, nil, at)
	slog.Debug("poller: cycle complete", "target", target, "cycle", cycle, "readings", len(readings))
}

// fetch runs the bounded retry state machine for one cycle.
//
// Transport and parse failures are retried with exponential backoff and
// jitter up to the retry cap. An auth rejection forces exactly one token
// invalidation and one in-cycle retry; a second rejection, or a failed token
// exchange, ends the cycle until the next tick.
func (p *Poller) fetch(ctx context.Context, cycle string) ([]padm.Reading, error) {
	var readings []padm.Reading
	authRetried := false

	b := retry.NewExponential(p.opts.BaseDelay)
	b = retry.WithJitterPercent(25, b)
	b = retry.WithCappedDuration(p.opts.MaxDelay, b)
	b = retry.WithMaxRetries(p.opts.MaxRetries, b)

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		rs, err := p.fetcher.Fetch(ctx)
		if err == nil {
			readings = rs
			return nil
		}

		var rejected *padm.AuthRejectedError
		if errors.As(err, &rejected) {
			if authRetried {
				return err
			}
			authRetried = true
			p.tokens.Invalidate()
			slog.Warn("poller: bearer token rejected, forcing refresh",
				"target", p.fetcher.Name(), "cycle", cycle, "status", rejected.StatusCode)
			return retry.RetryableError(err)
		}

		var transport *padm.TransportError
		var parse *padm.ParseError
		if errors.As(err, &transport) || errors.As(err, &parse) {
			slog.Warn("poller: fetch attempt failed",
				"target", p.fetcher.Name(), "cycle", cycle, "err", err)
			return retry.RetryableError(err)
		}

		// *AuthError and anything unrecognised: no point retrying in-cycle.
		return err
	})
	if err != nil {
		return nil, err
	}
	return readings, nil
}
