// Package supervisor retries a single-attempt page loader under a per-attempt
// time bound until it yields markup or the attempt budget runs out.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/admissions-rank/internal/admission"
	"github.com/JakeFAU/admissions-rank/internal/clock/system"
)

const (
	defaultAttemptTimeout = 30 * time.Second
	defaultFailureBackoff = 2 * time.Second
	defaultReleaseGrace   = 10 * time.Second
	defaultMaxAttempts    = 10
)

// Config controls supervision of page loads.
type Config struct {
	// PerAttemptTimeout bounds each attempt.
	PerAttemptTimeout time.Duration
	// MaxAttempts caps attempts per URL; zero means unlimited.
	MaxAttempts int
	// FailureBackoff is the pause after an attempt that failed before its bound.
	FailureBackoff time.Duration
	// ReleaseGrace bounds the wait for a timed-out attempt to tear down;
	// zero waits until the attempt returns.
	ReleaseGrace time.Duration
}

// DefaultConfig returns the supervision settings used by the CLI.
func DefaultConfig() Config {
	return Config{
		PerAttemptTimeout: defaultAttemptTimeout,
		MaxAttempts:       defaultMaxAttempts,
		FailureBackoff:    defaultFailureBackoff,
		ReleaseGrace:      defaultReleaseGrace,
	}
}

// Validate reports nonsensical settings.
func (c Config) Validate() error {
	if c.PerAttemptTimeout <= 0 {
		return errors.New("per-attempt timeout must be > 0")
	}
	if c.MaxAttempts < 0 {
		return errors.New("max attempts must be >= 0")
	}
	if c.FailureBackoff < 0 {
		return errors.New("failure backoff must be >= 0")
	}
	if c.ReleaseGrace < 0 {
		return errors.New("release grace must be >= 0")
	}
	return nil
}

// AttemptObserver is notified after every attempt outcome is known.
type AttemptObserver func(admission.FetchAttempt)

// Pacer delays attempts against the same host.
type Pacer interface {
	Wait(ctx context.Context, url string) error
}

// Supervisor implements admission.PageFetcher on top of a Loader.
type Supervisor struct {
	loader    admission.Loader
	cfg       Config
	clock     admission.Clock
	logger    *zap.Logger
	pacer     Pacer
	observers []AttemptObserver
}

// Option customizes a Supervisor.
type Option func(*Supervisor)

// WithClock overrides the clock used for backoff pauses.
func WithClock(clock admission.Clock) Option {
	return func(s *Supervisor) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver registers an attempt observer.
func WithObserver(obs AttemptObserver) Option {
	return func(s *Supervisor) {
		if obs != nil {
			s.observers = append(s.observers, obs)
		}
	}
}

// WithPacer makes every attempt wait on pacer before it starts.
func WithPacer(pacer Pacer) Option {
	return func(s *Supervisor) {
		s.pacer = pacer
	}
}

// New builds a Supervisor around loader.
func New(loader admission.Loader, cfg Config, opts ...Option) (*Supervisor, error) {
	if loader == nil {
		return nil, errors.New("supervisor requires a loader")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("supervisor config: %w", err)
	}
	s := &Supervisor{
		loader: loader,
		cfg:    cfg,
		clock:  system.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type loadResult struct {
	markup string
	err    error
}

// FetchPage blocks until an attempt yields non-empty markup, the attempt
// budget is spent, or ctx is done. Attempts never overlap.
func (s *Supervisor) FetchPage(ctx context.Context, url string) (admission.RawPage, error) {
	log := s.logger.With(zap.String("url", url))
	var lastErr error

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return admission.RawPage{}, fmt.Errorf("fetch %s canceled before attempt %d: %w", url, attempt, err)
		}
		if s.cfg.MaxAttempts > 0 && attempt > s.cfg.MaxAttempts {
			return admission.RawPage{}, &admission.AttemptsExhaustedError{
				URL:      url,
				Attempts: attempt - 1,
				Last:     lastErr,
			}
		}

		if s.pacer != nil {
			if err := s.pacer.Wait(ctx, url); err != nil {
				return admission.RawPage{}, fmt.Errorf("fetch %s attempt %d: %w", url, attempt, err)
			}
		}

		log.Info("starting fetch attempt", zap.Int("attempt", attempt))
		result := s.runAttempt(ctx, url, attempt)
		s.notify(result.attempt)

		switch result.attempt.Outcome {
		case admission.OutcomeSuccess:
			return admission.RawPage{
				SourceURL: url,
				Markup:    result.markup,
				Attempts:  attempt,
			}, nil
		case admission.OutcomeTimedOut:
			lastErr = result.attempt.Err
			if ctx.Err() != nil {
				continue
			}
			log.Warn("fetch attempt timed out, restarting",
				zap.Int("attempt", attempt),
				zap.Duration("timeout", s.cfg.PerAttemptTimeout),
			)
		case admission.OutcomeFailed:
			lastErr = result.attempt.Err
			if ctx.Err() != nil || s.lastAttempt(attempt) {
				continue
			}
			log.Warn("fetch attempt failed, backing off",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", s.cfg.FailureBackoff),
				zap.Error(result.attempt.Err),
			)
			if err := s.clock.Sleep(ctx, s.cfg.FailureBackoff); err != nil {
				continue
			}
		}
	}
}

type attemptResult struct {
	attempt admission.FetchAttempt
	markup  string
}

// runAttempt runs one Load on its own goroutine. On timeout the attempt
// context is canceled, which tears the browser session down, and the worker
// is given ReleaseGrace to return before the next attempt may start.
func (s *Supervisor) runAttempt(ctx context.Context, url string, number int) attemptResult {
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan loadResult, 1)
	start := s.clock.Now()
	go func() {
		markup, err := s.loader.Load(attemptCtx, url)
		done <- loadResult{markup: markup, err: err}
	}()

	timer := time.NewTimer(s.cfg.PerAttemptTimeout)
	defer timer.Stop()

	attempt := admission.FetchAttempt{URL: url, Number: number}
	select {
	case res := <-done:
		attempt.Duration = s.clock.Now().Sub(start)
		switch {
		case res.err != nil:
			attempt.Outcome = admission.OutcomeFailed
			attempt.Err = res.err
		case res.markup == "":
			attempt.Outcome = admission.OutcomeFailed
			attempt.Err = admission.ErrEmptyMarkup
		default:
			attempt.Outcome = admission.OutcomeSuccess
			return attemptResult{attempt: attempt, markup: res.markup}
		}
		return attemptResult{attempt: attempt}
	case <-timer.C:
		attempt.Outcome = admission.OutcomeTimedOut
		attempt.Err = fmt.Errorf("%w after %s", admission.ErrAttemptTimeout, s.cfg.PerAttemptTimeout)
	case <-ctx.Done():
		attempt.Outcome = admission.OutcomeFailed
		attempt.Err = ctx.Err()
	}

	cancel()
	s.awaitRelease(done, url, number)
	attempt.Duration = s.clock.Now().Sub(start)
	return attemptResult{attempt: attempt}
}

func (s *Supervisor) awaitRelease(done <-chan loadResult, url string, number int) {
	if s.cfg.ReleaseGrace == 0 {
		<-done
		return
	}
	grace := time.NewTimer(s.cfg.ReleaseGrace)
	defer grace.Stop()
	select {
	case <-done:
	case <-grace.C:
		s.logger.Warn("abandoned attempt did not release within grace period",
			zap.String("url", url),
			zap.Int("attempt", number),
			zap.Duration("grace", s.cfg.ReleaseGrace),
		)
	}
}

func (s *Supervisor) lastAttempt(attempt int) bool {
	return s.cfg.MaxAttempts > 0 && attempt >= s.cfg.MaxAttempts
}

func (s *Supervisor) notify(attempt admission.FetchAttempt) {
	for _, obs := range s.observers {
		obs(attempt)
	}
}
