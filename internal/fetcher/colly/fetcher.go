// Package collyfetcher implements a static page fetcher using gocolly, with
// bounded retries on transient server errors.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/admissions-rank/internal/admission"
	"github.com/JakeFAU/admissions-rank/internal/clock/system"
)

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"

// retryableStatus lists the server errors worth retrying.
var retryableStatus = map[int]struct{}{
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// Config controls collector behavior.
type Config struct {
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
}

// Fetcher implements admission.StaticFetcher using one shared Colly backend.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	clock         admission.Clock
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. Clones of the base collector share its HTTP client,
// so connections are pooled across calls.
func New(cfg Config, clock admission.Clock, logger *zap.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false), colly.UserAgent(cfg.UserAgent))
	c.AllowURLRevisit = true
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		clock:         clock,
		logger:        logger,
	}
}

// StatusError reports a non-success HTTP status.
type StatusError struct {
	URL    string
	Status int
	Err    error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d: %v", e.URL, e.Status, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Fetch GETs url and returns the body. 500, 502, 503 and 504 responses are
// retried up to MaxRetries times with exponential backoff.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	for retry := 0; ; retry++ {
		body, err := f.visit(ctx, url)
		if err == nil {
			return body, nil
		}
		if !Retryable(err) || retry >= f.cfg.MaxRetries {
			return "", err
		}
		delay := f.Backoff(retry + 1)
		f.logger.Debug("static fetch failed, retrying",
			zap.String("url", url),
			zap.Int("retry", retry+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := f.clock.Sleep(ctx, delay); err != nil {
			return "", err
		}
	}
}

// Backoff returns the delay before the given retry (1-based).
func (f *Fetcher) Backoff(retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	return f.cfg.BackoffBase << (retry - 1)
}

// Retryable reports whether err carries a retryable HTTP status.
func Retryable(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	_, ok := retryableStatus[statusErr.Status]
	return ok
}

func (f *Fetcher) visit(ctx context.Context, url string) (string, error) {
	var (
		body     string
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, url, &body, &fetchErr)
	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		return "", err
	}
	return body, nil
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, url string, body *string, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*body = string(r.Body)
	})
	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = &StatusError{URL: url, Status: r.StatusCode, Err: err}
			return
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
