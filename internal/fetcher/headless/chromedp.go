package headless

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// ChromedpConfig controls how browser processes are started.
type ChromedpConfig struct {
	UserAgent string
	NoSandbox bool
	ExecPath  string
}

// ChromedpLauncher starts one Chrome process per session so attempts never
// share browser state.
type ChromedpLauncher struct {
	cfg ChromedpConfig
}

// NewChromedpLauncher creates a launcher backed by chromedp.
func NewChromedpLauncher(cfg ChromedpConfig) *ChromedpLauncher {
	return &ChromedpLauncher{cfg: cfg}
}

func (l *ChromedpLauncher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if l.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if l.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.cfg.UserAgent))
	}
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	return opts
}

// Launch starts a fresh browser process. The allocator derives from ctx, so
// canceling ctx kills the process even if Close is never reached.
func (l *ChromedpLauncher) Launch(ctx context.Context) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, l.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	setup := []chromedp.Action{}
	if l.cfg.UserAgent != "" {
		setup = append(setup, emulation.SetUserAgentOverride(l.cfg.UserAgent))
	}
	if err := chromedp.Run(browserCtx, setup...); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	return &chromedpSession{
		ctx:           browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

type chromedpSession struct {
	ctx           context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	closeOnce     sync.Once
	closeErr      error
}

// run executes actions on the session's tab while honoring the caller's ctx.
func (s *chromedpSession) run(ctx context.Context, bound time.Duration, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if bound > 0 {
		runCtx, cancel = context.WithTimeout(s.ctx, bound)
	} else {
		runCtx, cancel = context.WithCancel(s.ctx)
	}
	defer cancel()

	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ctxErr, err)
		}
		return err
	}
	return nil
}

func (s *chromedpSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, 0, chromedp.Navigate(url))
}

func (s *chromedpSession) WaitForElement(ctx context.Context, selector string, bound time.Duration) (Element, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, bound, chromedp.Nodes(selector, &nodes, chromedp.BySearch))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return Element{}, fmt.Errorf("element %q not present after %s: %w", selector, bound, err)
		}
		return Element{}, fmt.Errorf("element %q: %w", selector, err)
	}
	if len(nodes) == 0 {
		return Element{}, fmt.Errorf("element %q: no nodes matched", selector)
	}
	return Element{Selector: selector, NodeID: nodes[0].NodeID}, nil
}

func (s *chromedpSession) ScrollIntoView(ctx context.Context, el Element) error {
	return s.run(ctx, 0, chromedp.ScrollIntoView([]cdp.NodeID{el.NodeID}, chromedp.ByNodeID))
}

func (s *chromedpSession) ExecuteScript(ctx context.Context, function string, el Element) error {
	return s.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(el.NodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolve node: %w", err)
		}
		_, exception, err := runtime.CallFunctionOn(function).WithObjectID(obj.ObjectID).Do(ctx)
		if err != nil {
			return fmt.Errorf("call function: %w", err)
		}
		if exception != nil {
			return fmt.Errorf("script exception: %s", exception.Text)
		}
		return nil
	}))
}

func (s *chromedpSession) Markup(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Close shuts the tab and the browser process down. Safe to call repeatedly.
func (s *chromedpSession) Close() error {
	s.closeOnce.Do(func() {
		err := chromedp.Cancel(s.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = fmt.Errorf("close browser: %w", err)
		}
		s.browserCancel()
		s.allocCancel()
	})
	return s.closeErr
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
