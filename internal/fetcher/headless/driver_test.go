package headless

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu        sync.Mutex
	calls     []string
	waitErrs  map[string]error
	navErr    error
	scriptErr error
	markup    string
	closed    int
}

func (s *fakeSession) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.record("navigate " + url)
	return s.navErr
}

func (s *fakeSession) WaitForElement(_ context.Context, selector string, _ time.Duration) (Element, error) {
	s.record("wait " + selector)
	if err := s.waitErrs[selector]; err != nil {
		return Element{}, err
	}
	return Element{Selector: selector, NodeID: 7}, nil
}

func (s *fakeSession) ScrollIntoView(_ context.Context, el Element) error {
	s.record("scroll " + el.Selector)
	return nil
}

func (s *fakeSession) ExecuteScript(_ context.Context, function string, _ Element) error {
	s.record("script " + function)
	return s.scriptErr
}

func (s *fakeSession) Markup(_ context.Context) (string, error) {
	s.record("markup")
	return s.markup, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

type fakeLauncher struct {
	session *fakeSession
	err     error
}

func (l *fakeLauncher) Launch(_ context.Context) (Session, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.session, nil
}

type recordingClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *recordingClock) Now() time.Time { return time.Unix(0, 0) }

func (c *recordingClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

func TestDriverLoadSuccess(t *testing.T) {
	t.Parallel()

	session := &fakeSession{markup: "<html><table><tr><td>1</td></tr></table></html>"}
	clock := &recordingClock{}
	driver := NewDriver(&fakeLauncher{session: session}, DefaultConfig(), clock, nil)

	markup, err := driver.Load(context.Background(), "https://example.com/list")
	require.NoError(t, err)
	assert.Equal(t, session.markup, markup)

	toggle := ToggleXPath(defaultToggleText)
	assert.Equal(t, []string{
		"navigate https://example.com/list",
		"wait " + toggle,
		"scroll " + toggle,
		"script " + clickScript,
		"wait " + tableRowXPath,
		"markup",
	}, session.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.sleeps)
	assert.Equal(t, 1, session.closed, "session must be released on success")
}

func TestDriverLoadReleasesSessionOnFailure(t *testing.T) {
	t.Parallel()

	waitTimeout := errors.New("element not present after 15s")
	tests := []struct {
		name    string
		session *fakeSession
		ctx     func() context.Context
	}{
		{
			name:    "navigation error",
			session: &fakeSession{navErr: errors.New("net::ERR_NAME_NOT_RESOLVED")},
		},
		{
			name:    "toggle wait timeout",
			session: &fakeSession{waitErrs: map[string]error{ToggleXPath(defaultToggleText): waitTimeout}},
		},
		{
			name:    "table wait timeout",
			session: &fakeSession{waitErrs: map[string]error{tableRowXPath: waitTimeout}},
		},
		{
			name:    "script click fails",
			session: &fakeSession{scriptErr: errors.New("script exception")},
		},
		{
			name:    "canceled during pause",
			session: &fakeSession{},
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			if tc.ctx != nil {
				ctx = tc.ctx()
			}
			driver := NewDriver(&fakeLauncher{session: tc.session}, DefaultConfig(), &recordingClock{}, nil)
			markup, err := driver.Load(ctx, "https://example.com")
			require.Error(t, err)
			assert.Empty(t, markup)
			assert.Equal(t, 1, tc.session.closed, "session must be released on failure")
		})
	}
}

func TestDriverLoadLaunchFailure(t *testing.T) {
	t.Parallel()

	launchErr := errors.New("chrome not found")
	driver := NewDriver(&fakeLauncher{err: launchErr}, Config{}, &recordingClock{}, nil)
	_, err := driver.Load(context.Background(), "https://example.com")
	require.ErrorIs(t, err, launchErr)
}

func TestConfigWithDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{ScrollPause: -1, SettlePause: -1}.withDefaults()
	assert.Equal(t, DefaultConfig(), cfg)

	custom := Config{ToggleText: "Priority 1", ElementTimeout: time.Second}.withDefaults()
	assert.Equal(t, "Priority 1", custom.ToggleText)
	assert.Equal(t, time.Second, custom.ElementTimeout)
	assert.Zero(t, custom.ScrollPause)
}

func TestToggleXPathQuoting(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "//label[contains(., 'Приоритет №1')]", ToggleXPath("Приоритет №1"))
	assert.Equal(t, `//label[contains(., "it's")]`, ToggleXPath("it's"))
	assert.Equal(t, `//label[contains(., concat('a', "'", 'b"c'))]`, ToggleXPath(`a'b"c`))
}
