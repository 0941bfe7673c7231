package headless

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

const rankingPage = `<!doctype html><html><body>
<h2 style="color: #0152a3">Прикладная информатика</h2>
<label id="toggle"><input type="checkbox"> Приоритет №1</label>
<div id="list"></div>
<script>
document.getElementById('toggle').addEventListener('click', function () {
  setTimeout(function () {
    document.getElementById('list').innerHTML =
      '<table><tr><th>№</th><th>Уникальный код поступающего</th></tr><tr><td>1</td><td>X42</td></tr></table>';
  }, 50);
});
</script></body></html>`

func TestChromedpDriverLoad(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, rankingPage)
	}))
	defer srv.Close()

	launcher := NewChromedpLauncher(ChromedpConfig{NoSandbox: true})
	cfg := Config{ElementTimeout: 5 * time.Second}
	driver := NewDriver(launcher, cfg, nil, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	session, err := launcher.Launch(ctx)
	if err != nil {
		t.Skipf("chromedp unavailable: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Skipf("chromedp close failed: %v", err)
	}

	markup, err := driver.Load(ctx, srv.URL)
	if err != nil {
		t.Skipf("render failed: %v", err)
	}
	if !strings.Contains(markup, "X42") {
		t.Fatal("rendered markup missing table revealed by the toggle")
	}
}

func TestChromedpSessionCloseIdempotent(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	session := &chromedpSession{ctx: ctx, browserCancel: cancel, allocCancel: func() {}}
	first := session.Close()
	second := session.Close()
	if first != second {
		t.Fatalf("expected identical close results, got %v and %v", first, second)
	}
	if ctx.Err() == nil {
		t.Fatal("expected browser context to be canceled after Close")
	}
}

func TestForwardCancel(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	defer stop()
	cancelParent()

	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("parent cancellation was not forwarded")
	}
}
