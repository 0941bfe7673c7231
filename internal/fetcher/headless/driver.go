package headless

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/admissions-rank/internal/admission"
	"github.com/JakeFAU/admissions-rank/internal/clock/system"
)

const (
	defaultToggleText     = "Приоритет №1"
	defaultElementTimeout = 15 * time.Second
	defaultScrollPause    = time.Second
	defaultSettlePause    = 2 * time.Second

	tableRowXPath = "//table//tr"
	clickScript   = "function() { this.click(); }"
)

// Config controls the scripted interaction performed by the Driver.
type Config struct {
	ToggleText     string
	ElementTimeout time.Duration
	ScrollPause    time.Duration
	SettlePause    time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.ToggleText) == "" {
		c.ToggleText = defaultToggleText
	}
	if c.ElementTimeout <= 0 {
		c.ElementTimeout = defaultElementTimeout
	}
	if c.ScrollPause < 0 {
		c.ScrollPause = defaultScrollPause
	}
	if c.SettlePause < 0 {
		c.SettlePause = defaultSettlePause
	}
	return c
}

// DefaultConfig returns the timings used against the ranking site.
func DefaultConfig() Config {
	return Config{
		ToggleText:     defaultToggleText,
		ElementTimeout: defaultElementTimeout,
		ScrollPause:    defaultScrollPause,
		SettlePause:    defaultSettlePause,
	}
}

// Driver performs one browser-driven load of a ranking page. It never
// retries; the supervisor owns retry decisions.
type Driver struct {
	launcher Launcher
	cfg      Config
	clock    admission.Clock
	logger   *zap.Logger
}

// NewDriver builds a Driver. A nil clock uses the system clock and a nil
// logger discards output.
func NewDriver(launcher Launcher, cfg Config, clock admission.Clock, logger *zap.Logger) *Driver {
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		launcher: launcher,
		cfg:      cfg.withDefaults(),
		clock:    clock,
		logger:   logger,
	}
}

// Load navigates to url, reveals the priority-1 table, and returns the
// rendered markup. The browser session is closed on every return path.
func (d *Driver) Load(ctx context.Context, url string) (string, error) {
	log := d.logger.With(zap.String("url", url))
	log.Debug("launching headless browser")
	session, err := d.launcher.Launch(ctx)
	if err != nil {
		return "", fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Warn("browser session close failed", zap.Error(cerr))
		}
	}()

	if err := session.Navigate(ctx, url); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}

	log.Debug("waiting for priority toggle", zap.String("text", d.cfg.ToggleText))
	toggle, err := session.WaitForElement(ctx, ToggleXPath(d.cfg.ToggleText), d.cfg.ElementTimeout)
	if err != nil {
		return "", fmt.Errorf("wait for toggle: %w", err)
	}
	if err := session.ScrollIntoView(ctx, toggle); err != nil {
		return "", fmt.Errorf("scroll toggle into view: %w", err)
	}
	if err := d.clock.Sleep(ctx, d.cfg.ScrollPause); err != nil {
		return "", err
	}
	// Pointer clicks on the toggle are unreliable; click from script instead.
	if err := session.ExecuteScript(ctx, clickScript, toggle); err != nil {
		return "", fmt.Errorf("click toggle: %w", err)
	}
	log.Debug("toggle clicked, waiting for table rows")

	if _, err := session.WaitForElement(ctx, tableRowXPath, d.cfg.ElementTimeout); err != nil {
		return "", fmt.Errorf("wait for table rows: %w", err)
	}
	if err := d.clock.Sleep(ctx, d.cfg.SettlePause); err != nil {
		return "", err
	}

	markup, err := session.Markup(ctx)
	if err != nil {
		return "", fmt.Errorf("capture markup: %w", err)
	}
	log.Debug("markup captured", zap.Int("bytes", len(markup)))
	return markup, nil
}

// ToggleXPath builds the XPath matching a label whose text contains text.
func ToggleXPath(text string) string {
	return fmt.Sprintf("//label[contains(., %s)]", xpathLiteral(text))
}

func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
