package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/JakeFAU/admissions-rank/internal/admission"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIdempotent(t *testing.T) {
	Init()
	Init()

	if fetchAttemptsTotal == nil || checksTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveAttempt(t *testing.T) {
	Init()
	counter := fetchAttemptsTotal.WithLabelValues("attempts.example", string(admission.OutcomeTimedOut))
	before := testutil.ToFloat64(counter)

	ObserveAttempt(admission.FetchAttempt{
		URL:      "https://attempts.example/list",
		Number:   1,
		Outcome:  admission.OutcomeTimedOut,
		Err:      errors.New("timed out"),
		Duration: 30 * time.Second,
	})

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("expected one timed out attempt recorded, got %f", got)
	}
}

func TestObserveCheckAndProbe(t *testing.T) {
	Init()
	counter := checksTotal.WithLabelValues("checks.example", CheckTargetMissing)
	before := testutil.ToFloat64(counter)
	ObserveCheck("https://checks.example/x", CheckTargetMissing)
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("expected check counter to increase by 1, got %f", got)
	}

	used := staticProbesTotal.WithLabelValues("used")
	beforeUsed := testutil.ToFloat64(used)
	ObserveStaticProbe(true)
	if got := testutil.ToFloat64(used) - beforeUsed; got != 1 {
		t.Errorf("expected static probe counter to increase by 1, got %f", got)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
