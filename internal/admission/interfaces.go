package admission

import (
	"context"
	"time"
)

// Loader acquires rendered markup for a URL in a single attempt.
type Loader interface {
	Load(ctx context.Context, url string) (string, error)
}

// PageFetcher acquires a RawPage for a URL, retrying as it sees fit.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (RawPage, error)
}

// StaticFetcher fetches a URL without executing JavaScript.
type StaticFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FactExtractor pulls scalar facts out of raw markup.
type FactExtractor interface {
	ExtractHeading(markup string) (string, bool)
	ExtractSeatCount(markup string) (int, bool)
}

// Reporter renders check results for the user.
type Reporter interface {
	Write(result CheckResult) error
}

// Clock returns the current time and sleeps (useful for testing).
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
