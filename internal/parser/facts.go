package parser

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
)

const (
	defaultHeadingPattern = `(?is)<h2\b[^>]*style\s*=\s*["']color:\s*#0152a3;?["'][^>]*>(.*?)</h2>`
	defaultSeatsPattern   = `Бюджетных мест:\s*(\S{1,3})`
)

var (
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	leadingDigits = regexp.MustCompile(`^\d+`)
)

// PatternFacts extracts the program heading and budget seat count with
// regular expressions over the raw markup. Each pattern's first capture
// group holds the value.
type PatternFacts struct {
	heading *regexp.Regexp
	seats   *regexp.Regexp
}

// NewPatternFacts returns the extractor matching the ranking site's layout.
func NewPatternFacts() *PatternFacts {
	return &PatternFacts{
		heading: regexp.MustCompile(defaultHeadingPattern),
		seats:   regexp.MustCompile(defaultSeatsPattern),
	}
}

// CompilePatternFacts builds an extractor from custom patterns. Empty
// patterns fall back to the defaults.
func CompilePatternFacts(headingPattern, seatsPattern string) (*PatternFacts, error) {
	if headingPattern == "" {
		headingPattern = defaultHeadingPattern
	}
	if seatsPattern == "" {
		seatsPattern = defaultSeatsPattern
	}
	heading, err := regexp.Compile(headingPattern)
	if err != nil {
		return nil, fmt.Errorf("compile heading pattern: %w", err)
	}
	seats, err := regexp.Compile(seatsPattern)
	if err != nil {
		return nil, fmt.Errorf("compile seats pattern: %w", err)
	}
	if heading.NumSubexp() < 1 || seats.NumSubexp() < 1 {
		return nil, fmt.Errorf("fact patterns need a capture group")
	}
	return &PatternFacts{heading: heading, seats: seats}, nil
}

// ExtractHeading returns the text of the first matching heading.
func (p *PatternFacts) ExtractHeading(markup string) (string, bool) {
	m := p.heading.FindStringSubmatch(markup)
	if m == nil {
		return "", false
	}
	text := collapseSpace(html.UnescapeString(tagPattern.ReplaceAllString(m[1], " ")))
	if text == "" {
		return "", false
	}
	return text, true
}

// ExtractSeatCount returns the number of budget-funded seats.
func (p *PatternFacts) ExtractSeatCount(markup string) (int, bool) {
	m := p.seats.FindStringSubmatch(markup)
	if m == nil {
		return 0, false
	}
	digits := leadingDigits.FindString(m[1])
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}
