// Package detector decides when static markup is not enough and the headless
// browser must render the page.
package detector

import (
	"strings"

	"github.com/JakeFAU/admissions-rank/internal/parser"
)

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	RequiredColumns []string
}

// NewHeuristic creates a new detector. With no columns given it requires the
// ranking table's mandatory columns.
func NewHeuristic(required ...string) *Heuristic {
	if len(required) == 0 {
		required = parser.RequiredColumns
	}
	return &Heuristic{RequiredColumns: required}
}

var spaMarkers = []string{
	"__next",
	`id="root"`,
	`id="app"`,
	"data-reactroot",
}

// ShouldPromote reports whether markup lacks a usable ranking table.
func (h *Heuristic) ShouldPromote(markup string) bool {
	if strings.TrimSpace(markup) == "" {
		return true
	}
	table, err := parser.ExtractTable(markup)
	if err != nil || len(table.Rows) == 0 {
		return true
	}
	if parser.ValidateSchema(table, h.RequiredColumns...) != nil {
		return true
	}
	// A client-rendered shell may carry a placeholder table; trust it only
	// when scripts do not dominate the document.
	return hasSPAMarker(markup) && scriptDensityHigh(markup)
}

func hasSPAMarker(markup string) bool {
	for _, marker := range spaMarkers {
		if strings.Contains(markup, marker) {
			return true
		}
	}
	return false
}

func scriptDensityHigh(body string) bool {
	lower := strings.ToLower(body)
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	scriptCoverage := 0
	searchPos := 0

	for {
		relativeStart := strings.Index(lower[searchPos:], openTag)
		if relativeStart == -1 {
			break
		}
		start := searchPos + relativeStart

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			// Treat the rest of the document as part of the malformed script.
			scriptCoverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		relativeEnd := strings.Index(lower[contentStart:], closeTag)
		var nextSearch int
		if relativeEnd == -1 {
			nextSearch = total
		} else {
			nextSearch = contentStart + relativeEnd + len(closeTag)
		}

		scriptCoverage += nextSearch - start
		searchPos = nextSearch
	}

	if scriptCoverage == 0 {
		return false
	}
	return scriptCoverage*100/total >= 25
}
