// Package ranking selects the roster relevant to one applicant and assigns
// display positions.
package ranking

import (
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/admissions-rank/internal/admission"
)

// Filter ranks applicant records against a target applicant code.
type Filter struct {
	logger *zap.Logger
}

// NewFilter creates a Filter. A nil logger discards the not-found notice.
func NewFilter(logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{logger: logger}
}

// Rank keeps every priority-1 row plus the target's row, in source order,
// numbers them from 1, and marks the first row whose code matches target.
// The input slice is not modified.
func (f *Filter) Rank(records []admission.ApplicantRecord, target string) admission.RankedRoster {
	roster := Rank(records, target)
	if roster.Target == nil {
		f.logger.Warn("target applicant not found in filtered roster",
			zap.String("applicant_id", target),
			zap.Int("roster_size", len(roster.Records)),
		)
	}
	return roster
}

// Rank is the pure selection used by Filter.
func Rank(records []admission.ApplicantRecord, target string) admission.RankedRoster {
	selected := make([]admission.ApplicantRecord, 0, len(records))
	for _, rec := range records {
		if rec.SequenceNumber == 1 || MatchesCode(rec.ApplicantCode, target) {
			selected = append(selected, rec)
		}
	}

	roster := admission.RankedRoster{Records: selected}
	for i := range selected {
		pos := i + 1
		selected[i].Position = &pos
		selected[i].IsTarget = false
		if roster.Target == nil && MatchesCode(selected[i].ApplicantCode, target) {
			selected[i].IsTarget = true
			roster.Target = &selected[i]
		}
	}
	return roster
}

// MatchesCode compares applicant codes ignoring case and surrounding space.
// An empty target matches nothing.
func MatchesCode(code, target string) bool {
	target = strings.TrimSpace(target)
	if target == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(code), target)
}
