package parser

import (
	"math"
	"strconv"
	"strings"

	"github.com/JakeFAU/admissions-rank/internal/admission"
)

// Normalized column keys of the ranking table.
const (
	ColumnSequence      = "№"
	ColumnApplicantCode = "уникальный_код_поступающего"
	ColumnPriority      = "приоритет_№"
	ColumnScore         = "конкурсный_балл"
	ColumnCondition     = "условия_зачисления"
	ColumnConsent       = "согласие_на_зачисление"
)

// RequiredColumns must be present for records to be built.
var RequiredColumns = []string{ColumnSequence, ColumnApplicantCode, ColumnPriority}

// ValidateSchema fails with a *admission.SchemaError when any required
// column is absent from the table header.
func ValidateSchema(table Table, required ...string) error {
	present := make(map[string]struct{}, len(table.Columns))
	for _, c := range table.Columns {
		present[c] = struct{}{}
	}
	var missing []string
	for _, r := range required {
		if _, ok := present[r]; !ok {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		return &admission.SchemaError{Missing: missing, Found: append([]string(nil), table.Columns...)}
	}
	return nil
}

// ToRecords validates the table and converts each row to an applicant record.
// Non-numeric priorities become nil rather than rejecting the row.
func ToRecords(table Table) ([]admission.ApplicantRecord, error) {
	if err := ValidateSchema(table, RequiredColumns...); err != nil {
		return nil, err
	}
	records := make([]admission.ApplicantRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		records = append(records, admission.ApplicantRecord{
			SequenceNumber:     parseSequence(row.Get(ColumnSequence)),
			ApplicantCode:      strings.TrimSpace(row.Get(ColumnApplicantCode)),
			Priority:           CoerceNumber(row.Get(ColumnPriority)),
			CompetitiveScore:   row.Get(ColumnScore),
			AdmissionCondition: row.Get(ColumnCondition),
			ConsentFlag:        row.Get(ColumnConsent),
		})
	}
	return records, nil
}

// CoerceNumber parses s as a float, returning nil for anything non-numeric.
func CoerceNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func parseSequence(s string) int {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if v := CoerceNumber(s); v != nil && *v == math.Trunc(*v) {
		return int(*v)
	}
	return 0
}
