package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/admissions-rank/internal/admission"
)

func ptrInt(v int) *int           { return &v }
func ptrFloat(v float64) *float64 { return &v }

func sampleResult() admission.CheckResult {
	records := []admission.ApplicantRecord{
		{SequenceNumber: 1, ApplicantCode: "C3", Priority: ptrFloat(1), CompetitiveScore: "280", Position: ptrInt(1)},
		{SequenceNumber: 5, ApplicantCode: "X42", Priority: ptrFloat(4), CompetitiveScore: "250", ConsentFlag: "да", Position: ptrInt(2), IsTarget: true},
	}
	roster := admission.RankedRoster{Records: records}
	roster.Target = &roster.Records[1]
	return admission.CheckResult{
		URL:         "https://abit.example/list",
		Roster:      roster,
		TargetFound: true,
		Facts: admission.PageFacts{
			ProgramName: "Прикладная информатика", HasProgram: true,
			BudgetSeats: 25, HasBudgetSeat: true,
		},
	}
}

func TestSummaryWithTarget(t *testing.T) {
	t.Parallel()

	got := Summary(sampleResult())
	assert.Equal(t, "Бюджетных мест: 25; Всего в списке: 2; Твоё место: 2; Приоритет: 4", got)
}

func TestSummaryWithoutTarget(t *testing.T) {
	t.Parallel()

	res := sampleResult()
	res.Roster.Target = nil
	res.Facts.HasBudgetSeat = false

	got := Summary(res)
	assert.Equal(t, "Бюджетных мест: —; Всего в списке: 2; Твоё место: —; Приоритет: —", got)
}

func TestWriteSummaryOnly(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, New(&buf, Options{}).Write(sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "Направление: Прикладная информатика\n")
	assert.Contains(t, out, "Твоё место: 2")
	assert.NotContains(t, out, TargetPointer)
	assert.True(t, strings.HasSuffix(out, separator+"\n"))
}

func TestWriteWithTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, New(&buf, Options{ShowTable: true}).Write(sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "X42")
	assert.Contains(t, out, "C3")
	assert.Equal(t, 1, strings.Count(out, TargetPointer))
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, TargetPointer) {
			assert.Contains(t, line, "X42")
		}
	}
}

func TestWriteMissingProgram(t *testing.T) {
	t.Parallel()

	res := sampleResult()
	res.Facts.HasProgram = false
	var buf bytes.Buffer
	require.NoError(t, New(&buf, Options{}).Write(res))
	assert.Contains(t, buf.String(), "Направление: —\n")
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	res := admission.CheckResult{URL: "https://abit.example/broken", Err: admission.ErrNoTable}
	var buf bytes.Buffer
	require.NoError(t, New(&buf, Options{ShowTable: true}).Write(res))
	assert.Contains(t, buf.String(), "Ошибка: https://abit.example/broken: no table found in markup")
	assert.NotContains(t, buf.String(), "Твоё место")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestWritePropagatesIOError(t *testing.T) {
	t.Parallel()

	err := New(failingWriter{}, Options{}).Write(sampleResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write report")
}

func TestRenderRosterNilPriority(t *testing.T) {
	t.Parallel()

	roster := admission.RankedRoster{Records: []admission.ApplicantRecord{
		{SequenceNumber: 1, ApplicantCode: "A1", Position: ptrInt(1)},
	}}
	out := RenderRoster(roster)
	assert.Contains(t, out, "A1")
	assert.Contains(t, out, Missing)
}
