// Package worker runs the per-URL check pipeline: acquire markup, extract the
// ranking table, rank the applicant, and report.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/admissions-rank/internal/admission"
	"github.com/JakeFAU/admissions-rank/internal/logging"
	"github.com/JakeFAU/admissions-rank/internal/metrics"
	"github.com/JakeFAU/admissions-rank/internal/parser"
	"github.com/JakeFAU/admissions-rank/internal/ranking"
)

// Detector decides whether statically fetched markup needs a browser render.
type Detector interface {
	ShouldPromote(markup string) bool
}

// Config controls Worker behavior.
type Config struct {
	ApplicantID string
	StaticProbe bool
}

// Worker checks URLs one after another.
type Worker struct {
	pages    admission.PageFetcher
	static   admission.StaticFetcher
	detector Detector
	facts    admission.FactExtractor
	reporter admission.Reporter
	ids      admission.IDGenerator
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Worker. static and detector may be nil when the static
// probe is disabled.
func New(
	pages admission.PageFetcher,
	static admission.StaticFetcher,
	detector Detector,
	facts admission.FactExtractor,
	reporter admission.Reporter,
	ids admission.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if facts == nil {
		facts = parser.NewPatternFacts()
	}
	if static == nil || detector == nil {
		cfg.StaticProbe = false
	}
	return &Worker{
		pages:    pages,
		static:   static,
		detector: detector,
		facts:    facts,
		reporter: reporter,
		ids:      ids,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run checks every URL in order and returns one result per URL. A failing URL
// never stops the ones after it; a canceled ctx marks the rest as canceled.
func (w *Worker) Run(ctx context.Context, urls []string) []admission.CheckResult {
	runID := w.newRunID()
	results := make([]admission.CheckResult, 0, len(urls))
	for _, url := range urls {
		var res admission.CheckResult
		if err := ctx.Err(); err != nil {
			res = admission.CheckResult{RunID: runID, URL: url, Err: fmt.Errorf("check %s: %w", url, err)}
			metrics.ObserveCheck(url, metrics.CheckCanceled)
		} else {
			res = w.Check(ctx, runID, url)
		}
		results = append(results, res)
		if w.reporter != nil {
			if err := w.reporter.Write(res); err != nil {
				w.logger.Error("report write failed", zap.String("url", url), zap.Error(err))
			}
		}
	}
	return results
}

// Check runs the pipeline for a single URL.
func (w *Worker) Check(ctx context.Context, runID, url string) admission.CheckResult {
	logger := logging.Check(w.logger, runID, url)
	res := admission.CheckResult{RunID: runID, URL: url}

	page, err := w.acquire(ctx, url, logger)
	if err != nil {
		res.Err = fmt.Errorf("fetch %s: %w", url, err)
		status := metrics.CheckFetchFailed
		if errors.Is(err, context.Canceled) {
			status = metrics.CheckCanceled
		}
		metrics.ObserveCheck(url, status)
		logger.Error("fetch failed", zap.Error(err))
		return res
	}
	res.Page = page

	table, err := parser.ExtractTable(page.Markup)
	if err != nil {
		return w.extractFailed(res, err, logger)
	}
	records, err := parser.ToRecords(table)
	if err != nil {
		return w.extractFailed(res, err, logger)
	}
	logger.Debug("table extracted", zap.Int("rows", len(records)), zap.Strings("columns", table.Columns))

	res.Roster = ranking.NewFilter(logger).Rank(records, w.cfg.ApplicantID)
	res.TargetFound = res.Roster.Target != nil
	res.Facts = w.extractFacts(page.Markup)

	status := metrics.CheckOK
	if !res.TargetFound {
		status = metrics.CheckTargetMissing
	}
	metrics.ObserveCheck(url, status)
	logger.Info("check complete",
		zap.Int("roster_size", len(res.Roster.Records)),
		zap.Bool("target_found", res.TargetFound),
		zap.Int("attempts", page.Attempts),
		zap.Bool("static", page.Static),
	)
	return res
}

// acquire tries the static probe first when enabled and falls back to the
// supervised browser fetch.
func (w *Worker) acquire(ctx context.Context, url string, logger *zap.Logger) (admission.RawPage, error) {
	if w.cfg.StaticProbe {
		markup, err := w.static.Fetch(ctx, url)
		switch {
		case err != nil:
			logger.Debug("static probe failed, using browser", zap.Error(err))
			metrics.ObserveStaticProbe(false)
		case w.detector.ShouldPromote(markup):
			logger.Debug("static markup lacks ranking table, using browser")
			metrics.ObserveStaticProbe(false)
		default:
			metrics.ObserveStaticProbe(true)
			return admission.RawPage{SourceURL: url, Markup: markup, Static: true}, nil
		}
		if err := ctx.Err(); err != nil {
			return admission.RawPage{}, err
		}
	}
	if w.pages == nil {
		return admission.RawPage{}, errors.New("no page fetcher configured")
	}
	return w.pages.FetchPage(ctx, url)
}

func (w *Worker) extractFailed(res admission.CheckResult, err error, logger *zap.Logger) admission.CheckResult {
	res.Err = fmt.Errorf("extract %s: %w", res.URL, err)
	metrics.ObserveCheck(res.URL, metrics.CheckExtractFailed)
	logger.Error("extraction failed", zap.Error(err))
	return res
}

func (w *Worker) extractFacts(markup string) admission.PageFacts {
	var facts admission.PageFacts
	facts.ProgramName, facts.HasProgram = w.facts.ExtractHeading(markup)
	facts.BudgetSeats, facts.HasBudgetSeat = w.facts.ExtractSeatCount(markup)
	return facts
}

func (w *Worker) newRunID() string {
	if w.ids == nil {
		return ""
	}
	id, err := w.ids.NewID()
	if err != nil {
		w.logger.Warn("run id generation failed", zap.Error(err))
		return ""
	}
	return id
}

// AllFailed reports whether every result carries an error.
func AllFailed(results []admission.CheckResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.Err == nil {
			return false
		}
	}
	return true
}
