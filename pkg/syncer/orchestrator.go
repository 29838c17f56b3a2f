// Package syncer drives synchronization runs: it walks the endpoint catalog
// in order, fetches, normalizes and writes each dataset, and aggregates
// per-endpoint outcomes into a run summary.
package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wedof-tools/sheetsync/pkg/errors"
	"github.com/wedof-tools/sheetsync/pkg/logger"
	"github.com/wedof-tools/sheetsync/pkg/normalize"
	"github.com/wedof-tools/sheetsync/pkg/source"
)

// Fetcher retrieves provider records. *source.Client implements it.
type Fetcher interface {
	FetchAll(ctx context.Context, ep source.Endpoint) ([]source.Record, error)
	Probe(ctx context.Context, ep source.Endpoint) error
}

// TableWriter replaces destination sheet contents. *sheets.Writer implements it.
type TableWriter interface {
	Replace(ctx context.Context, sheetName string, table *normalize.Table) error
	Ping(ctx context.Context) error
	SpreadsheetURL() string
}

// Result is the outcome of syncing one endpoint.
type Result struct {
	Endpoint string
	Sheet    string
	Rows     int
	Columns  int
	Duration time.Duration
	Err      error
}

// Succeeded reports whether the endpoint synced without error.
func (r Result) Succeeded() bool {
	return r.Err == nil
}

// RunSummary aggregates the per-endpoint results of one run.
type RunSummary struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Results   []Result
}

// Succeeded counts endpoints that synced cleanly.
func (s *RunSummary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Succeeded() {
			n++
		}
	}
	return n
}

// Failed counts endpoints whose sync errored.
func (s *RunSummary) Failed() int {
	return len(s.Results) - s.Succeeded()
}

// Status reduces the run to a single word: succeeded when every endpoint
// synced, failed when none did, degraded in between.
func (s *RunSummary) Status() string {
	switch {
	case len(s.Results) == 0 || s.Failed() == 0:
		return "succeeded"
	case s.Succeeded() == 0:
		return "failed"
	default:
		return "degraded"
	}
}

// Errors returns the per-endpoint failures, one line each.
func (s *RunSummary) Errors() []string {
	var lines []string
	for _, r := range s.Results {
		if r.Err != nil {
			lines = append(lines, fmt.Sprintf("%s: %v", r.Endpoint, r.Err))
		}
	}
	return lines
}

// ProbeResult is the outcome of one connectivity check.
type ProbeResult struct {
	Target string
	Err    error
}

// Orchestrator runs full synchronization passes over a fixed endpoint
// catalog. Endpoints are independent: one endpoint's failure never stops
// the others from syncing.
type Orchestrator struct {
	fetcher   Fetcher
	writer    TableWriter
	endpoints []source.Endpoint
	logger    *zap.Logger
}

// NewOrchestrator wires a fetcher and writer to an endpoint catalog.
func NewOrchestrator(fetcher Fetcher, writer TableWriter, endpoints []source.Endpoint, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		fetcher:   fetcher,
		writer:    writer,
		endpoints: endpoints,
		logger:    log.With(zap.String("component", "orchestrator")),
	}
}

// Run executes one full pass over the catalog, sequentially and in catalog
// order, and returns the summary. The returned error is non-nil only when
// the context was cancelled; endpoint failures live in the summary.
func (o *Orchestrator) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
	ctx = context.WithValue(ctx, logger.RunIDKey, summary.RunID)

	o.logger.Info("sync run started",
		zap.String("run_id", summary.RunID),
		zap.Int("endpoints", len(o.endpoints)),
		zap.String("spreadsheet", o.writer.SpreadsheetURL()))

	for _, ep := range o.endpoints {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(summary.StartedAt)
			return summary, errors.Wrap(err, errors.ErrorTypeTimeout, "run cancelled")
		}
		summary.Results = append(summary.Results, o.syncEndpoint(ctx, ep))
	}

	summary.Duration = time.Since(summary.StartedAt)
	o.logger.Info("sync run finished",
		zap.String("run_id", summary.RunID),
		zap.String("status", summary.Status()),
		zap.Int("succeeded", summary.Succeeded()),
		zap.Int("failed", summary.Failed()),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

// syncEndpoint mirrors one endpoint into its sheet: fetch every page,
// normalize, replace the sheet contents. Empty datasets leave the sheet
// untouched.
func (o *Orchestrator) syncEndpoint(ctx context.Context, ep source.Endpoint) Result {
	started := time.Now()
	ctx = context.WithValue(ctx, logger.EndpointKey, ep.Name)
	log := o.logger.With(logger.ContextFields(ctx)...)
	result := Result{Endpoint: ep.Name, Sheet: ep.SheetTitle()}

	records, err := o.fetcher.FetchAll(ctx, ep)
	if err != nil {
		log.Error("fetch failed", zap.Error(err))
		result.Err = err
		result.Duration = time.Since(started)
		return result
	}

	if len(records) == 0 {
		log.Warn("endpoint returned no records, sheet left unchanged")
		result.Duration = time.Since(started)
		return result
	}

	table := normalize.Normalize(records)
	result.Rows = table.RowCount()
	result.Columns = len(table.Header)

	if err := o.writer.Replace(ctx, result.Sheet, table); err != nil {
		log.Error("write failed", zap.Error(err))
		result.Err = err
		result.Duration = time.Since(started)
		return result
	}

	result.Duration = time.Since(started)
	log.Info("endpoint synced",
		zap.Int("rows", result.Rows),
		zap.Int("columns", result.Columns),
		zap.Duration("duration", result.Duration))
	return result
}

// TestConnections probes both sides without mutating anything: a single
// one-record request against the first catalog endpoint, and a metadata read
// of the destination spreadsheet.
func (o *Orchestrator) TestConnections(ctx context.Context) []ProbeResult {
	results := make([]ProbeResult, 0, 2)

	if len(o.endpoints) == 0 {
		results = append(results, ProbeResult{
			Target: "wedof",
			Err:    errors.New(errors.ErrorTypeConfig, "endpoint catalog is empty"),
		})
	} else {
		results = append(results, ProbeResult{
			Target: "wedof",
			Err:    o.fetcher.Probe(ctx, o.endpoints[0]),
		})
	}

	results = append(results, ProbeResult{
		Target: "google_sheets",
		Err:    o.writer.Ping(ctx),
	})

	return results
}

// SpreadsheetURL exposes the destination URL for operator-facing output.
func (o *Orchestrator) SpreadsheetURL() string {
	return o.writer.SpreadsheetURL()
}

// Describe renders the catalog as one line per endpoint for CLI listing.
func Describe(endpoints []source.Endpoint) string {
	var b strings.Builder
	for _, ep := range endpoints {
		fmt.Fprintf(&b, "%-24s %-32s -> %s\n", ep.Name, ep.Path, ep.SheetTitle())
	}
	return b.String()
}
