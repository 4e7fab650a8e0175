package aotgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/aotgraph/aotgraph/internal/diag"
	"github.com/aotgraph/aotgraph/internal/extract"
	"github.com/aotgraph/aotgraph/internal/ir"
	"github.com/aotgraph/aotgraph/internal/source"
	"github.com/aotgraph/aotgraph/internal/store"
)

// ErrAllSourcesFailed is returned by Ingest when no input path could be
// resolved. Partial failure is not an error: the run report carries the
// per-source outcomes either way.
var ErrAllSourcesFailed = errors.New("every input source failed")

// Engine orchestrates the ingestion pipeline and provides query access to
// the persisted graph.
type Engine struct {
	store         *store.Store
	logger        *slog.Logger
	stagingDir    string
	keepExtracted bool
	workers       int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithStagingDir sets where zip bundles are extracted. Empty means the
// system temp directory.
func WithStagingDir(dir string) Option {
	return func(e *Engine) { e.stagingDir = dir }
}

// WithKeepExtracted leaves extracted bundle contents on disk after the run
// instead of removing them.
func WithKeepExtracted(keep bool) Option {
	return func(e *Engine) { e.keepExtracted = keep }
}

// WithWorkers sets the parse and extraction worker count. Defaults to the
// number of CPUs.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// New creates an Engine backed by a SQLite database at dbPath, creating
// the schema when it does not exist yet.
func New(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("aotgraph: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("aotgraph: migrate: %w", err)
	}

	e := &Engine{
		store:   s,
		logger:  slog.Default(),
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

// Ingest runs the full pipeline for the given input paths: resolve, parse,
// build, extract, reconcile. Each input is isolated; a missing path or
// corrupt bundle fails only that source. The returned report is non-nil
// whenever the pipeline ran, including the all-sources-failed case.
func (e *Engine) Ingest(ctx context.Context, paths []string) (*RunReport, error) {
	ingestMetrics.init()
	start := time.Now()
	runID := uuid.NewString()

	report := &RunReport{RunID: runID, StartedAt: start}
	e.logger.Info("ingest.run.start", "run_id", runID, "sources", len(paths))

	resolver := source.NewResolver(source.Options{
		StagingDir:    e.stagingDir,
		KeepExtracted: e.keepExtracted,
	}, e.logger)
	defer resolver.Close()

	docs := e.resolveSources(resolver, paths, report)
	if report.AllSourcesFailed() {
		report.Duration = time.Since(start)
		recordRun(report, false)
		e.logger.Error("ingest.run.failed", "run_id", runID, "failed_sources", report.FailedSources())
		return report, ErrAllSourcesFailed
	}

	parsed := e.parseDocuments(docs, report)

	snap := ir.Build(parsed)
	report.Diagnostics = append(report.Diagnostics, snap.Diagnostics...)
	report.Classes = len(snap.Classes)
	report.Tables = len(snap.Tables)
	for _, cls := range snap.Classes {
		report.Methods += len(cls.Methods)
	}
	for _, tbl := range snap.Tables {
		report.Fields += len(tbl.Fields)
	}

	extractStart := time.Now()
	report.Diagnostics = append(report.Diagnostics, extract.Run(snap, e.workers)...)
	ingestMetrics.extractDuration.Observe(time.Since(extractStart).Seconds())

	reconcileStart := time.Now()
	stats, reconcileDiags, err := e.store.ApplySnapshot(ctx, snap, runID)
	if err != nil {
		report.Duration = time.Since(start)
		recordRun(report, false)
		return report, fmt.Errorf("aotgraph: reconcile: %w", err)
	}
	ingestMetrics.reconcileDuration.Observe(time.Since(reconcileStart).Seconds())

	report.Stats = *stats
	report.Diagnostics = append(report.Diagnostics, reconcileDiags...)
	report.DiagnosticCounts = diag.CountByKind(report.Diagnostics)
	report.Duration = time.Since(start)

	recordRun(report, true)
	e.logger.Info("ingest.run.done",
		"run_id", runID,
		"documents", report.DocumentsParsed,
		"classes", report.Classes,
		"methods", report.Methods,
		"tables", report.Tables,
		"fields", report.Fields,
		"nodes_created", stats.NodesCreated,
		"nodes_updated", stats.NodesUpdated,
		"nodes_retired", stats.NodesRetired,
		"edges_added", stats.EdgesAdded,
		"edges_removed", stats.EdgesRemoved,
		"diagnostics", len(report.Diagnostics),
		"duration", report.Duration,
	)
	return report, nil
}

// resolveSources expands each input path separately so one bad input never
// hides documents from the others. Duplicate documents across inputs are
// kept once.
func (e *Engine) resolveSources(resolver *source.Resolver, paths []string, report *RunReport) []source.Document {
	var docs []source.Document
	seen := make(map[string]bool)

	for _, path := range paths {
		resolved, errs := resolver.Resolve([]string{path})
		sr := SourceReport{Path: path}
		if len(errs) > 0 {
			sr.Err = errs[0].Err.Error()
		}
		for _, d := range resolved {
			if seen[d.Path] {
				continue
			}
			seen[d.Path] = true
			docs = append(docs, d)
			sr.Documents++
		}
		report.Sources = append(report.Sources, sr)
	}
	return docs
}
