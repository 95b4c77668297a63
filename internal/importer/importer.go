// Package importer normalizes the Funabashi disaster facility CSV datasets
// into Place records.
//
// Three datasets are imported, always in this order:
//
//	hinanjo       避難所              designated shelters
//	hinanbasyo    避難場所            designated emergency evacuation sites
//	kitakukonnan  帰宅困難者支援施設  stranded commuter support facilities
//
// Header names differ between (and within) the published files, so every
// field is looked up through an ordered list of candidate headers with
// [ResolveRowKey]. Numeric columns degrade to nil instead of failing the row;
// an unparseable capacity is kept in Notes so no information is lost.
//
// All records of a run share one SyncedAt timestamp. A run optionally deletes
// every existing record first; this is not transactional, and a run that stops
// on a missing file keeps the sources imported before it.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hinan-bknd/internal/models"
	"hinan-bknd/internal/observability"
	"hinan-bknd/internal/source"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// ErrMissingFile is returned when an input file does not exist.
var ErrMissingFile = errors.New("input file not found")

// Store is the persistence the importer writes to.
type Store interface {
	DeleteAll(ctx context.Context) (int, error)
	Create(ctx context.Context, place *models.Place) error
	Count(ctx context.Context) (int, error)
}

// Paths locates the three input files. Each may be a local path or s3://bucket/key.
type Paths struct {
	Shelter         string `json:"hinanjo"`
	EvacuationSite  string `json:"hinanbasyo"`
	StrandedSupport string `json:"kitakukonnan"`
}

// Validate requires all three paths.
func (p Paths) Validate() error {
	var missing []string
	if p.Shelter == "" {
		missing = append(missing, models.SourceShelter)
	}
	if p.EvacuationSite == "" {
		missing = append(missing, models.SourceEvacuationSite)
	}
	if p.StrandedSupport == "" {
		missing = append(missing, models.SourceStrandedSupport)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing input path for %v", missing)
	}
	return nil
}

// SourceResult is the outcome for one dataset.
type SourceResult struct {
	Source   string `json:"source"`
	Category string `json:"category"`
	Path     string `json:"path"`
	Created  int    `json:"created"`
	Skipped  int    `json:"skipped"`
}

// Report summarizes an import run.
type Report struct {
	SyncedAt  time.Time      `json:"synced_at"`
	Truncated bool           `json:"truncated"`
	Deleted   int            `json:"deleted"`
	Sources   []SourceResult `json:"sources"`
	Total     int            `json:"total"`
	// Partial is set when the run stopped after committing some sources.
	Partial bool `json:"partial"`
}

// Created sums the records created across sources.
func (r *Report) Created() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Created
	}
	return n
}

type step struct {
	source    string
	category  string
	path      string
	normalize Normalizer
}

// Importer runs the three-source CSV import.
type Importer struct {
	store    Store
	opener   source.Opener
	logr     *zap.Logger
	clock    clockwork.Clock
	metrics  *observability.Metrics
	encoding string
}

// Option customizes an Importer.
type Option func(*Importer)

// WithClock sets the time source for the run's sync timestamp.
func WithClock(c clockwork.Clock) Option {
	return func(im *Importer) { im.clock = c }
}

// WithMetrics records run outcomes and row counts.
func WithMetrics(m *observability.Metrics) Option {
	return func(im *Importer) { im.metrics = m }
}

// WithEncoding sets the input text encoding ("utf-8" or "shift_jis").
func WithEncoding(enc string) Option {
	return func(im *Importer) { im.encoding = enc }
}

// New creates an Importer writing to store and reading through opener.
func New(store Store, opener source.Opener, logr *zap.Logger, opts ...Option) *Importer {
	im := &Importer{
		store:    store,
		opener:   opener,
		logr:     logr,
		clock:    clockwork.NewRealClock(),
		encoding: "utf-8",
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Run imports the three datasets. With truncate, every stored place is
// deleted first. The returned report is non-nil even when err is not, and
// reflects what was committed before the failure.
func (im *Importer) Run(ctx context.Context, paths Paths, truncate bool) (*Report, error) {
	start := im.clock.Now()
	report := &Report{Truncated: truncate}

	if err := paths.Validate(); err != nil {
		im.observeRun("error")
		return report, err
	}

	if truncate {
		deleted, err := im.store.DeleteAll(ctx)
		if err != nil {
			im.observeRun("error")
			return report, fmt.Errorf("truncate places: %w", err)
		}
		report.Deleted = deleted
		im.logr.Warn("all place records deleted (truncate)", zap.Int("deleted", deleted))
	}

	syncedAt := im.clock.Now().UTC()
	report.SyncedAt = syncedAt

	steps := []step{
		{models.SourceShelter, models.CategoryShelter, paths.Shelter, NormalizeShelter},
		{models.SourceEvacuationSite, models.CategoryEvacuationSite, paths.EvacuationSite, NormalizeEvacuationSite},
		{models.SourceStrandedSupport, models.CategoryStrandedSupport, paths.StrandedSupport, NormalizeStrandedSupport},
	}

	for _, st := range steps {
		res, err := im.importSource(ctx, st, syncedAt)
		if res != nil {
			report.Sources = append(report.Sources, *res)
		}
		if err != nil {
			report.Partial = report.Created() > 0 || truncate
			if errors.Is(err, ErrMissingFile) {
				im.observeRun("missing_file")
			} else {
				im.observeRun("error")
			}
			im.logr.Error("import aborted",
				zap.String("source", st.source),
				zap.Int("committed", report.Created()),
				zap.Error(err))
			if total, cerr := im.store.Count(ctx); cerr == nil {
				report.Total = total
				if im.metrics != nil {
					im.metrics.PlaceRecords.Set(float64(total))
				}
			}
			return report, err
		}
	}

	total, err := im.store.Count(ctx)
	if err != nil {
		im.observeRun("error")
		return report, fmt.Errorf("count places: %w", err)
	}
	report.Total = total

	im.observeRun("success")
	if im.metrics != nil {
		im.metrics.ImportDuration.Observe(im.clock.Since(start).Seconds())
		im.metrics.LastImportTimestamp.Set(float64(syncedAt.Unix()))
		im.metrics.PlaceRecords.Set(float64(total))
	}
	im.logr.Info("import completed",
		zap.Int("created", report.Created()),
		zap.Int("total", total),
		zap.Time("synced_at", syncedAt))
	return report, nil
}

func (im *Importer) importSource(ctx context.Context, st step, syncedAt time.Time) (*SourceResult, error) {
	rc, err := im.opener.Open(ctx, st.path)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, st.path)
		}
		return nil, fmt.Errorf("open %s input: %w", st.source, err)
	}
	defer func() { _ = rc.Close() }()

	res := &SourceResult{Source: st.source, Category: st.category, Path: st.path}

	onBad := func(rowErr *RowError) {
		res.Skipped++
		im.logr.Warn("skipping malformed row",
			zap.String("source", st.source),
			zap.Int("line", rowErr.Line),
			zap.Error(rowErr.Err))
	}

	err = ReadRows(rc, im.encoding, func(row Row) error {
		place := st.normalize(row, syncedAt)
		if err := im.store.Create(ctx, &place); err != nil {
			return fmt.Errorf("create %s place %q: %w", st.source, place.Name, err)
		}
		res.Created++
		return nil
	}, onBad)

	if im.metrics != nil {
		im.metrics.RowsImported.WithLabelValues(st.source).Add(float64(res.Created))
		im.metrics.RowsSkipped.WithLabelValues(st.source).Add(float64(res.Skipped))
	}

	if err != nil {
		return res, fmt.Errorf("import %s: %w", st.source, err)
	}

	im.logr.Info("source imported",
		zap.String("source", st.source),
		zap.String("category", st.category),
		zap.Int("created", res.Created),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

func (im *Importer) observeRun(outcome string) {
	if im.metrics != nil {
		im.metrics.ImportRuns.WithLabelValues(outcome).Inc()
	}
}
