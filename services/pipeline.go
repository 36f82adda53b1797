package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"flipscout/config"
	"flipscout/models"
	"flipscout/storage"
	"flipscout/utils"
)

// DateLayout is the format of the date_scraped column.
const DateLayout = "2006-01-02"

// Batch is the merged output of the ingestion adapter. The duplicate counts
// and failed regions describe records dropped before the pipeline saw them.
type Batch struct {
	Regions []string
	Active  []models.RawRecord
	Sold    []models.RawRecord

	FailedRegions    []string
	ActiveDuplicates int
	SoldDuplicates   int
}

// Result is what one pipeline pass produced.
type Result struct {
	Active []*models.Listing
	Sold   []*models.Listing
	Report *models.RunReport
}

// Pipeline runs normalize → enrich → comps on one batch and publishes the
// two output tables.
type Pipeline struct {
	normalizer *Normalizer
	criteria   *Criteria
	estimator  *CompEstimator
	logger     *utils.Logger

	now func() time.Time
}

// NewPipeline builds a pipeline from the screening and run settings.
func NewPipeline(cfg *config.Config, logger *utils.Logger) (*Pipeline, error) {
	criteria, err := NewCriteria(cfg.Screening)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		normalizer: NewNormalizer(logger),
		criteria:   criteria,
		estimator:  NewCompEstimator(cfg.Screening.RadiusMiles, cfg.Run.CompWorkers, logger),
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Process runs every core stage. The returned report is not yet marked
// successful; Publish does that once both tables are stored.
func (p *Pipeline) Process(ctx context.Context, in Batch) (*Result, error) {
	started := p.now()
	report := &models.RunReport{
		RunID:       uuid.NewString(),
		DateScraped: started.Format(DateLayout),
		StartedAt:   started,
		Regions:     append([]string(nil), in.Regions...),
		ActiveIn:    len(in.Active) + in.ActiveDuplicates,
		SoldIn:      len(in.Sold) + in.SoldDuplicates,
		Skips:       make(map[string]int),
	}
	report.FailedRegions = append(report.FailedRegions, in.FailedRegions...)
	report.AddSkips(models.KindActive, models.SkipDuplicate, in.ActiveDuplicates)
	report.AddSkips(models.KindSold, models.SkipDuplicate, in.SoldDuplicates)

	p.logger.Info("[pipeline] run %s: %d active, %d sold raw records from %d regions",
		report.RunID, report.ActiveIn, report.SoldIn, len(report.Regions))
	if report.Partial() {
		p.logger.Warn("[pipeline] run %s is missing regions: %s",
			report.RunID, strings.Join(report.FailedRegions, ", "))
	}
	p.logColumns("active", in.Active)
	p.logColumns("sold", in.Sold)

	active := p.normalizer.Normalize(in.Active)
	sold := p.normalizer.Normalize(in.Sold)

	enricher := NewEnricher(p.criteria, report.DateScraped, p.logger)
	res := &Result{Report: report}
	res.Active = collect(enricher.EnrichActive(active), models.KindActive, report)
	res.Sold = collect(enricher.EnrichSold(sold), models.KindSold, report)
	report.ActiveKept = len(res.Active)
	report.SoldKept = len(res.Sold)

	if err := p.estimator.Estimate(ctx, res.Active, res.Sold); err != nil {
		report.Err = err
		report.FinishedAt = p.now()
		return res, err
	}
	return res, nil
}

// Publish appends ForSale and Sold_Comps. Each table is written even when it
// has no rows so the header marks the run. Both tables are encoded before
// the first append, so an encoding error leaves the sink untouched.
func (p *Pipeline) Publish(ctx context.Context, w storage.TableWriter, res *Result) error {
	report := res.Report
	defer func() { report.FinishedAt = p.now() }()

	sources := []struct {
		name     string
		header   []string
		listings []*models.Listing
	}{
		{models.TableForSale, ForSaleHeader, res.Active},
		{models.TableSoldComps, SoldHeader, res.Sold},
	}

	tables := make([]models.Table, 0, len(sources))
	for _, src := range sources {
		table, err := EncodeTable(src.name, report.RunID, src.header, src.listings)
		if err != nil {
			return p.fail(report, &storage.AppendError{Table: src.name, Rows: len(src.listings), Err: err})
		}
		tables = append(tables, table)
	}

	p.logger.Warn("[pipeline] sink is append-only; rerunning the same day duplicates rows")
	for _, table := range tables {
		if err := w.Append(ctx, table); err != nil {
			return p.fail(report, &storage.AppendError{Table: table.Name, Rows: len(table.Rows), Err: err})
		}
		p.logger.Info("[pipeline] appended %d rows to %s", len(table.Rows), table.Name)
	}

	report.Success = true
	return nil
}

// Run is Process followed by Publish. With a nil writer nothing is stored
// and a successful pass is still reported as a success.
func (p *Pipeline) Run(ctx context.Context, in Batch, w storage.TableWriter) (*Result, error) {
	res, err := p.Process(ctx, in)
	if err != nil {
		return res, err
	}
	if w == nil {
		p.logger.Info("[pipeline] dry run, skipping sink")
		res.Report.Success = true
		res.Report.FinishedAt = p.now()
		return res, nil
	}
	return res, p.Publish(ctx, w, res)
}

func (p *Pipeline) fail(report *models.RunReport, err error) error {
	report.Success = false
	report.Err = err
	p.logger.Error("[pipeline] %v", err)
	return err
}

func (p *Pipeline) logColumns(kind string, batch []models.RawRecord) {
	if len(batch) == 0 {
		return
	}
	seen := make(map[string]struct{})
	for _, rec := range batch {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	p.logger.Debug("[pipeline] raw %s columns: %s", kind, strings.Join(cols, ", "))
}

func collect(outcomes []models.Outcome, kind models.Kind, report *models.RunReport) []*models.Listing {
	kept := make([]*models.Listing, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Skipped() {
			report.AddSkip(kind, o.Skip)
			continue
		}
		kept = append(kept, o.Listing)
	}
	return kept
}

// SkipSummary renders the skip counters in a stable order, e.g.
// "active/max_price=2, active/min_beds=1".
func SkipSummary(skips map[string]int) string {
	if len(skips) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(skips))
	for k := range skips {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, skips[k])
	}
	return strings.Join(parts, ", ")
}
