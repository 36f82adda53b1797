// Package scraper fetches raw active and sold listings per region code and
// merges them into the two batches the pipeline consumes.
package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"flipscout/models"
	"flipscout/services"
	"flipscout/utils"
)

// Source fetches raw listing records for one region code.
type Source interface {
	Name() string
	Active(ctx context.Context, region string) ([]models.RawRecord, error)
	Sold(ctx context.Context, region string) ([]models.RawRecord, error)
}

// Options tunes the fan-out over regions.
type Options struct {
	MaxConcurrency int
	Interval       time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
}

// Harvest is the merged output of all regions.
type Harvest struct {
	Regions []string
	Active  []models.RawRecord
	Sold    []models.RawRecord

	// Failed lists regions whose fetch gave up after all retries.
	Failed []string

	// ActiveDuplicates and SoldDuplicates count listings dropped because an
	// earlier region already had them.
	ActiveDuplicates int
	SoldDuplicates   int
}

// Batch converts the harvest into pipeline input, carrying the failed
// regions and duplicate counts so the run report accounts for them.
func (h *Harvest) Batch() services.Batch {
	return services.Batch{
		Regions:          h.Regions,
		Active:           h.Active,
		Sold:             h.Sold,
		FailedRegions:    h.Failed,
		ActiveDuplicates: h.ActiveDuplicates,
		SoldDuplicates:   h.SoldDuplicates,
	}
}

type regionResult struct {
	active []models.RawRecord
	sold   []models.RawRecord
	err    error
}

// Collect fetches every region through src. Regions run concurrently on a
// rate-limited pool but are merged in the order given. Listings that
// appear under more than one region are kept once, at their first
// position. A region that keeps failing is logged and left out; Collect
// only fails when ctx is cancelled or every region failed.
func Collect(ctx context.Context, src Source, regions []string, opts Options, logger *utils.Logger) (*Harvest, error) {
	pool := utils.NewWorkerPool(opts.MaxConcurrency, opts.Interval)
	retry := &utils.RetryConfig{
		MaxAttempts: opts.MaxRetries,
		BaseDelay:   opts.RetryDelay,
		Logger:      logger,
	}

	results := make([]regionResult, len(regions))
	var mu sync.Mutex
	done := 0

	logger.Info("[%s] Collecting %d regions (concurrency %d)", src.Name(), len(regions), opts.MaxConcurrency)
	for i, region := range regions {
		pool.Submit(ctx, func(ctx context.Context) {
			res := fetchRegion(ctx, src, region, retry)
			mu.Lock()
			results[i] = res
			done++
			logger.Info("[%s] Region %s done (%d/%d): %d active, %d sold",
				src.Name(), region, done, len(regions), len(res.active), len(res.sold))
			mu.Unlock()
		})
	}
	pool.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("collect cancelled: %w", err)
	}

	h := &Harvest{Regions: append([]string(nil), regions...)}
	normalizer := services.NewNormalizer(logger)
	activeSeen, soldSeen := utils.NewURLSet(), utils.NewURLSet()

	for i, res := range results {
		if res.err != nil {
			logger.Error("[%s] Region %s failed: %v", src.Name(), regions[i], res.err)
			h.Failed = append(h.Failed, regions[i])
			continue
		}
		h.Active = appendUnique(h.Active, res.active, activeSeen, normalizer, &h.ActiveDuplicates)
		h.Sold = appendUnique(h.Sold, res.sold, soldSeen, normalizer, &h.SoldDuplicates)
	}

	if h.ActiveDuplicates+h.SoldDuplicates > 0 {
		logger.Info("[%s] Dropped %d active and %d sold listings repeated across regions",
			src.Name(), h.ActiveDuplicates, h.SoldDuplicates)
	}
	if len(regions) > 0 && len(h.Failed) == len(regions) {
		return h, fmt.Errorf("all %d regions failed: %s", len(regions), strings.Join(h.Failed, ", "))
	}
	return h, nil
}

func fetchRegion(ctx context.Context, src Source, region string, retry *utils.RetryConfig) regionResult {
	var res regionResult
	res.err = retry.Do(ctx, src.Name()+" active "+region, func(ctx context.Context) error {
		recs, err := src.Active(ctx, region)
		if err != nil {
			return err
		}
		res.active = recs
		return nil
	})
	if res.err != nil {
		return res
	}
	res.err = retry.Do(ctx, src.Name()+" sold "+region, func(ctx context.Context) error {
		recs, err := src.Sold(ctx, region)
		if err != nil {
			return err
		}
		res.sold = recs
		return nil
	})
	return res
}

// appendUnique appends recs to dst, skipping links already seen. Records
// without a link are always kept.
func appendUnique(dst, recs []models.RawRecord, seen *utils.URLSet, n *services.Normalizer, dupes *int) []models.RawRecord {
	for _, rec := range recs {
		link, _ := n.Value(rec, models.FieldLink).(string)
		link = strings.TrimSpace(link)
		if link != "" && !seen.Add(link) {
			*dupes++
			continue
		}
		dst = append(dst, rec)
	}
	return dst
}
