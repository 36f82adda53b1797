package services

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"flipscout/models"
	"flipscout/utils"
)

// CompEstimator finds sold comparables around each active listing and
// estimates the renovation margin.
type CompEstimator struct {
	radiusMiles float64
	workers     int
	logger      *utils.Logger
}

// NewCompEstimator creates a CompEstimator. With workers > 1 listings are
// processed concurrently; results do not depend on the worker count.
func NewCompEstimator(radiusMiles float64, workers int, logger *utils.Logger) *CompEstimator {
	if workers < 1 {
		workers = 1
	}
	return &CompEstimator{radiusMiles: radiusMiles, workers: workers, logger: logger}
}

// Estimate fills Comps and EstMarginPct on every active listing. Sold
// listings are only read.
func (c *CompEstimator) Estimate(ctx context.Context, active, sold []*models.Listing) error {
	if len(active) == 0 {
		return nil
	}
	idx := NewGeohashIndex(sold)

	apply := func(l *models.Listing) {
		l.Comps = c.Comps(l, sold, idx)
		l.EstMarginPct = EstimateMargin(l.Price, l.Area, l.Comps.AvgPricePerArea)
	}

	if c.workers == 1 {
		for _, l := range active {
			apply(l)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.workers)
		for _, l := range active {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				apply(l)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("estimate comps: %w", err)
		}
	}

	withComps := 0
	for _, l := range active {
		if l.Comps.Count > 0 {
			withComps++
		}
	}
	c.logger.Info("[comps] %d of %d active listings have comps within %.2f mi (pool: %d sold)",
		withComps, len(active), c.radiusMiles, len(sold))
	return nil
}

// Comps aggregates the sold listings within the radius of l. A listing
// without both coordinates, or with no sold record in range, gets the zero
// CompResult.
func (c *CompEstimator) Comps(l *models.Listing, sold []*models.Listing, idx CompIndex) models.CompResult {
	if !l.HasGeo() {
		return models.CompResult{}
	}

	var count int
	var total float64
	for _, i := range idx.Candidates(l.Latitude, l.Longitude, c.radiusMiles) {
		s := sold[i]
		if DistanceMiles(l.Latitude, l.Longitude, s.Latitude, s.Longitude) <= c.radiusMiles {
			count++
			total += s.PricePerArea
		}
	}
	if count == 0 {
		return models.CompResult{}
	}

	avg := roundTo(total/float64(count), 2)
	return models.CompResult{
		Count:           count,
		AvgPricePerArea: avg,
		Summary:         fmt.Sprintf("%d comps @ $%.2f/sqft", count, avg),
	}
}

// EstimateMargin is the percentage gain from reselling at the comparable
// price per area: ((avg*area - price) / price) * 100, rounded to one
// decimal. It returns nil when price is not positive or the result is not
// finite.
func EstimateMargin(price, area, avgPricePerArea float64) *float64 {
	if price <= 0 {
		return nil
	}
	m := roundTo(((avgPricePerArea*area-price)/price)*100, 1)
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return nil
	}
	return &m
}
