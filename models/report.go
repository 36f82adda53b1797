package models

import "time"

// SkipReason names the stage or filter that dropped a record.
type SkipReason string

const (
	SkipNone         SkipReason = ""
	SkipMalformed    SkipReason = "malformed"
	SkipMaxPrice     SkipReason = "max_price"
	SkipMinLotArea   SkipReason = "min_lot_area"
	SkipMinArea      SkipReason = "min_area"
	SkipMinBeds      SkipReason = "min_beds"
	SkipMinBaths     SkipReason = "min_baths"
	SkipPropertyType SkipReason = "property_type"

	// SkipDuplicate marks a listing already seen under an earlier region.
	SkipDuplicate SkipReason = "duplicate"
)

// Outcome is the per-record result of enrichment: either a Listing or a
// skip with the reason that caused it.
type Outcome struct {
	Index   int
	Listing *Listing
	Skip    SkipReason
	Detail  string
}

// Skipped reports whether the record was dropped.
func (o Outcome) Skipped() bool { return o.Listing == nil }

// Table is one named output batch: a header row followed by data rows in
// listing encounter order.
type Table struct {
	Name   string
	RunID  string
	Header []string
	Rows   [][]string
}

// Output table names.
const (
	TableForSale   = "ForSale"
	TableSoldComps = "Sold_Comps"
)

// RunReport summarises one pipeline invocation.
type RunReport struct {
	RunID       string
	DateScraped string
	StartedAt   time.Time
	FinishedAt  time.Time

	Regions []string

	// FailedRegions were requested but gave no data after all retries.
	FailedRegions []string

	ActiveIn   int
	ActiveKept int
	SoldIn     int
	SoldKept   int

	// Skips counts dropped records per named filter, keyed "<kind>/<reason>".
	Skips map[string]int

	Success bool
	Err     error
}

// AddSkip records one dropped record.
func (r *RunReport) AddSkip(kind Kind, reason SkipReason) {
	r.AddSkips(kind, reason, 1)
}

// AddSkips records n records dropped for the same reason.
func (r *RunReport) AddSkips(kind Kind, reason SkipReason, n int) {
	if n <= 0 {
		return
	}
	if r.Skips == nil {
		r.Skips = make(map[string]int)
	}
	r.Skips[string(kind)+"/"+string(reason)] += n
}

// Partial reports whether some requested regions are missing from the run.
func (r *RunReport) Partial() bool { return len(r.FailedRegions) > 0 }

// InsightReport holds the reviewer-facing summary printed after a run.
type InsightReport struct {
	Run          *RunReport
	WithComps    int
	WithKeywords int
	AvgMarginPct float64
	TopDeals     []*Listing
	ByPostalCode map[string]int
}
