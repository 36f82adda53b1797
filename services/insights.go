package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"flipscout/models"
	"flipscout/utils"
)

type InsightService struct {
	topN   int
	logger *utils.Logger
}

// NewInsightService creates a service that keeps the topN best deals.
func NewInsightService(topN int, logger *utils.Logger) *InsightService {
	if topN < 0 {
		topN = 0
	}
	return &InsightService{topN: topN, logger: logger}
}

// Generate summarises the screened active listings of a run.
func (s *InsightService) Generate(res *Result) *models.InsightReport {
	report := &models.InsightReport{
		Run:          res.Report,
		ByPostalCode: make(map[string]int),
	}

	var deals []*models.Listing
	var marginTotal float64
	for _, l := range res.Active {
		if l.PostalCode != "" {
			report.ByPostalCode[l.PostalCode]++
		}
		if l.FixerKeywords != "" {
			report.WithKeywords++
		}
		if l.Comps.Count > 0 {
			report.WithComps++
			if l.EstMarginPct != nil {
				deals = append(deals, l)
				marginTotal += *l.EstMarginPct
			}
		}
	}

	if len(deals) > 0 {
		report.AvgMarginPct = roundTo(marginTotal/float64(len(deals)), 1)
	}

	// Best margin first; ties keep encounter order.
	sort.SliceStable(deals, func(i, j int) bool {
		return *deals[i].EstMarginPct > *deals[j].EstMarginPct
	})
	if len(deals) > s.topN {
		deals = deals[:s.topN]
	}
	report.TopDeals = deals

	s.logger.Debug("[insights] %d with comps, %d with keywords, %d top deals",
		report.WithComps, report.WithKeywords, len(report.TopDeals))
	return report
}

// Render formats the report as plain-text tables.
func (s *InsightService) Render(r *models.InsightReport) string {
	var b strings.Builder

	if run := r.Run; run != nil {
		status := "ok"
		switch {
		case !run.Success:
			status = "FAILED"
		case run.Partial():
			status = "partial"
		}
		failed := "none"
		if run.Partial() {
			failed = strings.Join(run.FailedRegions, ", ")
		}
		overview := newTable()
		overview.SetTitle("Run " + run.RunID)
		overview.AppendRows([]table.Row{
			{"Date scraped", run.DateScraped},
			{"Regions", strings.Join(run.Regions, ", ")},
			{"Failed regions", failed},
			{"Active kept", fmt.Sprintf("%d / %d", run.ActiveKept, run.ActiveIn)},
			{"Sold kept", fmt.Sprintf("%d / %d", run.SoldKept, run.SoldIn)},
			{"Skipped", SkipSummary(run.Skips)},
			{"With comps", r.WithComps},
			{"With fixer keywords", r.WithKeywords},
			{"Avg est. margin", fmt.Sprintf("%.1f%%", r.AvgMarginPct)},
			{"Status", status},
		})
		b.WriteString(overview.Render())
		b.WriteString("\n")
	}

	deals := newTable()
	deals.SetTitle("Top deals by estimated margin")
	deals.AppendHeader(table.Row{"#", "Address", "Zip", "Price", "$/sqft", "Comps", "Margin", "Keywords"})
	if len(r.TopDeals) == 0 {
		deals.AppendRow(table.Row{"", "no listing with comps", "", "", "", "", "", ""})
	}
	for i, l := range r.TopDeals {
		deals.AppendRow(table.Row{
			i + 1,
			truncate(l.Address, 40),
			l.PostalCode,
			fmt.Sprintf("$%.0f", l.Price),
			fmt.Sprintf("%.2f", l.PricePerArea),
			l.Comps.Summary,
			fmt.Sprintf("%.1f%%", *l.EstMarginPct),
			truncate(l.FixerKeywords, 30),
		})
	}
	deals.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	b.WriteString(deals.Render())
	b.WriteString("\n")

	if len(r.ByPostalCode) > 0 {
		type zipCount struct {
			zip   string
			count int
		}
		zips := make([]zipCount, 0, len(r.ByPostalCode))
		for z, n := range r.ByPostalCode {
			zips = append(zips, zipCount{z, n})
		}
		sort.Slice(zips, func(i, j int) bool {
			if zips[i].count != zips[j].count {
				return zips[i].count > zips[j].count
			}
			return zips[i].zip < zips[j].zip
		})

		byZip := newTable()
		byZip.SetTitle("Screened listings by postal code")
		byZip.AppendHeader(table.Row{"Zip", "Listings"})
		for _, z := range zips {
			byZip.AppendRow(table.Row{z.zip, z.count})
		}
		b.WriteString(byZip.Render())
		b.WriteString("\n")
	}

	return b.String()
}

// Print writes the rendered report to w.
func (s *InsightService) Print(w io.Writer, r *models.InsightReport) error {
	_, err := io.WriteString(w, "\n"+s.Render(r))
	return err
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	return tw
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
