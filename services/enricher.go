package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"flipscout/config"
	"flipscout/models"
	"flipscout/utils"
)

// ImageSeparator joins image URLs into a single cell.
const ImageSeparator = " | "

// Criteria is the compiled form of config.Screening used by the enricher.
type Criteria struct {
	MaxPrice   float64
	MinLotArea float64
	MinArea    float64
	MinBeds    float64
	MinBaths   float64

	Keywords     []string
	TypePatterns []*regexp.Regexp
}

// NewCriteria compiles the property type patterns of s.
func NewCriteria(s config.Screening) (*Criteria, error) {
	c := &Criteria{
		MaxPrice:   s.MaxPrice,
		MinLotArea: s.MinLotArea,
		MinArea:    s.MinArea,
		MinBeds:    s.MinBeds,
		MinBaths:   s.MinBaths,
		Keywords:   append([]string(nil), s.Keywords...),
	}
	for _, p := range s.PropertyTypePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile property type pattern %q: %w", p, err)
		}
		c.TypePatterns = append(c.TypePatterns, re)
	}
	return c, nil
}

// Enricher turns normalized records into typed Listings, screens active
// listings and derives keyword and price density signals.
type Enricher struct {
	criteria    *Criteria
	dateScraped string
	logger      *utils.Logger
}

// NewEnricher creates an Enricher. dateScraped is stamped on every record.
func NewEnricher(criteria *Criteria, dateScraped string, logger *utils.Logger) *Enricher {
	return &Enricher{criteria: criteria, dateScraped: dateScraped, logger: logger}
}

// EnrichActive coerces, screens and annotates active listings.
func (e *Enricher) EnrichActive(batch []models.RawRecord) []models.Outcome {
	return e.enrich(batch, models.KindActive)
}

// EnrichSold coerces sold listings. They are never screened; they only feed
// the comparable pool.
func (e *Enricher) EnrichSold(batch []models.RawRecord) []models.Outcome {
	return e.enrich(batch, models.KindSold)
}

func (e *Enricher) enrich(batch []models.RawRecord, kind models.Kind) []models.Outcome {
	outcomes := make([]models.Outcome, 0, len(batch))
	kept := 0

	for i, rec := range batch {
		o := e.enrichOne(i, rec, kind)
		if o.Skipped() {
			e.logger.Debug("[enricher] %s record %d skipped (%s): %s", kind, i, o.Skip, o.Detail)
		} else {
			kept++
		}
		outcomes = append(outcomes, o)
	}

	e.logger.Info("[enricher] %s: %d → %d listings (dropped %d)", kind, len(batch), kept, len(batch)-kept)
	return outcomes
}

// enrichOne never panics; any failure turns into a malformed skip.
func (e *Enricher) enrichOne(i int, rec models.RawRecord, kind models.Kind) (out models.Outcome) {
	out.Index = i
	defer func() {
		if r := recover(); r != nil {
			out = models.Outcome{Index: i, Skip: models.SkipMalformed, Detail: fmt.Sprintf("panic: %v", r)}
		}
	}()

	l, err := e.Coerce(i, rec)
	if err != nil {
		out.Skip, out.Detail = models.SkipMalformed, err.Error()
		return out
	}
	l.Kind = kind

	if kind == models.KindActive {
		if ok, reason := e.Screen(l); !ok {
			out.Skip, out.Detail = reason, describeSkip(l, reason)
			return out
		}
		l.FixerKeywords = FixerKeywords(l.Description, e.criteria.Keywords)
	}

	out.Listing = l
	return out
}

var errNilRecord = errors.New("nil record")

// Coerce parses every financial and physical field of a normalized record.
// Unparsable numbers become 0; the living area becomes 1 so that price per
// area stays defined.
func (e *Enricher) Coerce(i int, rec models.RawRecord) (*models.Listing, error) {
	if rec == nil {
		return nil, errNilRecord
	}

	l := &models.Listing{
		Link:         toText(rec[models.FieldLink]),
		Address:      toText(rec[models.FieldAddress]),
		PostalCode:   toText(rec[models.FieldPostalCode]),
		PropertyType: toText(rec[models.FieldPropertyType]),
		Description:  toText(rec[models.FieldDescription]),
		SoldDate:     toText(rec[models.FieldSoldDate]),
		ImageURLs:    FlattenImages(rec[models.FieldImageURLs]),
		DateScraped:  e.dateScraped,
	}

	l.Price = e.nonNegative(i, rec, models.FieldPrice, parseNumber, 0)
	l.Area = e.nonNegative(i, rec, models.FieldArea, parseNumber, 1)
	if l.Area <= 0 {
		l.Area = 1
	}
	l.LotArea = e.nonNegative(i, rec, models.FieldLotArea, parseLotArea, 0)
	l.Beds = e.nonNegative(i, rec, models.FieldBeds, parseNumber, 0)
	l.Baths = e.nonNegative(i, rec, models.FieldBaths, parseNumber, 0)
	l.YearBuilt = e.nonNegative(i, rec, models.FieldYearBuilt, parseNumber, 0)
	l.Latitude = e.coordinate(i, rec, models.FieldLatitude, 90)
	l.Longitude = e.coordinate(i, rec, models.FieldLongitude, 180)

	l.PricePerArea = PricePerArea(l.Price, l.Area)
	return l, nil
}

func (e *Enricher) nonNegative(i int, rec models.RawRecord, field string, parse func(any) (float64, bool), fallback float64) float64 {
	raw := rec[field]
	f, ok := parse(raw)
	if !ok || f < 0 {
		if !isBlank(raw) {
			e.logger.Debug("[enricher] record %d: %s=%v is not a usable number, using %v", i, field, raw, fallback)
		}
		return fallback
	}
	return f
}

func (e *Enricher) coordinate(i int, rec models.RawRecord, field string, limit float64) float64 {
	raw := rec[field]
	f, ok := parseNumber(raw)
	if !ok || f < -limit || f > limit {
		if !isBlank(raw) {
			e.logger.Debug("[enricher] record %d: %s=%v is not a coordinate, treating as unknown", i, field, raw)
		}
		return 0
	}
	return f
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case float64:
		return t == 0
	}
	return false
}

// Screen applies every investor threshold. All of them must hold; the
// returned reason names the first one that failed.
func (e *Enricher) Screen(l *models.Listing) (bool, models.SkipReason) {
	c := e.criteria
	switch {
	case l.Price > c.MaxPrice:
		return false, models.SkipMaxPrice
	case l.LotArea < c.MinLotArea:
		return false, models.SkipMinLotArea
	case l.Area < c.MinArea:
		return false, models.SkipMinArea
	case l.Beds < c.MinBeds:
		return false, models.SkipMinBeds
	case l.Baths < c.MinBaths:
		return false, models.SkipMinBaths
	case !c.MatchesType(l.PropertyType):
		return false, models.SkipPropertyType
	}
	return true, models.SkipNone
}

// MatchesType reports whether propertyType matches any allowed pattern.
// An empty property type never matches.
func (c *Criteria) MatchesType(propertyType string) bool {
	if propertyType == "" {
		return false
	}
	for _, re := range c.TypePatterns {
		if re.MatchString(propertyType) {
			return true
		}
	}
	return false
}

func describeSkip(l *models.Listing, reason models.SkipReason) string {
	switch reason {
	case models.SkipMaxPrice:
		return fmt.Sprintf("price %.0f", l.Price)
	case models.SkipMinLotArea:
		return fmt.Sprintf("lot area %.0f", l.LotArea)
	case models.SkipMinArea:
		return fmt.Sprintf("area %.0f", l.Area)
	case models.SkipMinBeds:
		return fmt.Sprintf("beds %v", l.Beds)
	case models.SkipMinBaths:
		return fmt.Sprintf("baths %v", l.Baths)
	case models.SkipPropertyType:
		return fmt.Sprintf("property type %q", l.PropertyType)
	}
	return l.Link
}

// FixerKeywords returns the keywords found in the lower-cased description,
// in keyword-list order, joined with ", ".
func FixerKeywords(description string, keywords []string) string {
	text := strings.ToLower(description)
	if text == "" {
		return ""
	}
	var found []string
	for _, k := range keywords {
		if k != "" && strings.Contains(text, strings.ToLower(k)) {
			found = append(found, k)
		}
	}
	return strings.Join(found, ", ")
}

// PricePerArea is price divided by area, rounded to cents. A non-positive
// area yields 0 rather than an infinite value.
func PricePerArea(price, area float64) float64 {
	if area <= 0 {
		return 0
	}
	return roundTo(price/area, 2)
}

// FlattenImages turns whatever the source used for photos into an ordered
// list of URLs. Lists keep their order; photo objects contribute their
// "url" entry; any other value becomes its string form.
func FlattenImages(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := imageURL(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := imageURL(t); s != "" {
			return []string{s}
		}
		return nil
	}
}

func imageURL(v any) string {
	if m, ok := v.(map[string]any); ok {
		for _, k := range []string{"url", "URL", "src", "href"} {
			if u, ok := m[k]; ok {
				return toText(u)
			}
		}
	}
	return toText(v)
}

// JoinImages serializes image URLs into a single cell.
func JoinImages(urls []string) string {
	return strings.Join(urls, ImageSeparator)
}
