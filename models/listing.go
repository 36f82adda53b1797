package models

// RawRecord holds one listing exactly as a source returned it. Field names
// vary between sources and between releases of the same source; nothing
// downstream of the normalizer reads a RawRecord directly.
type RawRecord map[string]any

// Canonical field names shared by the normalizer, the enricher and the
// table encoder.
const (
	FieldLink         = "link"
	FieldAddress      = "address"
	FieldPostalCode   = "postal_code"
	FieldPrice        = "price"
	FieldArea         = "area"
	FieldLotArea      = "lot_area"
	FieldBeds         = "beds"
	FieldBaths        = "baths"
	FieldYearBuilt    = "year_built"
	FieldPropertyType = "property_type"
	FieldDescription  = "description"
	FieldImageURLs    = "image_urls"
	FieldLatitude     = "latitude"
	FieldLongitude    = "longitude"
	FieldSoldDate     = "sold_date"

	FieldDateScraped   = "date_scraped"
	FieldPricePerArea  = "price_per_area"
	FieldFixerKeywords = "fixer_keywords"
	FieldCompsCount    = "nearby_comps_count"
	FieldAvgSoldPPA    = "avg_sold_price_per_area"
	FieldCompsSummary  = "comps_summary"
	FieldEstMarginPct  = "est_margin_pct"
)

// Kind tells active listings apart from the sold comparable pool.
type Kind string

const (
	KindActive Kind = "active"
	KindSold   Kind = "sold"
)

// Listing is the canonical, typed record produced by the enricher.
// Latitude and Longitude of exactly 0 mean "unknown".
type Listing struct {
	Kind Kind

	Link       string
	Address    string
	PostalCode string

	Price        float64
	PricePerArea float64

	Area         float64
	LotArea      float64
	Beds         float64
	Baths        float64
	YearBuilt    float64
	PropertyType string

	Description string
	ImageURLs   []string

	Latitude  float64
	Longitude float64

	SoldDate    string
	DateScraped string

	// Populated for active listings only.
	FixerKeywords string
	Comps         CompResult
	EstMarginPct  *float64
}

// HasGeo reports whether both coordinates are known.
func (l *Listing) HasGeo() bool {
	return l.Latitude != 0 && l.Longitude != 0
}

// CompResult is the comparable-sale aggregation for one active listing.
// The zero value is the null result used when geodata is missing or no
// sold record falls inside the radius.
type CompResult struct {
	Count           int
	AvgPricePerArea float64
	Summary         string
}

// Record converts the listing back into canonical raw form. Feeding the
// result through the normalizer and enricher again yields an equal Listing.
func (l *Listing) Record() RawRecord {
	images := make([]any, len(l.ImageURLs))
	for i, u := range l.ImageURLs {
		images[i] = u
	}
	rec := RawRecord{
		FieldLink:         l.Link,
		FieldAddress:      l.Address,
		FieldPostalCode:   l.PostalCode,
		FieldPrice:        l.Price,
		FieldArea:         l.Area,
		FieldLotArea:      l.LotArea,
		FieldBeds:         l.Beds,
		FieldBaths:        l.Baths,
		FieldYearBuilt:    l.YearBuilt,
		FieldPropertyType: l.PropertyType,
		FieldDescription:  l.Description,
		FieldImageURLs:    images,
		FieldLatitude:     l.Latitude,
		FieldLongitude:    l.Longitude,
		FieldSoldDate:     l.SoldDate,
	}
	return rec
}
