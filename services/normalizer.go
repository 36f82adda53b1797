package services

import (
	"strings"

	"flipscout/models"
	"flipscout/utils"
)

// FieldKind decides the default a canonical field gets when it is missing.
type FieldKind int

const (
	KindNumber FieldKind = iota
	KindText
	KindList
)

// Alias maps one canonical field to the source spellings it absorbs. Aliases
// are tried in order and the first one present wins. The canonical name is
// always tried first, so already-canonical records pass through unchanged.
// A dotted alias such as "priceInfo.price" reads a nested object.
type Alias struct {
	Field   string
	Kind    FieldKind
	Aliases []string
}

// redfinURLHeader is the URL column name of Redfin's CSV export.
const redfinURLHeader = "URL (SEE https://www.redfin.com/buy-a-home/comparative-market-analysis FOR INFO ON PRICING)"

// DefaultAliases covers the field spellings seen across Redfin page data,
// the Redfin CSV export and the redfin scraper library releases.
var DefaultAliases = []Alias{
	{models.FieldLink, KindText, []string{"url", "URL", "Url", "link", redfinURLHeader}},
	{models.FieldAddress, KindText, []string{"Address", "ADDRESS", "streetLine", "streetLine.value", "street_address"}},
	{models.FieldPostalCode, KindText, []string{"zip", "Zip", "zipCode", "postalCode", "postalCode.value", "ZIP OR POSTAL CODE"}},
	{models.FieldPrice, KindNumber, []string{"Price", "PRICE", "ListingPrice", "listingPrice", "priceInfo.price", "soldPrice"}},
	{models.FieldArea, KindNumber, []string{"sqft", "SqFt", "SQUARE FEET", "livingArea", "squareFeet", "sqFt.value"}},
	{models.FieldLotArea, KindNumber, []string{"lot_size", "LotSize", "LOT SIZE", "lotSize", "lotSize.value", "lotSqFt"}},
	{models.FieldBeds, KindNumber, []string{"Beds", "BEDS", "bedrooms"}},
	{models.FieldBaths, KindNumber, []string{"Baths", "BATHS", "bathrooms"}},
	{models.FieldYearBuilt, KindNumber, []string{"YearBuilt", "YEAR BUILT", "yearBuilt", "yearBuilt.value"}},
	{models.FieldPropertyType, KindText, []string{"PropertyType", "PROPERTY TYPE", "propertyType", "uiPropertyType"}},
	{models.FieldDescription, KindText, []string{"Description", "listingRemarks", "remarks"}},
	{models.FieldImageURLs, KindList, []string{"images", "Photos", "photos", "photoUrls"}},
	{models.FieldLatitude, KindNumber, []string{"Latitude", "LATITUDE", "lat", "latLong.latitude", "latLong.value.latitude"}},
	{models.FieldLongitude, KindNumber, []string{"Longitude", "LONGITUDE", "lng", "lon", "latLong.longitude", "latLong.value.longitude"}},
	{models.FieldSoldDate, KindText, []string{"SOLD DATE", "soldDate", "sold_on"}},
}

// Normalizer renames source fields onto the canonical schema and fills in
// typed defaults for anything missing.
type Normalizer struct {
	aliases []Alias
	logger  *utils.Logger
}

// NewNormalizer creates a Normalizer using DefaultAliases.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return NewNormalizerWithAliases(DefaultAliases, logger)
}

// NewNormalizerWithAliases creates a Normalizer with a custom alias table.
func NewNormalizerWithAliases(aliases []Alias, logger *utils.Logger) *Normalizer {
	return &Normalizer{aliases: aliases, logger: logger}
}

// Normalize maps every record in batch onto the canonical schema. The input
// records are not modified. An empty batch is returned as is.
func (n *Normalizer) Normalize(batch []models.RawRecord) []models.RawRecord {
	if len(batch) == 0 {
		return batch
	}
	out := make([]models.RawRecord, len(batch))
	for i, rec := range batch {
		out[i] = n.NormalizeRecord(rec)
	}
	n.logger.Debug("[normalizer] Normalized %d records", len(out))
	return out
}

// NormalizeRecord maps a single record. Keys that are not aliases of any
// canonical field are carried over untouched.
func (n *Normalizer) NormalizeRecord(rec models.RawRecord) models.RawRecord {
	out := make(models.RawRecord, len(rec)+len(n.aliases))
	consumed := make(map[string]struct{})

	for _, a := range n.aliases {
		var val any
		for i := -1; i < len(a.Aliases); i++ {
			name := a.Field
			if i >= 0 {
				name = a.Aliases[i]
			}
			v, ok := lookup(rec, name)
			if !ok {
				continue
			}
			if !strings.Contains(name, ".") {
				consumed[name] = struct{}{}
			}
			// JSON nulls count as absent.
			if val == nil && v != nil {
				val = v
			}
		}
		if val == nil {
			val = defaultFor(a.Kind)
		}
		out[a.Field] = val
		consumed[a.Field] = struct{}{}
	}

	for k, v := range rec {
		if _, ok := consumed[k]; ok {
			continue
		}
		out[k] = v
	}
	return out
}

// Value resolves one canonical field of an unnormalized record. It returns
// nil when no spelling of the field is present.
func (n *Normalizer) Value(rec models.RawRecord, field string) any {
	for _, a := range n.aliases {
		if a.Field != field {
			continue
		}
		for _, name := range append([]string{a.Field}, a.Aliases...) {
			if v, ok := lookup(rec, name); ok && v != nil {
				return v
			}
		}
	}
	return nil
}

// lookup resolves a possibly dotted key against rec.
func lookup(rec models.RawRecord, key string) (any, bool) {
	if v, ok := rec[key]; ok {
		return v, true
	}
	if !strings.Contains(key, ".") {
		return nil, false
	}

	var cur any = map[string]any(rec)
	for _, part := range strings.Split(key, ".") {
		var m map[string]any
		switch t := cur.(type) {
		case map[string]any:
			m = t
		case models.RawRecord:
			m = t
		default:
			return nil, false
		}
		next, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func defaultFor(kind FieldKind) any {
	switch kind {
	case KindNumber:
		return float64(0)
	case KindList:
		return []any{}
	default:
		return ""
	}
}
