package services

import (
	"math"
	"sort"

	"github.com/mmcloughlin/geohash"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"flipscout/models"
)

const metersPerMile = 1609.344

// DistanceMiles is the great-circle (haversine) distance between two
// coordinates on a sphere of radius orb.EarthRadius, in statute miles.
func DistanceMiles(lat1, lng1, lat2, lng2 float64) float64 {
	return geo.DistanceHaversine(orb.Point{lng1, lat1}, orb.Point{lng2, lat2}) / metersPerMile
}

// CompIndex narrows the sold pool down to records that may lie within a
// radius of a point. Candidates returns indices into the indexed slice in
// ascending order; the caller still checks the exact distance.
type CompIndex interface {
	Candidates(lat, lng, radiusMiles float64) []int
}

// LinearIndex returns every record. It is the reference behaviour the
// geohash index must reproduce.
type LinearIndex struct {
	n int
}

// NewLinearIndex indexes n records.
func NewLinearIndex(n int) *LinearIndex {
	return &LinearIndex{n: n}
}

func (ix *LinearIndex) Candidates(_, _, _ float64) []int {
	out := make([]int, ix.n)
	for i := range out {
		out[i] = i
	}
	return out
}

const maxGeohashPrecision = 8

// GeohashIndex buckets sold records by geohash cell at every precision up
// to maxGeohashPrecision. A query picks the finest precision whose cell is
// at least as tall and wide as the search radius, then reads the listing's
// cell and its eight neighbours. Near the poles, across the antimeridian or
// for radii larger than a precision-1 cell it falls back to a linear scan.
type GeohashIndex struct {
	n       int
	buckets [maxGeohashPrecision + 1]map[string][]int
}

// NewGeohashIndex indexes sold listings. Unknown coordinates stay at 0 and
// so are bucketed at (0,0).
func NewGeohashIndex(sold []*models.Listing) *GeohashIndex {
	ix := &GeohashIndex{n: len(sold)}
	for p := uint(1); p <= maxGeohashPrecision; p++ {
		b := make(map[string][]int)
		for i, s := range sold {
			h := geohash.EncodeWithPrecision(s.Latitude, s.Longitude, p)
			b[h] = append(b[h], i)
		}
		ix.buckets[p] = b
	}
	return ix
}

func (ix *GeohashIndex) Candidates(lat, lng, radiusMiles float64) []int {
	p, ok := precisionFor(lat, lng, radiusMiles)
	if !ok {
		return NewLinearIndex(ix.n).Candidates(lat, lng, radiusMiles)
	}

	center := geohash.EncodeWithPrecision(lat, lng, p)
	cells := append(geohash.Neighbors(center), center)

	seen := make(map[int]struct{})
	var out []int
	for _, c := range cells {
		for _, i := range ix.buckets[p][c] {
			if _, dup := seen[i]; dup {
				continue
			}
			seen[i] = struct{}{}
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

// precisionFor returns the finest geohash precision whose 3x3 neighbourhood
// around (lat, lng) contains every point within radiusMiles.
func precisionFor(lat, lng, radiusMiles float64) (uint, bool) {
	delta := radiusMiles * metersPerMile / orb.EarthRadius // radians
	if delta >= math.Pi/2 {
		return 0, false
	}
	latSpan := delta * 180 / math.Pi
	if math.Abs(lat)+latSpan >= 89 {
		return 0, false
	}
	s := math.Sin(delta) / math.Cos(lat*math.Pi/180)
	if s >= 1 {
		return 0, false
	}
	lngSpan := math.Asin(s) * 180 / math.Pi
	if math.Abs(lng)+lngSpan >= 180 {
		return 0, false
	}

	const margin = 1.001
	for p := uint(maxGeohashPrecision); p >= 1; p-- {
		h, w := geohashCellDegrees(p)
		if h >= latSpan*margin && w >= lngSpan*margin {
			return p, true
		}
	}
	return 0, false
}

// geohashCellDegrees returns the height and width of a cell in degrees.
func geohashCellDegrees(precision uint) (float64, float64) {
	bits := 5 * precision
	lngBits := (bits + 1) / 2
	latBits := bits / 2
	return 180 / math.Exp2(float64(latBits)), 360 / math.Exp2(float64(lngBits))
}
