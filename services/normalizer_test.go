package services

import (
	"reflect"
	"testing"

	"flipscout/models"
	"flipscout/utils"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(utils.NewLogger())
}

func TestNormalizeAliases(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name  string
		in    models.RawRecord
		field string
		want  any
	}{
		{"alias renamed", models.RawRecord{"Price": 500000.0}, models.FieldPrice, 500000.0},
		{"upper-case alias", models.RawRecord{"SQUARE FEET": "1,450"}, models.FieldArea, "1,450"},
		{"canonical wins", models.RawRecord{"price": 1.0, "Price": 2.0}, models.FieldPrice, 1.0},
		{"null falls through", models.RawRecord{"price": nil, "Price": 2.0}, models.FieldPrice, 2.0},
		{"first alias wins", models.RawRecord{"Beds": 3.0, "bedrooms": 4.0}, models.FieldBeds, 3.0},
		{"dotted alias", models.RawRecord{"priceInfo": map[string]any{"price": 450000.0}}, models.FieldPrice, 450000.0},
		{"nested lat/long", models.RawRecord{"latLong": map[string]any{"latitude": 34.1}}, models.FieldLatitude, 34.1},
		{"redfin csv url", models.RawRecord{redfinURLHeader: "https://r/1"}, models.FieldLink, "https://r/1"},
	}
	for _, tt := range tests {
		got := n.NormalizeRecord(tt.in)[tt.field]
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: %s = %v; want %v", tt.name, tt.field, got, tt.want)
		}
	}
}

func TestNormalizeDefaults(t *testing.T) {
	out := newTestNormalizer().NormalizeRecord(models.RawRecord{})

	for _, a := range DefaultAliases {
		if _, ok := out[a.Field]; !ok {
			t.Errorf("missing canonical field %q", a.Field)
		}
	}
	if out[models.FieldPrice] != 0.0 {
		t.Errorf("price default = %v; want 0", out[models.FieldPrice])
	}
	if out[models.FieldAddress] != "" {
		t.Errorf("address default = %v; want empty string", out[models.FieldAddress])
	}
	if imgs, ok := out[models.FieldImageURLs].([]any); !ok || len(imgs) != 0 {
		t.Errorf("image_urls default = %#v; want empty list", out[models.FieldImageURLs])
	}
}

func TestNormalizeKeepsUnknownKeys(t *testing.T) {
	in := models.RawRecord{"Price": 1.0, "MLS#": "SR26001", "priceInfo": map[string]any{"price": 2.0}}
	out := newTestNormalizer().NormalizeRecord(in)

	if out["MLS#"] != "SR26001" {
		t.Errorf("unknown key dropped: %v", out)
	}
	if _, ok := out["Price"]; ok {
		t.Error("consumed alias should not survive normalization")
	}
	if _, ok := out["priceInfo"]; !ok {
		t.Error("parent of a dotted alias should be kept")
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := newTestNormalizer()
	batch := []models.RawRecord{
		{"URL": "https://r/1", "Price": "$500,000", "Beds": 3.0, "photos": []any{"a", "b"}, "extra": true},
		{"streetLine": map[string]any{"value": "1 Main St"}, "lotSize": "0.2 acres"},
		{},
	}

	once := n.Normalize(batch)
	twice := n.Normalize(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("normalize is not idempotent:\nonce:  %v\ntwice: %v", once, twice)
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := models.RawRecord{"Price": 1.0}
	newTestNormalizer().NormalizeRecord(in)
	if len(in) != 1 || in["Price"] != 1.0 {
		t.Errorf("input mutated: %v", in)
	}
}

func TestNormalizeEmptyBatch(t *testing.T) {
	n := newTestNormalizer()
	if got := n.Normalize(nil); got != nil {
		t.Errorf("Normalize(nil) = %v; want nil", got)
	}
	if got := n.Normalize([]models.RawRecord{}); len(got) != 0 {
		t.Errorf("Normalize(empty) = %v; want empty", got)
	}
}

func TestNormalizerValue(t *testing.T) {
	n := newTestNormalizer()
	rec := models.RawRecord{"link": nil, redfinURLHeader: "https://r/9"}
	if got := n.Value(rec, models.FieldLink); got != "https://r/9" {
		t.Errorf("Value(link) = %v; want https://r/9", got)
	}
	if got := n.Value(rec, models.FieldPrice); got != nil {
		t.Errorf("Value(price) = %v; want nil", got)
	}
}
