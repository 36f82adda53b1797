package fixture

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flipscout/utils"
)

func newTestSource() *Source {
	return New("testdata/active_{region}.json", "testdata/sold_{region}.csv", utils.NewLogger())
}

func TestSourceActiveJSON(t *testing.T) {
	recs, err := newTestSource().Active(context.Background(), "91016")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "123 Fixer Ln", recs[0]["streetLine"])
	assert.Equal(t, json.Number("720000"), recs[0]["price"])
	assert.Equal(t, "$545,000", recs[1]["price"])
	assert.Len(t, recs[0]["photos"], 2)
}

func TestSourceSoldCSV(t *testing.T) {
	recs, err := newTestSource().Sold(context.Background(), "91016")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "140 Oak Ave", recs[0]["ADDRESS"])
	assert.Equal(t, "910,000", recs[0]["PRICE"])
	_, hasLot := recs[1]["LOT SIZE"]
	assert.False(t, hasLot, "empty cells are left out")
}

func TestSourceMissingRegionIsEmpty(t *testing.T) {
	recs, err := newTestSource().Active(context.Background(), "00000")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSourceEmptyPattern(t *testing.T) {
	recs, err := New("", "", utils.NewLogger()).Sold(context.Background(), "91016")
	require.NoError(t, err)
	assert.Nil(t, recs)
}

func TestSourceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestSource().Active(ctx, "91016")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeCSVStripsBOM(t *testing.T) {
	recs, err := DecodeCSV(strings.NewReader("\ufeffADDRESS,PRICE\n1 Main St,100\n"))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "1 Main St", recs[0]["ADDRESS"])
}

func TestDecodeJSONRejectsObject(t *testing.T) {
	_, err := DecodeJSON(strings.NewReader(`{"price": 1}`))
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	tests := []struct {
		pattern string
		region  string
		want    string
	}{
		{"data/{region}/active.json", "91016", "data/91016/active.json"},
		{"data/active.json", "91016", "data/active.json"},
	}
	for _, tt := range tests {
		if got := Path(tt.pattern, tt.region); got != tt.want {
			t.Errorf("Path(%q, %q) = %q; want %q", tt.pattern, tt.region, got, tt.want)
		}
	}
}
