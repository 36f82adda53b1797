package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flipscout/models"
)

func newTestSQLite(t *testing.T) *SQLWriter {
	t.Helper()
	w, err := NewSQLiteWriter(context.Background(), filepath.Join(t.TempDir(), "sink.db"))
	require.NoError(t, err, "failed to open sqlite sink")
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestSQLiteWriterAppendAndReadBack(t *testing.T) {
	ctx := context.Background()
	w := newTestSQLite(t)

	tbl := sampleTable(
		[]string{"1 Main St", "500000", "3 comps @ $612.50/sqft"},
		[]string{"2 Oak Ave", "450000", ""},
	)
	require.NoError(t, w.Append(ctx, tbl))
	require.NoError(t, w.Append(ctx, tbl))

	rows, err := w.Rows(ctx, models.TableForSale, tbl.Header)
	require.NoError(t, err)
	require.Len(t, rows, 4, "reruns append duplicate rows")
	assert.Equal(t, tbl.Rows[0], rows[0])
	assert.Equal(t, tbl.Rows[1], rows[1])
	assert.Equal(t, tbl.Rows[0], rows[2])

	n, err := w.AppendCount(ctx, models.TableForSale)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteWriterRecordsEmptyAppend(t *testing.T) {
	ctx := context.Background()
	w := newTestSQLite(t)

	require.NoError(t, w.Append(ctx, models.Table{
		Name:   models.TableSoldComps,
		Header: []string{"address", "price"},
	}))

	n, err := w.AppendCount(ctx, models.TableSoldComps)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "empty run must still leave an audit row")

	rows, err := w.Rows(ctx, models.TableSoldComps, []string{"address", "price"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSQLiteWriterAddsNewColumns(t *testing.T) {
	ctx := context.Background()
	w := newTestSQLite(t)

	require.NoError(t, w.Append(ctx, models.Table{
		Name:   models.TableForSale,
		Header: []string{"address"},
		Rows:   [][]string{{"1 Main St"}},
	}))
	require.NoError(t, w.Append(ctx, models.Table{
		Name:   models.TableForSale,
		Header: []string{"address", "fixer_keywords"},
		Rows:   [][]string{{"2 Oak Ave", "fixer, tlc"}},
	}))

	rows, err := w.Rows(ctx, models.TableForSale, []string{"address", "fixer_keywords"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1 Main St", ""}, {"2 Oak Ave", "fixer, tlc"}}, rows)
}

func TestSQLiteWriterLargeBatch(t *testing.T) {
	ctx := context.Background()
	w := newTestSQLite(t)

	tbl := sampleTable()
	for i := 0; i < 120; i++ {
		tbl.Rows = append(tbl.Rows, []string{"addr", "1", ""})
	}
	require.NoError(t, w.Append(ctx, tbl))

	rows, err := w.Rows(ctx, models.TableForSale, tbl.Header)
	require.NoError(t, err)
	assert.Len(t, rows, 120)
}

func TestSQLTableName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ForSale", "for_sale"},
		{"Sold_Comps", "sold_comps"},
		{"listings", "listings"},
		{"Table2Rows", "table2_rows"},
	}
	for _, tt := range tests {
		if got := SQLTableName(tt.in); got != tt.want {
			t.Errorf("SQLTableName(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
