// Package fixture reads listings from local JSON or CSV files, one file per
// region and kind. It backs offline runs and tests.
package fixture

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"flipscout/models"
	"flipscout/utils"
)

// RegionPlaceholder is replaced by the region code in fixture paths.
const RegionPlaceholder = "{region}"

// Source loads records from files such as "testdata/active_{region}.json".
type Source struct {
	activePath string
	soldPath   string
	logger     *utils.Logger
}

// New creates a fixture Source. Either path may be empty, which yields no
// records of that kind.
func New(activePath, soldPath string, logger *utils.Logger) *Source {
	return &Source{activePath: activePath, soldPath: soldPath, logger: logger}
}

func (s *Source) Name() string { return "fixture" }

func (s *Source) Active(ctx context.Context, region string) ([]models.RawRecord, error) {
	return s.load(ctx, s.activePath, region)
}

func (s *Source) Sold(ctx context.Context, region string) ([]models.RawRecord, error) {
	return s.load(ctx, s.soldPath, region)
}

// Path expands the region placeholder of pattern.
func Path(pattern, region string) string {
	return strings.ReplaceAll(pattern, RegionPlaceholder, region)
}

func (s *Source) load(ctx context.Context, pattern, region string) ([]models.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pattern == "" {
		return nil, nil
	}

	path := Path(pattern, region)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("[fixture] %s does not exist, region %s has no records", path, region)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var recs []models.RawRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		recs, err = DecodeJSON(bytes.NewReader(data))
	case ".csv":
		recs, err = DecodeCSV(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("fixture %s: unsupported extension", path)
	}
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	s.logger.Debug("[fixture] %s: %d records", path, len(recs))
	return recs, nil
}

// DecodeJSON reads a JSON array of objects. Numbers are kept as json.Number
// so that large prices survive unchanged.
func DecodeJSON(r io.Reader) ([]models.RawRecord, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var items []map[string]any
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	recs := make([]models.RawRecord, 0, len(items))
	for _, item := range items {
		recs = append(recs, models.RawRecord(item))
	}
	return recs, nil
}

// DecodeCSV reads a CSV file with a header row. Every cell is a string;
// empty cells are left out of the record.
func DecodeCSV(r io.Reader) ([]models.RawRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	recs := make([]models.RawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(models.RawRecord, len(header))
		for i, col := range header {
			if i < len(row) && row[i] != "" {
				rec[col] = row[i]
			}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
