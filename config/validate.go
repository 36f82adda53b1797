package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Run.RegionCodes) == 0 {
		errs = append(errs, errors.New("run.region_codes: at least one region code is required"))
	}
	if c.Run.CompWorkers < 1 {
		errs = append(errs, fmt.Errorf("run.comp_workers: must be >= 1, got %d", c.Run.CompWorkers))
	}

	s := c.Screening
	if s.MaxPrice <= 0 {
		errs = append(errs, fmt.Errorf("screening.max_price: must be > 0, got %v", s.MaxPrice))
	}
	for _, m := range []struct {
		name string
		v    float64
	}{
		{"min_lot_area", s.MinLotArea},
		{"min_area", s.MinArea},
		{"min_beds", s.MinBeds},
		{"min_baths", s.MinBaths},
	} {
		if m.v < 0 {
			errs = append(errs, fmt.Errorf("screening.%s: must be >= 0, got %v", m.name, m.v))
		}
	}
	if s.RadiusMiles <= 0 {
		errs = append(errs, fmt.Errorf("screening.comp_radius_miles: must be > 0, got %v", s.RadiusMiles))
	}
	if len(s.PropertyTypePatterns) == 0 {
		errs = append(errs, errors.New("screening.property_type_patterns: at least one pattern is required"))
	}
	for _, p := range s.PropertyTypePatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("screening.property_type_patterns: %q: %w", p, err))
		}
	}

	switch c.Source.Kind {
	case "redfin":
		if strings.TrimSpace(c.Source.BaseURL) == "" {
			errs = append(errs, errors.New("source.base_url: required for the redfin source"))
		}
	case "fixture":
		if c.Source.FixtureActive == "" || c.Source.FixtureSold == "" {
			errs = append(errs, errors.New("source: fixture_active and fixture_sold are required for the fixture source"))
		}
	default:
		errs = append(errs, fmt.Errorf("source.kind: unknown source %q", c.Source.Kind))
	}

	switch c.Sink.Kind {
	case "csv":
		if c.Sink.CSVDir == "" {
			errs = append(errs, errors.New("sink.csv_dir: required for the csv sink"))
		}
	case "postgres":
		if c.Sink.PostgresHost == "" || c.Sink.PostgresDB == "" {
			errs = append(errs, errors.New("sink: postgres_host and postgres_db are required for the postgres sink"))
		}
	case "sqlite":
		if c.Sink.SQLitePath == "" {
			errs = append(errs, errors.New("sink.sqlite_path: required for the sqlite sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("sink.kind: unknown sink %q", c.Sink.Kind))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
