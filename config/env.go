package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// applyEnv overrides values for every variable that is set and non-empty.
func (c *Config) applyEnv() {
	setList(&c.Run.RegionCodes, "REGION_CODES")
	setInt(&c.Run.CompWorkers, "COMP_WORKERS")
	setInt(&c.Run.TopDeals, "TOP_DEALS")
	setString(&c.Run.LogLevel, "LOG_LEVEL")
	setString(&c.Run.MetricsTextfile, "METRICS_TEXTFILE")

	setFloat(&c.Screening.MaxPrice, "MAX_PRICE")
	setFloat(&c.Screening.MinLotArea, "MIN_LOT_AREA")
	setFloat(&c.Screening.MinArea, "MIN_AREA")
	setFloat(&c.Screening.MinBeds, "MIN_BEDS")
	setFloat(&c.Screening.MinBaths, "MIN_BATHS")
	setFloat(&c.Screening.RadiusMiles, "COMP_RADIUS_MILES")
	setList(&c.Screening.Keywords, "FIXER_KEYWORDS")
	setList(&c.Screening.PropertyTypePatterns, "PROPERTY_TYPE_PATTERNS")

	setString(&c.Source.Kind, "SOURCE")
	setString(&c.Source.BaseURL, "SOURCE_BASE_URL")
	setString(&c.Source.SalePeriod, "SALE_PERIOD")
	setString(&c.Source.ChromeBin, "CHROME_BIN")
	setInt(&c.Source.PageTimeoutSec, "PAGE_TIMEOUT_SEC")
	setInt(&c.Source.MaxConcurrency, "MAX_CONCURRENCY")
	setInt(&c.Source.RateLimitMs, "RATE_LIMIT_MS")
	setInt(&c.Source.MaxRetries, "MAX_RETRIES")
	setString(&c.Source.FixtureActive, "FIXTURE_ACTIVE")
	setString(&c.Source.FixtureSold, "FIXTURE_SOLD")

	setString(&c.Sink.Kind, "SINK")
	setString(&c.Sink.CSVDir, "CSV_OUTPUT_DIR")
	setString(&c.Sink.PostgresHost, "POSTGRES_HOST")
	setString(&c.Sink.PostgresPort, "POSTGRES_PORT")
	setString(&c.Sink.PostgresUser, "POSTGRES_USER")
	setString(&c.Sink.PostgresPassword, "POSTGRES_PASSWORD")
	setString(&c.Sink.PostgresDB, "POSTGRES_DB")
	setString(&c.Sink.PostgresSSLMode, "POSTGRES_SSLMODE")
	setString(&c.Sink.SQLitePath, "SQLITE_PATH")
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			log.Printf("[config] ignoring %s=%q: not an integer", key, val)
			return
		}
		*dst = n
	}
}

func setFloat(dst *float64, key string) {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Printf("[config] ignoring %s=%q: not a number", key, val)
			return
		}
		*dst = f
	}
}

// setList reads a comma-separated list.
func setList(dst *[]string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = strings.Split(val, ",")
	}
}
