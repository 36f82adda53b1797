package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Screening holds the investor thresholds applied to active listings and
// the comparable-search parameters.
type Screening struct {
	MaxPrice    float64 `toml:"max_price"`
	MinLotArea  float64 `toml:"min_lot_area"`
	MinArea     float64 `toml:"min_area"`
	MinBeds     float64 `toml:"min_beds"`
	MinBaths    float64 `toml:"min_baths"`
	RadiusMiles float64 `toml:"comp_radius_miles"`

	// Keywords are matched in order against the lower-cased description.
	Keywords []string `toml:"keywords"`
	// PropertyTypePatterns are case-sensitive regular expressions; a listing
	// passes when any of them matches its property type.
	PropertyTypePatterns []string `toml:"property_type_patterns"`
}

// Source configures the ingestion adapter.
type Source struct {
	Kind           string `toml:"kind"` // redfin | fixture
	BaseURL        string `toml:"base_url"`
	SalePeriod     string `toml:"sale_period"`
	ChromeBin      string `toml:"chrome_bin"`
	PageTimeoutSec int    `toml:"page_timeout_sec"`
	MaxConcurrency int    `toml:"max_concurrency"`
	RateLimitMs    int    `toml:"rate_limit_ms"`
	MaxRetries     int    `toml:"max_retries"`

	// Fixture paths may contain a {region} placeholder.
	FixtureActive string `toml:"fixture_active"`
	FixtureSold   string `toml:"fixture_sold"`
}

// Sink configures the tabular store results are appended to.
type Sink struct {
	Kind   string `toml:"kind"` // csv | postgres | sqlite
	CSVDir string `toml:"csv_dir"`

	PostgresHost     string `toml:"postgres_host"`
	PostgresPort     string `toml:"postgres_port"`
	PostgresUser     string `toml:"postgres_user"`
	PostgresPassword string `toml:"postgres_password"`
	PostgresDB       string `toml:"postgres_db"`
	PostgresSSLMode  string `toml:"postgres_sslmode"`

	SQLitePath string `toml:"sqlite_path"`
}

// Run holds per-invocation settings.
type Run struct {
	RegionCodes     []string `toml:"region_codes"`
	CompWorkers     int      `toml:"comp_workers"`
	TopDeals        int      `toml:"top_deals"`
	LogLevel        string   `toml:"log_level"`
	MetricsTextfile string   `toml:"metrics_textfile"`
}

// Config holds all application configuration.
type Config struct {
	Run       Run       `toml:"run"`
	Screening Screening `toml:"screening"`
	Source    Source    `toml:"source"`
	Sink      Sink      `toml:"sink"`
}

// Load builds the configuration: defaults, then the TOML file at path (if it
// exists), then the .env file and process environment. The result is
// validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Printf("[config] %s not found, using defaults and environment", path)
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}
	cfg.applyEnv()
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DSN returns the PostgreSQL connection URL. Credentials are escaped, so
// passwords may contain spaces, quotes or '@'.
func (c *Config) DSN() string {
	s := c.Sink
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.PostgresUser, s.PostgresPassword),
		Host:     net.JoinHostPort(s.PostgresHost, s.PostgresPort),
		Path:     "/" + s.PostgresDB,
		RawQuery: url.Values{"sslmode": {s.PostgresSSLMode}}.Encode(),
	}
	return u.String()
}

// Marshal renders the configuration as TOML.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// Normalize trims list entries and lower-cases the source and sink kinds.
// Call it again after overriding fields in code.
func (c *Config) Normalize() {
	c.Run.RegionCodes = cleanList(c.Run.RegionCodes)
	c.Screening.Keywords = cleanList(c.Screening.Keywords)
	c.Screening.PropertyTypePatterns = cleanList(c.Screening.PropertyTypePatterns)
	c.Source.Kind = strings.ToLower(strings.TrimSpace(c.Source.Kind))
	c.Sink.Kind = strings.ToLower(strings.TrimSpace(c.Sink.Kind))
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
