package config

// Default returns the configuration used when neither a config file nor the
// environment says otherwise.
func Default() Config {
	return Config{
		Run: Run{
			RegionCodes: []string{"91016", "91006", "91007", "91001", "91104", "91105", "91106", "91107"},
			CompWorkers: 1,
			TopDeals:    10,
			LogLevel:    "info",
		},
		Screening: Screening{
			MaxPrice:    999999,
			MinLotArea:  1200,
			MinArea:     1200,
			MinBeds:     2,
			MinBaths:    1.5,
			RadiusMiles: 0.5,
			Keywords: []string{
				"fixer", "tlc", "needs work", "as-is", "handyman", "cosmetic", "update", "renovation",
			},
			PropertyTypePatterns: []string{"Single Family", "House"},
		},
		Source: Source{
			Kind:           "redfin",
			BaseURL:        "https://www.redfin.com",
			SalePeriod:     "1yr",
			PageTimeoutSec: 90,
			MaxConcurrency: 2,
			RateLimitMs:    2000,
			MaxRetries:     3,
		},
		Sink: Sink{
			Kind:             "csv",
			CSVDir:           "./output",
			PostgresHost:     "localhost",
			PostgresPort:     "5432",
			PostgresUser:     "flipscout",
			PostgresPassword: "flipscout",
			PostgresDB:       "flipscout",
			PostgresSSLMode:  "disable",
			SQLitePath:       "./output/flipscout.db",
		},
	}
}
