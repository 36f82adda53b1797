package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixtureConfig(t *testing.T, sinkKind string) (cfgPath, outDir string) {
	t.Helper()
	dir := t.TempDir()
	outDir = filepath.Join(dir, "output")

	active, err := filepath.Abs("scraper/fixture/testdata/active_{region}.json")
	require.NoError(t, err)
	sold, err := filepath.Abs("scraper/fixture/testdata/sold_{region}.csv")
	require.NoError(t, err)

	cfgPath = filepath.Join(dir, "flipscout.toml")
	content := fmt.Sprintf(`
[run]
region_codes = ["91016"]
metrics_textfile = %q

[source]
kind = "fixture"
fixture_active = %q
fixture_sold = %q
max_concurrency = 1
rate_limit_ms = 0
max_retries = 1

[sink]
kind = %q
csv_dir = %q
sqlite_path = %q
`, filepath.Join(outDir, "flipscout.prom"), active, sold, sinkKind, outDir, filepath.Join(outDir, "flipscout.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	return cfgPath, outDir
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRunCommandWithFixtures(t *testing.T) {
	cfgPath, outDir := writeFixtureConfig(t, "csv")

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"run", "--config", cfgPath})
	require.NoError(t, cmd.Execute())

	forSale := readRows(t, filepath.Join(outDir, "ForSale.csv"))
	require.Len(t, forSale, 2, "header plus the one single family listing")
	assert.Equal(t, "date_scraped", forSale[0][0])
	assert.Equal(t, "123 Fixer Ln", forSale[1][1])

	sold := readRows(t, filepath.Join(outDir, "Sold_Comps.csv"))
	assert.Len(t, sold, 3)

	assert.Contains(t, out.String(), "123 Fixer Ln")
	assert.FileExists(t, filepath.Join(outDir, "flipscout.prom"))
}

func TestRunCommandDryRunWritesNothing(t *testing.T) {
	cfgPath, outDir := writeFixtureConfig(t, "sqlite")

	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--config", cfgPath, "--dry-run"})
	require.NoError(t, cmd.Execute())

	assert.NoFileExists(t, filepath.Join(outDir, "flipscout.db"))
	assert.NoFileExists(t, filepath.Join(outDir, "ForSale.csv"))
}

func TestRunCommandSinkOverride(t *testing.T) {
	cfgPath, outDir := writeFixtureConfig(t, "csv")

	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--config", cfgPath, "--sink", "sqlite"})
	require.NoError(t, cmd.Execute())

	assert.FileExists(t, filepath.Join(outDir, "flipscout.db"))
	assert.NoFileExists(t, filepath.Join(outDir, "ForSale.csv"))
}

func TestConfigCommandPrintsToml(t *testing.T) {
	cfgPath, _ := writeFixtureConfig(t, "csv")

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "--config", cfgPath})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "[screening]")
	assert.Contains(t, out.String(), "fixture")
	assert.Contains(t, out.String(), "********", "password is masked")
}

func TestLoadConfigRegionOverride(t *testing.T) {
	cfgPath, _ := writeFixtureConfig(t, "csv")
	cfg, err := loadConfig(&options{configPath: cfgPath, regions: []string{"91024", "91006"}, sink: "SQLite"})
	require.NoError(t, err)
	assert.Equal(t, []string{"91024", "91006"}, cfg.Run.RegionCodes)
	assert.Equal(t, "sqlite", cfg.Sink.Kind)
}

func TestLoadConfigCleansRegionFlag(t *testing.T) {
	cfgPath, _ := writeFixtureConfig(t, "csv")
	cfg, err := loadConfig(&options{configPath: cfgPath, regions: []string{" 91016", " ", "91024 "}})
	require.NoError(t, err)
	assert.Equal(t, []string{"91016", "91024"}, cfg.Run.RegionCodes)

	_, err = loadConfig(&options{configPath: cfgPath, regions: []string{" "}})
	assert.Error(t, err, "only blank regions leaves none to scrape")
}

func TestLoadConfigRejectsUnknownSink(t *testing.T) {
	cfgPath, _ := writeFixtureConfig(t, "csv")
	_, err := loadConfig(&options{configPath: cfgPath, sink: "gsheets"})
	assert.Error(t, err)
}
