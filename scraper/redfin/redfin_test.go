package redfin

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"flipscout/config"
	"flipscout/utils"
)

func TestSearchURL(t *testing.T) {
	s := New(config.Source{BaseURL: "https://www.redfin.com/", SalePeriod: "1yr"}, utils.NewLogger())

	tests := []struct {
		region string
		sold   bool
		want   string
	}{
		{"91016", false, "https://www.redfin.com/zipcode/91016"},
		{"91016", true, "https://www.redfin.com/zipcode/91016/filter/include=sold-1yr"},
	}
	for _, tt := range tests {
		if got := s.SearchURL(tt.region, tt.sold); got != tt.want {
			t.Errorf("SearchURL(%q, %v) = %q; want %q", tt.region, tt.sold, got, tt.want)
		}
	}
}

func TestFindChromeBinaryPrefersEnv(t *testing.T) {
	t.Setenv("CHROME_BIN", "/custom/chrome")
	if got := findChromeBinary(); got != "/custom/chrome" {
		t.Errorf("findChromeBinary() = %q; want %q", got, "/custom/chrome")
	}
}

func TestCloseWithoutBrowser(t *testing.T) {
	s := New(config.Source{}, utils.NewLogger())
	if err := s.Close(); err != nil {
		t.Errorf("Close() = %v; want nil", err)
	}
}

func TestBrowserStartedOnceAndShared(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-chrome")
	s := New(config.Source{BaseURL: "https://www.redfin.com", ChromeBin: missing}, utils.NewLogger())
	defer s.Close()

	first, err := s.browser()
	if err == nil || !strings.Contains(err.Error(), "start browser") {
		t.Fatalf("browser() with missing binary: err = %v; want start browser error", err)
	}
	second, err2 := s.browser()
	if first != second || err2 != err {
		t.Error("browser() should return the same context and error on every call")
	}

	for _, region := range []string{"91016", "91024"} {
		if _, err := s.Active(context.Background(), region); err != err2 {
			t.Errorf("Active(%s) = %v; want the shared start error", region, err)
		}
	}
}
