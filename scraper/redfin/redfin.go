// Package redfin loads Redfin search result pages in headless Chrome and
// extracts one raw record per listing card.
package redfin

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"flipscout/config"
	"flipscout/models"
	"flipscout/utils"
)

const defaultPageTimeout = 90 * time.Second

// Scraper drives one shared headless browser. Every page gets its own tab.
type Scraper struct {
	cfg    config.Source
	logger *utils.Logger

	once          sync.Once
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	browserErr    error
}

// New creates a Scraper. The browser starts on first use.
func New(cfg config.Source, logger *utils.Logger) *Scraper {
	return &Scraper{cfg: cfg, logger: logger}
}

func (s *Scraper) Name() string { return "redfin" }

// SearchURL is the zip code search page; with sold set it shows homes sold
// within the configured sale period instead of active listings.
func (s *Scraper) SearchURL(region string, sold bool) string {
	u := strings.TrimRight(s.cfg.BaseURL, "/") + "/zipcode/" + region
	if sold {
		u += "/filter/include=sold-" + s.cfg.SalePeriod
	}
	return u
}

func (s *Scraper) Active(ctx context.Context, region string) ([]models.RawRecord, error) {
	return s.scrapePage(ctx, s.SearchURL(region, false), region)
}

func (s *Scraper) Sold(ctx context.Context, region string) ([]models.RawRecord, error) {
	return s.scrapePage(ctx, s.SearchURL(region, true), region)
}

// Close shuts the browser down.
func (s *Scraper) Close() error {
	if s.cancelBrowser != nil {
		s.cancelBrowser()
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
	}
	return nil
}

// browser starts the shared Chrome process once. Tabs opened from the
// returned context reuse that process.
func (s *Scraper) browser() (context.Context, error) {
	s.once.Do(func() {
		chromeBin := s.cfg.ChromeBin
		if chromeBin == "" {
			chromeBin = findChromeBinary()
		}
		s.logger.Info("[redfin] Using browser binary: %s", chromeBin)

		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
				"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		)
		if chromeBin != "" {
			opts = append(opts, chromedp.ExecPath(chromeBin))
		}
		var allocCtx context.Context
		allocCtx, s.cancelAlloc = chromedp.NewExecAllocator(context.Background(), opts...)

		// Suppress chromedp log noise
		s.browserCtx, s.cancelBrowser = chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))
		// An empty Run launches the browser so later tabs attach to it.
		if err := chromedp.Run(s.browserCtx); err != nil {
			s.browserErr = fmt.Errorf("start browser: %w", err)
		}
	})
	return s.browserCtx, s.browserErr
}

func (s *Scraper) scrapePage(ctx context.Context, pageURL, region string) ([]models.RawRecord, error) {
	browserCtx, err := s.browser()
	if err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	timeout := time.Duration(s.cfg.PageTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = defaultPageTimeout
	}
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	defer cancelTimeout()

	s.logger.Debug("[redfin] Loading %s", pageURL)

	var cards []map[string]any
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(5*time.Second),

		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(2*time.Second),

		chromedp.Evaluate(extractListingsJS, &cards),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("chromedp %s: %w", pageURL, err)
	}

	recs := make([]models.RawRecord, 0, len(cards))
	for _, c := range cards {
		if zip, _ := c["zip"].(string); zip == "" {
			c["zip"] = region
		}
		recs = append(recs, models.RawRecord(c))
	}
	s.logger.Debug("[redfin] %s: %d cards", pageURL, len(recs))
	return recs, nil
}

// extractListingsJS reads the schema.org blocks Redfin embeds for each
// result and falls back to the visible home cards. Keys use the spellings
// the normalizer knows.
const extractListingsJS = `
(function() {
	var results = [];
	var seen = {};

	function num(text) {
		if (text === undefined || text === null) return null;
		var m = String(text).replace(/,/g, '').match(/-?\d+(\.\d+)?/);
		return m ? parseFloat(m[0]) : null;
	}

	var blocks = document.querySelectorAll('script[type="application/ld+json"]');
	for (var i = 0; i < blocks.length; i++) {
		var data;
		try { data = JSON.parse(blocks[i].textContent); } catch (e) { continue; }
		var items = Array.isArray(data) ? data : [data];
		for (var j = 0; j < items.length; j++) {
			var home = items[j];
			if (!home || !home.url || seen[home.url]) continue;
			var types = [].concat(home['@type'] || []);
			var residence = types.some(function(t) {
				return /Residence|House|Apartment|SingleFamily|Product/.test(t);
			});
			if (!residence) continue;
			seen[home.url] = true;

			var offer = home.offers || (home.mainEntity && home.mainEntity.offers) || {};
			var addr = home.address || {};
			var geo = home.geo || {};
			results.push({
				url: home.url,
				streetLine: addr.streetAddress || home.name || '',
				zip: addr.postalCode || '',
				price: offer.price || null,
				sqft: home.floorSize ? num(home.floorSize.value) : null,
				beds: home.numberOfRooms || null,
				baths: home.numberOfBathroomsTotal || null,
				yearBuilt: home.yearBuilt || null,
				propertyType: types.filter(function(t) { return t !== 'Product'; })[0] || '',
				latitude: geo.latitude || null,
				longitude: geo.longitude || null,
				photos: [].concat(home.image || []),
				description: home.description || ''
			});
		}
	}
	if (results.length > 0) return results;

	var cards = document.querySelectorAll('[data-rf-test-name="mapHomeCard"], .HomeCardContainer, .bp-Homecard');
	for (var k = 0; k < cards.length; k++) {
		var card = cards[k];
		var link = card.querySelector('a[href*="/home/"]');
		if (!link || seen[link.href]) continue;
		seen[link.href] = true;

		var stats = card.innerText.split('\n').map(function(l) { return l.trim(); }).filter(Boolean);
		var find = function(re) { return stats.find(function(l) { return re.test(l); }) || ''; };
		var imgs = Array.prototype.map.call(card.querySelectorAll('img'), function(img) { return img.src; })
			.filter(function(src) { return src && src.indexOf('http') === 0; });

		results.push({
			url: link.href,
			streetLine: (card.querySelector('.bp-Homecard__Address, .homeAddressV2, [class*="address"]') || {}).innerText || '',
			price: num(find(/^\$[\d,]+/)),
			sqft: num(find(/sq\.?\s*ft/i)),
			beds: num(find(/beds?$/i)),
			baths: num(find(/baths?$/i)),
			soldDate: find(/^SOLD /i).replace(/^SOLD\s+/i, ''),
			photos: imgs
		});
	}
	return results;
})()
`

// findChromeBinary returns the browser path, checking CHROME_BIN, the PATH
// and the usual install locations. An empty result lets chromedp pick.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
