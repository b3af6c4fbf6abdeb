// Package scraper extracts the gold price from the target page by rendering
// it in a headless browser and pattern-matching the visible text. The page
// is script-rendered, so a plain HTTP fetch sees no price at all.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

var (
	// ErrMarkerTimeout means the unit marker never appeared within the wait
	// window. Distinct from a page that loads but has changed content.
	ErrMarkerTimeout = errors.New("scraper: timed out waiting for price marker")
	// ErrPatternNotFound means the marker was present but no price matched
	// the extraction pattern.
	ErrPatternNotFound = errors.New("scraper: price pattern not found on page")
)

// Extractor fetches a single price quote from a URL.
type Extractor interface {
	FetchPrice(ctx context.Context, url string) (Quote, error)
}

// Options parameterise the headless browser session.
type Options struct {
	UserAgent   string
	WaitTimeout time.Duration
}

// Browser drives a headless Chrome instance to extract quotes. Each fetch
// runs in an isolated browser context that is torn down on every exit path.
type Browser struct {
	opts   Options
	logger zerolog.Logger
}

// NewBrowser constructs a browser-backed extractor.
func NewBrowser(opts Options, logger zerolog.Logger) *Browser {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 30 * time.Second
	}
	return &Browser{
		opts:   opts,
		logger: logger.With().Str("component", "scraper").Logger(),
	}
}

const markerPollJS = `document.body && document.body.innerText.includes("` + Unit + `")`

// FetchPrice renders url, waits for the unit marker to appear in the visible
// text, and extracts the first matching price.
func (b *Browser) FetchPrice(ctx context.Context, url string) (Quote, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if b.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(b.opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	b.logger.Debug().Str("url", url).Msg("navigating to target page")

	if err := chromedp.Run(browserCtx, chromedp.Navigate(url)); err != nil {
		return Quote{}, fmt.Errorf("scraper: navigate %s: %w", url, err)
	}

	var markerPresent bool
	err := chromedp.Run(browserCtx,
		chromedp.Poll(markerPollJS, &markerPresent, chromedp.WithPollingTimeout(b.opts.WaitTimeout)),
	)
	if err != nil {
		if errors.Is(err, chromedp.ErrPollingTimeout) {
			return Quote{}, ErrMarkerTimeout
		}
		return Quote{}, fmt.Errorf("scraper: wait for marker: %w", err)
	}

	var bodyText string
	if err := chromedp.Run(browserCtx,
		chromedp.Evaluate(`document.body.innerText`, &bodyText),
	); err != nil {
		return Quote{}, fmt.Errorf("scraper: read page text: %w", err)
	}

	quote, err := ParseQuote(bodyText)
	if err != nil {
		return Quote{}, err
	}

	b.logger.Debug().Str("price", quote.Price.String()).Str("raw", quote.RawMatch).Msg("price extracted")
	return quote, nil
}

var _ Extractor = (*Browser)(nil)
