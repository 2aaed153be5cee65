package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Sentinel values returned when the page loads but the expected markup is
// missing. These are successes: retrying cannot fix a changed layout.
const (
	NameUnavailable  = "name unavailable"
	PriceUnavailable = "price unavailable"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/87.0.4280.141 Safari/537.36"

// Fetcher extracts a product's display name and price from its page.
// Implementations must be safe for concurrent use.
type Fetcher interface {
	FetchProduct(ctx context.Context, productURL string) (name string, price string, err error)
}

// StatusError reports a non-2xx response from the product page.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.Code)
}

// Options configure the HTTP side of the fetcher.
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
}

// AmazonFetcher scrapes Amazon product pages. Outbound requests are paced by
// a shared rate limiter so concurrent fetch slots stay polite to the site.
type AmazonFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewAmazonFetcher(opts Options, logger *zap.Logger) *AmazonFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	client := &http.Client{
		Timeout: opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return &AmazonFetcher{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger.Named("fetch"),
	}
}

func (f *AmazonFetcher) FetchProduct(ctx context.Context, productURL string) (string, string, error) {
	if err := validateURL(productURL); err != nil {
		return "", "", err
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, productURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch %s: %w", productURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", &StatusError{Code: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse page: %w", err)
	}

	name := strings.TrimSpace(doc.Find("span#productTitle").First().Text())
	if name == "" {
		name = NameUnavailable
	}
	price := extractPrice(doc)

	f.logger.Debug("fetched product",
		zap.String("url", productURL),
		zap.String("name", name),
		zap.String("price", price))
	return name, price, nil
}

// extractPrice joins the whole and fractional price parts the way the page
// renders them, e.g. "1,299" + "99" -> "1299,99 €".
func extractPrice(doc *goquery.Document) string {
	whole := strings.TrimSpace(doc.Find("span.a-price-whole").First().Text())
	fraction := strings.TrimSpace(doc.Find("span.a-price-fraction").First().Text())
	if whole == "" || fraction == "" {
		return PriceUnavailable
	}
	whole = strings.ReplaceAll(whole, ",", "")
	return fmt.Sprintf("%s,%s €", whole, fraction)
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s (only http and https are allowed)", parsed.Scheme)
	}
	return nil
}
