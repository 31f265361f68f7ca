package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"pricewatch-etl/internal/config"
	"pricewatch-etl/internal/models"
)

// ScrapingError reports a failed page fetch or parse below the Fetcher
// boundary.
type ScrapingError struct {
	URL string
	Err error
}

func (e *ScrapingError) Error() string {
	return fmt.Sprintf("scraping %s: %v", e.URL, e.Err)
}

func (e *ScrapingError) Unwrap() error {
	return e.Err
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:89.0) Gecko/20100101 Firefox/89.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:89.0) Gecko/20100101 Firefox/89.0",
}

// HTTPFetcher retrieves a product page and extracts the configured
// selector fields into a RawItem. Retry, rate limiting and user-agent
// rotation live here; callers above the boundary see only the field map
// or an error.
type HTTPFetcher struct {
	client        *http.Client
	breaker       *gobreaker.CircuitBreaker[string]
	limiter       *rate.Limiter
	retryAttempts int
	logger        *logrus.Logger
}

func NewHTTPFetcher(cfg *config.Config, logger *logrus.Logger) *HTTPFetcher {
	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:    "fetcher",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	delay := cfg.RequestDelay
	if delay <= 0 {
		delay = time.Second
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		breaker:       breaker,
		limiter:       rate.NewLimiter(rate.Every(delay), 1),
		retryAttempts: cfg.RetryAttempts,
		logger:        logger,
	}
}

// Fetch retrieves one URL and maps each selector field onto the raw
// item. Fields whose selector matches nothing are left absent. The
// returned item always carries the URL and a scrape timestamp.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, selectors map[string]string) (models.RawItem, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return models.RawItem{}, &ScrapingError{URL: url, Err: err}
	}

	body, err := f.breaker.Execute(func() (string, error) {
		return f.fetchPage(ctx, url)
	})
	if err != nil {
		return models.RawItem{}, &ScrapingError{URL: url, Err: err}
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return models.RawItem{}, &ScrapingError{URL: url, Err: fmt.Errorf("parsing HTML: %w", err)}
	}

	scrapedAt := time.Now().UTC().Format(time.RFC3339)
	raw := models.RawItem{URL: &url, ScrapedAt: &scrapedAt}

	for field, selector := range selectors {
		if text := ExtractText(doc, selector); text != "" {
			raw.SetField(field, text)
		}
	}

	f.logger.WithFields(logrus.Fields{
		"url":    url,
		"fields": len(selectors),
	}).Debug("Fetched product page")

	return raw, nil
}

func (f *HTTPFetcher) fetchPage(ctx context.Context, url string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < f.retryAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * time.Second
			f.logger.WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"backoff": backoff,
				"url":     url,
			}).Warn("Retrying request after backoff")

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return "", fmt.Errorf("client error: %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		return string(body), nil
	}

	return "", fmt.Errorf("all retry attempts failed, last error: %w", lastErr)
}
