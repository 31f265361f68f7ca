package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch-etl/internal/config"
)

func testFetcher() *HTTPFetcher {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewHTTPFetcher(&config.Config{
		HTTPTimeout:   5 * time.Second,
		RetryAttempts: 3,
		RequestDelay:  time.Millisecond,
	}, logger)
}

var defaultSelectors = map[string]string{
	"title":        "h1",
	"price":        ".price",
	"availability": ".stock-status",
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		io.WriteString(w, productPage)
	}))
	defer server.Close()

	f := testFetcher()
	raw, err := f.Fetch(context.Background(), server.URL, defaultSelectors)
	require.NoError(t, err)

	require.NotNil(t, raw.Title)
	assert.Equal(t, "Sony Playstation 5", *raw.Title)
	require.NotNil(t, raw.Price)
	assert.Equal(t, "Was $599.99 Now $499.99", *raw.Price)
	require.NotNil(t, raw.Availability)
	assert.Equal(t, "In Stock", *raw.Availability)

	require.NotNil(t, raw.URL)
	assert.Equal(t, server.URL, *raw.URL)
	require.NotNil(t, raw.ScrapedAt)
	_, err = time.Parse(time.RFC3339, *raw.ScrapedAt)
	assert.NoError(t, err)
}

func TestFetchMissingSelectorsLeftAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><h1>Bare Page</h1></body></html>`)
	}))
	defer server.Close()

	f := testFetcher()
	raw, err := f.Fetch(context.Background(), server.URL, defaultSelectors)
	require.NoError(t, err)

	require.NotNil(t, raw.Title)
	assert.Equal(t, "Bare Page", *raw.Title)
	assert.Nil(t, raw.Price)
	assert.Nil(t, raw.Availability)
}

func TestFetchClientErrorDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := testFetcher()
	_, err := f.Fetch(context.Background(), server.URL, defaultSelectors)

	require.Error(t, err)
	var scrapeErr *ScrapingError
	require.ErrorAs(t, err, &scrapeErr)
	assert.Equal(t, server.URL, scrapeErr.URL)
	assert.Contains(t, err.Error(), "client error: 404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, productPage)
	}))
	defer server.Close()

	f := testFetcher()
	raw, err := f.Fetch(context.Background(), server.URL, defaultSelectors)

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	require.NotNil(t, raw.Title)
	assert.Equal(t, "Sony Playstation 5", *raw.Title)
}

func TestFetchContextCancelled(t *testing.T) {
	f := testFetcher()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "https://example.com", defaultSelectors)
	require.Error(t, err)
}
