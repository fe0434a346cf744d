package subscription

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "hytun/pkg/errors"
)

const (
	fetchTimeout = 30 * time.Second
	fetchRetries = 3
	fetchBackoff = 2 * time.Second

	// Subscription documents are small text files; cap the body so a
	// misconfigured URL cannot feed the importer gigabytes.
	maxSubscriptionBytes = 4 << 20
)

// Fetcher downloads a subscription document and splits it into candidate
// link lines. Server errors are retried with linear backoff; client errors
// are permanent.
type Fetcher struct {
	client  *http.Client
	retries int
	backoff time.Duration
}

// NewFetcher creates a fetcher with the default timeout and retry policy.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: fetchTimeout},
		retries: fetchRetries,
		backoff: fetchBackoff,
	}
}

// FetchLines fetches url and returns its non-empty lines, trimmed.
func (f *Fetcher) FetchLines(ctx context.Context, url string) ([]string, error) {
	var lastErr error

	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.backoff * time.Duration(attempt)):
			}
		}

		lines, err := f.fetchOnce(ctx, url)
		if err == nil {
			return lines, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		var fe *pkgerrors.FetchError
		if errors.As(err, &fe) && fe.Permanent() {
			break
		}
	}

	return nil, &pkgerrors.SubscriptionError{URL: url, Err: lastErr}
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &pkgerrors.FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", "hytun/1.0")
	req.Header.Set("Accept", "text/plain, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &pkgerrors.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &pkgerrors.FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	var lines []string
	sc := bufio.NewScanner(io.LimitReader(resp.Body, maxSubscriptionBytes))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &pkgerrors.FetchError{URL: url, Err: err}
	}

	return lines, nil
}
