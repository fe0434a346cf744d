package subscription

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"hytun/internal/node"
	"hytun/internal/storage/models"
	pkgerrors "hytun/pkg/errors"
)

// Manager imports Hysteria2 nodes from subscription URLs. A subscription is
// a plain text document with one share link per line; lines that are not
// hy2 links are skipped.
type Manager struct {
	registry *node.Registry
	fetcher  *Fetcher
}

// NewManager creates a new subscription manager
func NewManager(registry *node.Registry) *Manager {
	return &Manager{
		registry: registry,
		fetcher:  NewFetcher(),
	}
}

// ImportResult represents the result of one subscription import.
type ImportResult struct {
	URL        string    `json:"url"`
	Name       string    `json:"name"`
	Added      int       `json:"added"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	TotalLinks int       `json:"total_links"`
	ImportedAt time.Time `json:"imported_at"`
	Errors     []error   `json:"-"`
}

// Import fetches a subscription URL, parses every hy2 link in it, and adds
// the non-duplicate nodes to the registry tagged with the source. The
// source entry is recorded on the registry document.
func (m *Manager) Import(ctx context.Context, url, name string) (*ImportResult, error) {
	if name == "" {
		name = url
	}

	lines, err := m.fetcher.FetchLines(ctx, url)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{
		URL:        url,
		Name:       name,
		ImportedAt: time.Now(),
	}

	for _, line := range lines {
		if !strings.HasPrefix(line, "hy2://") && !strings.HasPrefix(line, "hysteria2://") && !strings.HasPrefix(line, "hysteria://") {
			continue
		}
		result.TotalLinks++

		_, err := m.registry.AddFromSource(line, "subscription")
		switch {
		case err == nil:
			result.Added++
		case errors.Is(err, pkgerrors.ErrDuplicateNode):
			result.Skipped++
		default:
			result.Failed++
			result.Errors = append(result.Errors, err)
		}
	}

	if result.TotalLinks == 0 {
		return nil, &pkgerrors.SubscriptionError{
			URL:  url,
			Name: name,
			Err:  pkgerrors.ErrSubscriptionEmpty,
		}
	}

	sub := &models.Subscription{
		URL:        url,
		Name:       name,
		LastImport: &result.ImportedAt,
		NodeCount:  result.Added,
	}
	if err := m.registry.RecordSubscription(sub); err != nil {
		slog.Error("failed to record subscription source", "url", url, "error", err)
	}

	return result, nil
}

// RefreshAll re-imports every recorded subscription source concurrently.
// One failing source does not abort the others.
func (m *Manager) RefreshAll(ctx context.Context) []*ImportResult {
	subs := m.registry.Subscriptions()
	if len(subs) == 0 {
		return nil
	}

	results := make([]*ImportResult, len(subs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, sub := range subs {
		i, sub := i, sub
		g.Go(func() error {
			res, err := m.Import(gctx, sub.URL, sub.Name)
			if err != nil {
				slog.Warn("subscription refresh failed", "url", sub.URL, "error", err)
				results[i] = &ImportResult{URL: sub.URL, Name: sub.Name, Errors: []error{err}}
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return results
}
