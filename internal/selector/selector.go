// Package selector chooses inspection candidates by priority policy.
package selector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voralis/indexwatch/internal/indexer"
)

// Policies controls which candidate categories a selection draws from.
// All three call sites (interactive inspect, interactive submit, autonomous
// sweep) share this single merge so their semantics cannot drift.
type Policies struct {
	NeverInspected  bool
	RecentlyUpdated bool
	OldestInspected bool
}

// Selector returns a priority-ordered, deduplicated candidate list.
type Selector struct {
	catalog indexer.CatalogStore
	logger  *zap.Logger
}

// New constructs a Selector.
func New(catalog indexer.CatalogStore, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{catalog: catalog, logger: logger}
}

// Select merges the active policies in priority order: never-inspected
// first, then entries updated since their last inspection, then staleest
// inspections. A URL claimed by an earlier category is excluded from the
// later ones; the result never exceeds max entries. A non-positive max
// yields an empty list, and a shortage of candidates is not an error.
func (s *Selector) Select(ctx context.Context, propertyID string, max int, policies Policies) ([]indexer.CatalogEntry, error) {
	if max <= 0 {
		return nil, nil
	}

	var selected []indexer.CatalogEntry
	seen := make(map[string]struct{})

	appendEntries := func(entries []indexer.CatalogEntry) {
		for _, e := range entries {
			if len(selected) >= max {
				return
			}
			if _, dup := seen[e.URL]; dup {
				continue
			}
			seen[e.URL] = struct{}{}
			selected = append(selected, e)
		}
	}

	if policies.NeverInspected {
		entries, err := s.catalog.ListNeverInspected(ctx, propertyID, max)
		if err != nil {
			return nil, fmt.Errorf("list never-inspected: %w", err)
		}
		appendEntries(entries)
	}

	if policies.RecentlyUpdated && len(selected) < max {
		entries, err := s.catalog.ListUpdatedSinceInspection(ctx, propertyID, max-len(selected), urls(selected))
		if err != nil {
			return nil, fmt.Errorf("list updated: %w", err)
		}
		appendEntries(entries)
	}

	if policies.OldestInspected && len(selected) < max {
		entries, err := s.catalog.ListOldestInspected(ctx, propertyID, max-len(selected), urls(selected))
		if err != nil {
			return nil, fmt.Errorf("list oldest-inspected: %w", err)
		}
		appendEntries(entries)
	}

	s.logger.Debug("candidates selected",
		zap.String("property_id", propertyID),
		zap.Int("requested", max),
		zap.Int("selected", len(selected)),
	)
	return selected, nil
}

func urls(entries []indexer.CatalogEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.URL)
	}
	return out
}
