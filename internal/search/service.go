package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexItems indexes menu items (fire-and-forget to Meilisearch).
func (s *Service) IndexItems(items []ItemRecord) {
	if s.meili == nil || !s.meili.Healthy() || len(items) == 0 {
		return
	}
	go func() {
		if err := s.meili.IndexItems(items); err != nil {
			log.Printf("search: index %d menu items: %v", len(items), err)
		}
	}()
}

// DeleteItem removes a menu item from the search index (fire-and-forget).
func (s *Service) DeleteItem(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteItem(id); err != nil {
			log.Printf("search: delete menu item %s: %v", id, err)
		}
	}()
}

// ReindexAllFromPG reads every menu item from PostgreSQL and pushes the
// catalog to Meilisearch. Called at startup when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	items, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if len(items) == 0 {
		return
	}
	if err := s.meili.IndexItems(items); err != nil {
		log.Printf("search: reindex menu items: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
