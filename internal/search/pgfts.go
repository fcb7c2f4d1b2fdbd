package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search matches active menu items against plainto_tsquery, ranked by
// ts_rank, with ts_headline snippets over the item name.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	ctx := context.Background()
	tsQuery := "plainto_tsquery('english', $1)"

	var total int
	countSQL := fmt.Sprintf(
		`SELECT count(*) FROM menu_items WHERE status = 'active' AND fts @@ %s`, tsQuery)
	if err := p.db.QueryRowContext(ctx, countSQL, q.Text).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT id, name,
			ts_headline('english', name, %s, 'MaxFragments=1,MaxWords=30') AS snippet
		FROM menu_items
		WHERE status = 'active' AND fts @@ %s
		ORDER BY ts_rank(fts, %s) DESC, name
		LIMIT %d OFFSET %d`, tsQuery, tsQuery, tsQuery, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, q.Text)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Name, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every menu item for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ItemRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, descriptions, status
		FROM menu_items
	`)
	if err != nil {
		return nil, fmt.Errorf("load menu items: %w", err)
	}
	defer rows.Close()

	items := make([]ItemRecord, 0)
	for rows.Next() {
		var it ItemRecord
		var descriptions []byte
		if err := rows.Scan(&it.ID, &it.Name, &descriptions, &it.Status); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		if len(descriptions) > 0 {
			if err := json.Unmarshal(descriptions, &it.Descriptions); err != nil {
				return nil, fmt.Errorf("decode menu item descriptions: %w", err)
			}
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate menu items: %w", err)
	}

	return items, nil
}
