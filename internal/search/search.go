// Package search provides menu-item lookup for the item picker:
// Meilisearch first, PostgreSQL fallback.
package search

// ItemRecord is the data we index per menu item.
type ItemRecord struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Descriptions []string `json:"descriptions"`
	Status       string   `json:"status"`
}

// Result is a single search hit returned to the caller.
type Result struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Snippet string `json:"snippet,omitempty"`
}

// Query describes an item search request.
type Query struct {
	Text   string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}
