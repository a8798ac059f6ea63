package domain

// SearchRequest represents a catalog search request
type SearchRequest struct {
	Query string `json:"query" form:"q" binding:"required"`
	Limit int    `json:"limit,omitempty" form:"limit"`
}

// SearchResult is one ranked canonical product
type SearchResult struct {
	Product CanonicalProduct `json:"product"`
	Score   float64          `json:"score"`
}

// SearchResponse represents the ranked catalog answer for a query
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
	Source  string         `json:"source"` // "catalog", "index" or "cache"
}
