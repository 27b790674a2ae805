package models

// SearchResult represents a single search hit. Score is the similarity of the
// winning slot for this product (inner product of unit vectors, [-1,1]).
// For hybrid searches HybridScore, TextComponent, and ImageComponent are set
// and Score mirrors HybridScore.
type SearchResult struct {
	Slot           int      `json:"slot"`
	Product        *Product `json:"product"`
	Score          float64  `json:"score"`
	HybridScore    float64  `json:"hybrid_score,omitempty"`
	TextComponent  float64  `json:"text_component,omitempty"`
	ImageComponent float64  `json:"image_component,omitempty"`
	Rank           int      `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	Mode      SearchMode      `json:"mode"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query,omitempty"`
}
