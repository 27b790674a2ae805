package models

import "fmt"

// SearchMode selects which modality a search request runs against.
type SearchMode string

const (
	// ModeText ranks by text embedding similarity.
	ModeText SearchMode = "text"
	// ModeImage ranks by image embedding similarity.
	ModeImage SearchMode = "image"
	// ModeHybrid fuses text and image similarity with TextWeight.
	ModeHybrid SearchMode = "hybrid"
	// ModeKeyword ranks by exact keyword match over title and description.
	ModeKeyword SearchMode = "keyword"
)

// SearchQuery represents a search request. Query carries the text (for text,
// hybrid, and keyword modes); ImagePath points at a query photo (for image and
// hybrid modes). Hybrid requests may supply either or both.
type SearchQuery struct {
	Mode       SearchMode `json:"mode,omitempty"`
	Query      string     `json:"query,omitempty"`
	ImagePath  string     `json:"image_path,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	TextWeight *float64   `json:"text_weight,omitempty"` // hybrid only; nil = server default
}

// Validate ensures the search query has valid fields and applies defaults.
func (q *SearchQuery) Validate() error {
	if q.Mode == "" {
		q.Mode = ModeHybrid
	}
	switch q.Mode {
	case ModeText, ModeKeyword:
		if q.Query == "" {
			return fmt.Errorf("query cannot be empty for %s search", q.Mode)
		}
	case ModeImage:
		if q.ImagePath == "" {
			return fmt.Errorf("image_path cannot be empty for image search")
		}
	case ModeHybrid:
		if q.Query == "" && q.ImagePath == "" {
			return fmt.Errorf("hybrid search requires query text, an image path, or both")
		}
	default:
		return fmt.Errorf("unknown search mode: %s", q.Mode)
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.TextWeight != nil && (*q.TextWeight < 0 || *q.TextWeight > 1) {
		return fmt.Errorf("text_weight must be in [0,1], got %v", *q.TextWeight)
	}
	return nil
}
