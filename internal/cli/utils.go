// Package cli provides CLI output utilities for Mekiki.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hyperjump/mekiki/internal/models"
	"github.com/hyperjump/mekiki/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact is one result per line, for piping into other tools.
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		writeSearchResultsCompact(w, response)
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms (%s search)\n\n",
		response.Total, response.QueryTime, response.Mode)
	for _, result := range response.Results {
		writeOneResult(w, result, response.Mode)
	}
}

func writeOneResult(w io.Writer, result *models.SearchResult, mode models.SearchMode) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	if mode == models.ModeHybrid {
		fmt.Fprintf(w, "Rank: %d | Score: %.4f (Text: %.4f, Image: %.4f)\n",
			result.Rank, result.HybridScore, result.TextComponent, result.ImageComponent)
	} else {
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", result.Rank, result.Score)
	}
	fmt.Fprintf(w, "ID: %s\n", result.Product.ProductID)
	if result.Product.Title != "" {
		fmt.Fprintf(w, "Title: %s\n", result.Product.Title)
	}
	if result.Product.Description != "" {
		fmt.Fprintf(w, "\n%s\n", utils.Truncate(result.Product.Description, 200))
	}
	fmt.Fprintln(w)
}

func writeSearchResultsCompact(w io.Writer, response *models.SearchResponse) {
	for _, result := range response.Results {
		fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\n",
			result.Rank, result.Score, result.Product.ProductID,
			utils.Truncate(result.Product.Title, 80))
	}
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}
