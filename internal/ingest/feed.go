// Package ingest loads product feeds into the engine: parsing feed files,
// encoding each product, and inserting it into the indices.
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/mekiki/internal/models"
)

// ParseFeed reads a product feed file. Supported formats: .jsonl (one JSON
// product per line) and .xlsx (first sheet, header row naming product_id,
// title, description, image_path in any order).
func ParseFeed(path string) ([]*models.ProductInput, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		return parseJSONL(path)
	case ".xlsx":
		return parseXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported feed format: %s", filepath.Ext(path))
	}
}

func parseJSONL(path string) ([]*models.ProductInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	var inputs []*models.ProductInput
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var input models.ProductInput
		if err := json.Unmarshal([]byte(text), &input); err != nil {
			return nil, fmt.Errorf("feed line %d: %w", line, err)
		}
		inputs = append(inputs, &input)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	return inputs, nil
}

func parseXLSX(path string) ([]*models.ProductInput, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open Excel feed: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("Excel feed has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("Excel feed is empty")
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"title", "image_path"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("Excel feed missing column %q", required)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	inputs := make([]*models.ProductInput, 0, len(rows)-1)
	for _, row := range rows[1:] {
		input := &models.ProductInput{
			ProductID:   cell(row, "product_id"),
			Title:       cell(row, "title"),
			Description: cell(row, "description"),
			ImagePath:   cell(row, "image_path"),
		}
		if input.Title == "" && input.ImagePath == "" {
			continue
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}
