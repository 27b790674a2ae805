package e2e

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/mekiki/internal/models"
)

// WriteJSONLFeed writes products to a .jsonl feed file (one product per line)
// and returns its path.
func WriteJSONLFeed(dir string, name string, products []*models.ProductInput) (string, error) {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, p := range products {
		if err := enc.Encode(p); err != nil {
			return "", err
		}
	}
	return path, nil
}

// WriteXLSXFeed writes products to a .xlsx feed file with a header row and
// returns its path.
func WriteXLSXFeed(dir string, name string, products []*models.ProductInput) (string, error) {
	path := filepath.Join(dir, name)
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{"product_id", "title", "description", "image_path"}); err != nil {
		return "", err
	}
	for i, p := range products {
		cell := fmt.Sprintf("A%d", i+2)
		row := []interface{}{p.ProductID, p.Title, p.Description, p.ImagePath}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return "", err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return "", err
	}
	return path, nil
}
