// Package storage provides the SQLite product metadata artifact.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/mekiki/internal/models"
)

// WriteProducts writes records in slot order to a SQLite database at path,
// atomically: the database is built under a temporary name and renamed into
// place once fully written.
func WriteProducts(path string, records []*models.Product) error {
	tmp := path + ".tmp"
	_ = os.Remove(tmp)
	db, err := sql.Open("sqlite3", tmp)
	if err != nil {
		return fmt.Errorf("failed to create products database: %w", err)
	}
	if err := writeProductsTo(db, records); err != nil {
		_ = db.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := db.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close products database: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit products database: %w", err)
	}
	return nil
}

func writeProductsTo(db *sql.DB, records []*models.Product) error {
	schema := `
	CREATE TABLE products (
		slot INTEGER PRIMARY KEY,
		product_id TEXT NOT NULL,
		title TEXT,
		description TEXT,
		image_path TEXT,
		created_at TIMESTAMP
	);`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO products (slot, product_id, title, description, image_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()
	for slot, rec := range records {
		if _, err := stmt.Exec(slot, rec.ProductID, rec.Title, rec.Description, rec.ImagePath, rec.CreatedAt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert slot %d: %w", slot, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit products: %w", err)
	}
	return nil
}

// ReadProducts reads all records from the SQLite database at path in slot
// order and verifies the slots are dense and zero-based.
func ReadProducts(path string) ([]*models.Product, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("products database missing: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open products database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(
		`SELECT slot, product_id, title, description, image_path, created_at
		 FROM products ORDER BY slot ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}
	defer rows.Close()

	records := make([]*models.Product, 0)
	for rows.Next() {
		var slot int
		var rec models.Product
		var createdAt time.Time
		if err := rows.Scan(&slot, &rec.ProductID, &rec.Title, &rec.Description, &rec.ImagePath, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if slot != len(records) {
			return nil, fmt.Errorf("product slots not dense: got %d, expected %d", slot, len(records))
		}
		rec.CreatedAt = createdAt
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return records, nil
}
