package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the default single-file backend.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	sqLogger := logger.Named("sqlite")

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// the driver serializes writes itself; a single connection keeps
	// SQLITE_BUSY out of the picture under concurrent passes
	db.SetMaxOpenConns(1)

	// Automatically create tables if they do not exist
	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create initial tables: %w", err)
	}

	sqLogger.Info("sqlite store initialized", zap.String("path", path))
	return &SQLiteStore{db: db, logger: sqLogger}, nil
}

func (s *SQLiteStore) AddUser(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (user_id) VALUES (?)`, userID)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AddProduct(ctx context.Context, p *Product) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO products (user_id, url, name, price) VALUES (?, ?, ?, ?)`,
		p.UserID, p.URL, p.Name, p.Price)
	if err != nil {
		return 0, fmt.Errorf("failed to insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted product id: %w", err)
	}
	p.ID = id
	return id, nil
}

func (s *SQLiteStore) RemoveProduct(ctx context.Context, userID int64, url string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM products WHERE user_id = ? AND url = ?`, userID, url)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ProductID(ctx context.Context, userID int64, url string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM products WHERE user_id = ? AND url = ?`, userID, url).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve product id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) ProductsByUser(ctx context.Context, userID int64) ([]Product, error) {
	return s.queryProducts(ctx,
		`SELECT id, user_id, url, COALESCE(name, ''), COALESCE(price, '')
		 FROM products WHERE user_id = ? ORDER BY id ASC`, userID)
}

func (s *SQLiteStore) ListProducts(ctx context.Context) ([]Product, error) {
	return s.queryProducts(ctx,
		`SELECT id, user_id, url, COALESCE(name, ''), COALESCE(price, '')
		 FROM products ORDER BY id ASC`)
}

func (s *SQLiteStore) queryProducts(ctx context.Context, query string, args ...any) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.UserID, &p.URL, &p.Name, &p.Price); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *SQLiteStore) LastPrice(ctx context.Context, productID int64) (string, bool, error) {
	var price string
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(price, '') FROM price_history
		 WHERE product_id = ? ORDER BY timestamp DESC, id DESC LIMIT 1`,
		productID).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read last price: %w", err)
	}
	return price, true, nil
}

func (s *SQLiteStore) AppendHistory(ctx context.Context, productID int64, price string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO price_history (product_id, timestamp, price) VALUES (?, ?, ?)`,
		productID, time.Now().UTC(), price)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetCurrentPrice(ctx context.Context, productID int64, price string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE products SET price = ? WHERE id = ?`, price, productID)
	if err != nil {
		return fmt.Errorf("failed to update current price: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PriceHistory(ctx context.Context, userID int64, url string) ([]HistoryEntry, error) {
	return s.queryHistory(ctx,
		`SELECT ph.id, ph.product_id, ph.timestamp, COALESCE(ph.price, '')
		 FROM price_history ph
		 JOIN products p ON ph.product_id = p.id
		 WHERE p.user_id = ? AND p.url = ?
		 ORDER BY ph.timestamp ASC, ph.id ASC`, userID, url)
}

func (s *SQLiteStore) HistoryByProduct(ctx context.Context, productID int64) ([]HistoryEntry, error) {
	return s.queryHistory(ctx,
		`SELECT id, product_id, timestamp, COALESCE(price, '')
		 FROM price_history WHERE product_id = ?
		 ORDER BY timestamp ASC, id ASC`, productID)
}

func (s *SQLiteStore) queryHistory(ctx context.Context, query string, args ...any) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Timestamp, &e.Price); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
