package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	_ "github.com/lib/pq"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// PostgresStore backs the tracker with Postgres. Every operation runs through
// a circuit breaker with bounded retries, so a flapping database degrades into
// per-product skips instead of cascading failures.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
	cb     *gobreaker.CircuitBreaker
}

func NewPostgresStore(connStr string, logger *zap.Logger) (*PostgresStore, error) {
	pgLogger := logger.Named("postgres")

	if connStr == "" {
		return nil, fmt.Errorf("conn_str is required for the Postgres store")
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		pgLogger.Error("failed to open Postgres connection", zap.Error(err))
		return nil, fmt.Errorf("failed to open Postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		pgLogger.Error("failed to ping Postgres", zap.Error(err))
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	// Automatically create tables if they do not exist
	if _, err := db.Exec(PostgresSchema); err != nil {
		pgLogger.Error("failed to create initial tables", zap.Error(err))
		return nil, fmt.Errorf("failed to create initial tables: %w", err)
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "PostgresStore",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		IsSuccessful: func(err error) bool {
			// a missing row is an answer, not a database failure
			return err == nil || errors.Is(err, ErrNotFound)
		},
	})

	pgLogger.Info("Postgres store initialized successfully")
	return &PostgresStore{db: db, logger: pgLogger, cb: cb}, nil
}

// execute runs op through the circuit breaker with bounded retries.
func (p *PostgresStore) execute(name string, op func() (interface{}, error)) (interface{}, error) {
	var result interface{}
	var opErr error
	_ = retry.Do(
		func() error {
			res, err := p.cb.Execute(op)
			if err == nil {
				result = res
			}
			opErr = err
			return err
		},
		retry.Attempts(3),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrNotFound)
		}),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Warn("retrying "+name, zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	return result, opErr
}

func (p *PostgresStore) AddUser(ctx context.Context, userID int64) error {
	_, err := p.execute("AddUser", func() (interface{}, error) {
		_, err := p.db.ExecContext(ctx,
			`INSERT INTO users (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
		return nil, err
	})
	return err
}

func (p *PostgresStore) AddProduct(ctx context.Context, product *Product) (int64, error) {
	res, err := p.execute("AddProduct", func() (interface{}, error) {
		var id int64
		err := p.db.QueryRowContext(ctx,
			`INSERT INTO products (user_id, url, name, price) VALUES ($1, $2, $3, $4) RETURNING id`,
			product.UserID, product.URL, product.Name, product.Price).Scan(&id)
		return id, err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert product: %w", err)
	}
	product.ID = res.(int64)
	return product.ID, nil
}

func (p *PostgresStore) RemoveProduct(ctx context.Context, userID int64, url string) error {
	_, err := p.execute("RemoveProduct", func() (interface{}, error) {
		_, err := p.db.ExecContext(ctx,
			`DELETE FROM products WHERE user_id = $1 AND url = $2`, userID, url)
		return nil, err
	})
	return err
}

func (p *PostgresStore) ProductID(ctx context.Context, userID int64, url string) (int64, error) {
	res, err := p.execute("ProductID", func() (interface{}, error) {
		var id int64
		err := p.db.QueryRowContext(ctx,
			`SELECT id FROM products WHERE user_id = $1 AND url = $2`, userID, url).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return int64(0), ErrNotFound
		}
		return id, err
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

func (p *PostgresStore) ProductsByUser(ctx context.Context, userID int64) ([]Product, error) {
	return p.queryProducts(ctx, "ProductsByUser",
		`SELECT id, user_id, url, COALESCE(name, ''), COALESCE(price, '')
		 FROM products WHERE user_id = $1 ORDER BY id ASC`, userID)
}

func (p *PostgresStore) ListProducts(ctx context.Context) ([]Product, error) {
	return p.queryProducts(ctx, "ListProducts",
		`SELECT id, user_id, url, COALESCE(name, ''), COALESCE(price, '')
		 FROM products ORDER BY id ASC`)
}

func (p *PostgresStore) queryProducts(ctx context.Context, name, query string, args ...any) ([]Product, error) {
	res, err := p.execute(name, func() (interface{}, error) {
		rows, err := p.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var products []Product
		for rows.Next() {
			var pr Product
			if err := rows.Scan(&pr.ID, &pr.UserID, &pr.URL, &pr.Name, &pr.Price); err != nil {
				return nil, err
			}
			products = append(products, pr)
		}
		return products, rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	return res.([]Product), nil
}

func (p *PostgresStore) LastPrice(ctx context.Context, productID int64) (string, bool, error) {
	res, err := p.execute("LastPrice", func() (interface{}, error) {
		var price string
		err := p.db.QueryRowContext(ctx,
			`SELECT COALESCE(price, '') FROM price_history
			 WHERE product_id = $1 ORDER BY timestamp DESC, id DESC LIMIT 1`,
			productID).Scan(&price)
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return price, err
	})
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read last price: %w", err)
	}
	return res.(string), true, nil
}

func (p *PostgresStore) AppendHistory(ctx context.Context, productID int64, price string) error {
	_, err := p.execute("AppendHistory", func() (interface{}, error) {
		_, err := p.db.ExecContext(ctx,
			`INSERT INTO price_history (product_id, timestamp, price) VALUES ($1, $2, $3)`,
			productID, time.Now().UTC(), price)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

func (p *PostgresStore) SetCurrentPrice(ctx context.Context, productID int64, price string) error {
	_, err := p.execute("SetCurrentPrice", func() (interface{}, error) {
		_, err := p.db.ExecContext(ctx,
			`UPDATE products SET price = $1 WHERE id = $2`, price, productID)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to update current price: %w", err)
	}
	return nil
}

func (p *PostgresStore) PriceHistory(ctx context.Context, userID int64, url string) ([]HistoryEntry, error) {
	return p.queryHistory(ctx, "PriceHistory",
		`SELECT ph.id, ph.product_id, ph.timestamp, COALESCE(ph.price, '')
		 FROM price_history ph
		 JOIN products p ON ph.product_id = p.id
		 WHERE p.user_id = $1 AND p.url = $2
		 ORDER BY ph.timestamp ASC, ph.id ASC`, userID, url)
}

func (p *PostgresStore) HistoryByProduct(ctx context.Context, productID int64) ([]HistoryEntry, error) {
	return p.queryHistory(ctx, "HistoryByProduct",
		`SELECT id, product_id, timestamp, COALESCE(price, '')
		 FROM price_history WHERE product_id = $1
		 ORDER BY timestamp ASC, id ASC`, productID)
}

func (p *PostgresStore) queryHistory(ctx context.Context, name, query string, args ...any) ([]HistoryEntry, error) {
	res, err := p.execute(name, func() (interface{}, error) {
		rows, err := p.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var entries []HistoryEntry
		for rows.Next() {
			var e HistoryEntry
			if err := rows.Scan(&e.ID, &e.ProductID, &e.Timestamp, &e.Price); err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}
		return entries, rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return res.([]HistoryEntry), nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}
