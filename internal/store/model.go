package store

import "time"

// Product is a tracked product page owned by a single user. Identity is
// (UserID, URL); ID is assigned by the store on insert.
type Product struct {
	ID     int64  `db:"id" json:"id"`
	UserID int64  `db:"user_id" json:"user_id"`
	URL    string `db:"url" json:"url"`
	Name   string `db:"name" json:"name"`
	Price  string `db:"price" json:"price"`
}

// HistoryEntry is one append-only price observation for a product. Entries are
// never mutated or deleted.
type HistoryEntry struct {
	ID        int64     `db:"id" json:"id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	Price     string    `db:"price" json:"price"`
}

// Schema is the SQL schema for the users, products and price_history tables
// (sqlite dialect).
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS products (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    url TEXT NOT NULL,
    name TEXT,
    price TEXT,
    FOREIGN KEY (user_id) REFERENCES users(user_id)
);

CREATE TABLE IF NOT EXISTS price_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    product_id INTEGER NOT NULL,
    timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    price TEXT,
    FOREIGN KEY (product_id) REFERENCES products(id)
);

CREATE INDEX IF NOT EXISTS idx_product_id ON price_history(product_id);
`

// PostgresSchema is the same schema in the Postgres dialect.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS users (
    user_id BIGINT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS products (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(user_id),
    url TEXT NOT NULL,
    name TEXT,
    price TEXT
);

CREATE TABLE IF NOT EXISTS price_history (
    id BIGSERIAL PRIMARY KEY,
    product_id BIGINT NOT NULL REFERENCES products(id),
    timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
    price TEXT
);

CREATE INDEX IF NOT EXISTS idx_price_history_product_id ON price_history(product_id);
`
