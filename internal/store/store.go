package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a product lookup matches nothing.
var ErrNotFound = errors.New("product not found")

// Store is the data-access layer shared by the monitor and the bot front-end.
// Every operation is individually atomic; callers never hold locks across
// calls.
type Store interface {
	// AddUser registers a user, ignoring duplicates.
	AddUser(ctx context.Context, userID int64) error

	// AddProduct inserts a product and returns its assigned id. The id is
	// also written back into p.
	AddProduct(ctx context.Context, p *Product) (int64, error)

	// RemoveProduct deletes the product identified by (userID, url). History
	// rows are left in place; they are unreachable once the product is gone.
	RemoveProduct(ctx context.Context, userID int64, url string) error

	// ProductID resolves (userID, url) to the product id, or ErrNotFound.
	ProductID(ctx context.Context, userID int64, url string) (int64, error)

	// ProductsByUser lists one user's products in insertion order.
	ProductsByUser(ctx context.Context, userID int64) ([]Product, error)

	// ListProducts lists every tracked product across all users.
	ListProducts(ctx context.Context) ([]Product, error)

	// LastPrice returns the most recent history price for a product. found is
	// false when the product has no history yet.
	LastPrice(ctx context.Context, productID int64) (price string, found bool, err error)

	// AppendHistory records a price observation with the current timestamp.
	AppendHistory(ctx context.Context, productID int64, price string) error

	// SetCurrentPrice updates the product's most-recently-observed price.
	SetCurrentPrice(ctx context.Context, productID int64, price string) error

	// PriceHistory lists a product's history by (userID, url), oldest first.
	PriceHistory(ctx context.Context, userID int64, url string) ([]HistoryEntry, error)

	// HistoryByProduct lists a product's history by id, oldest first.
	HistoryByProduct(ctx context.Context, productID int64) ([]HistoryEntry, error)

	Close() error
}
