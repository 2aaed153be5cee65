package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore keeps everything in process memory. Used by tests and as a
// throwaway development backend.
type InMemoryStore struct {
	mu       sync.RWMutex
	users    map[int64]struct{}
	products map[int64]Product
	history  map[int64][]HistoryEntry
	nextID   int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:    make(map[int64]struct{}),
		products: make(map[int64]Product),
		history:  make(map[int64][]HistoryEntry),
		nextID:   1,
	}
}

func (m *InMemoryStore) AddUser(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = struct{}{}
	return nil
}

func (m *InMemoryStore) AddProduct(ctx context.Context, p *Product) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextID
	m.nextID++
	m.products[p.ID] = *p
	return p.ID, nil
}

func (m *InMemoryStore) RemoveProduct(ctx context.Context, userID int64, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.products {
		if p.UserID == userID && p.URL == url {
			// history rows are left orphaned, same as the SQL backends
			delete(m.products, id)
		}
	}
	return nil
}

func (m *InMemoryStore) ProductID(ctx context.Context, userID int64, url string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, p := range m.products {
		if p.UserID == userID && p.URL == url {
			return id, nil
		}
	}
	return 0, ErrNotFound
}

func (m *InMemoryStore) ProductsByUser(ctx context.Context, userID int64) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var products []Product
	for _, p := range m.products {
		if p.UserID == userID {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (m *InMemoryStore) ListProducts(ctx context.Context) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	products := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (m *InMemoryStore) LastPrice(ctx context.Context, productID int64) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.history[productID]
	if len(entries) == 0 {
		return "", false, nil
	}
	return entries[len(entries)-1].Price, true, nil
}

func (m *InMemoryStore) AppendHistory(ctx context.Context, productID int64, price string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.history[productID]
	m.history[productID] = append(entries, HistoryEntry{
		ID:        int64(len(entries) + 1),
		ProductID: productID,
		Timestamp: time.Now().UTC(),
		Price:     price,
	})
	return nil
}

func (m *InMemoryStore) SetCurrentPrice(ctx context.Context, productID int64, price string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return ErrNotFound
	}
	p.Price = price
	m.products[productID] = p
	return nil
}

func (m *InMemoryStore) PriceHistory(ctx context.Context, userID int64, url string) ([]HistoryEntry, error) {
	id, err := m.ProductID(ctx, userID, url)
	if err != nil {
		return nil, nil
	}
	return m.HistoryByProduct(ctx, id)
}

func (m *InMemoryStore) HistoryByProduct(ctx context.Context, productID int64) ([]HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.history[productID]
	out := make([]HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (m *InMemoryStore) Close() error {
	return nil
}
