package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// runs the shared behavior suite against every embeddable backend
func testStores(t *testing.T) map[string]Store {
	t.Helper()

	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tracker.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]Store{
		"memory": NewInMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func TestStore_AddAndListProducts(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, st.AddUser(ctx, 100))
			require.NoError(t, st.AddUser(ctx, 100), "AddUser must be idempotent")

			p1 := Product{UserID: 100, URL: "https://amazon.de/dp/1", Name: "Keyboard", Price: "49,99 €"}
			id1, err := st.AddProduct(ctx, &p1)
			require.NoError(t, err)
			require.NotZero(t, id1)
			require.Equal(t, id1, p1.ID, "id must be written back")

			p2 := Product{UserID: 200, URL: "https://amazon.de/dp/2", Name: "Mouse", Price: "19,99 €"}
			_, err = st.AddProduct(ctx, &p2)
			require.NoError(t, err)

			all, err := st.ListProducts(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)

			mine, err := st.ProductsByUser(ctx, 100)
			require.NoError(t, err)
			require.Len(t, mine, 1)
			require.Equal(t, "Keyboard", mine[0].Name)

			resolved, err := st.ProductID(ctx, 100, p1.URL)
			require.NoError(t, err)
			require.Equal(t, id1, resolved)

			_, err = st.ProductID(ctx, 100, "https://amazon.de/dp/unknown")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_RemoveProduct(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			p := Product{UserID: 100, URL: "https://amazon.de/dp/1", Name: "Keyboard"}
			_, err := st.AddProduct(ctx, &p)
			require.NoError(t, err)

			require.NoError(t, st.RemoveProduct(ctx, 100, p.URL))

			_, err = st.ProductID(ctx, 100, p.URL)
			require.ErrorIs(t, err, ErrNotFound)

			// removing again is a no-op
			require.NoError(t, st.RemoveProduct(ctx, 100, p.URL))
		})
	}
}

func TestStore_HistoryAndLastPrice(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			p := Product{UserID: 100, URL: "https://amazon.de/dp/1", Name: "Keyboard"}
			id, err := st.AddProduct(ctx, &p)
			require.NoError(t, err)

			_, found, err := st.LastPrice(ctx, id)
			require.NoError(t, err)
			require.False(t, found, "no history yet")

			require.NoError(t, st.AppendHistory(ctx, id, "999,99 €"))
			require.NoError(t, st.AppendHistory(ctx, id, "49,99 €"))
			require.NoError(t, st.AppendHistory(ctx, id, "39,99 €"))

			last, found, err := st.LastPrice(ctx, id)
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, "39,99 €", last)

			entries, err := st.HistoryByProduct(ctx, id)
			require.NoError(t, err)
			require.Len(t, entries, 3)
			require.Equal(t, "999,99 €", entries[0].Price, "oldest first")
			require.Equal(t, "39,99 €", entries[2].Price)
			require.False(t, entries[0].Timestamp.After(entries[2].Timestamp),
				"timestamps must be non-decreasing")

			byURL, err := st.PriceHistory(ctx, 100, p.URL)
			require.NoError(t, err)
			require.Equal(t, entries, byURL)
		})
	}
}

func TestStore_SetCurrentPrice(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			p := Product{UserID: 100, URL: "https://amazon.de/dp/1", Name: "Keyboard", Price: "49,99 €"}
			id, err := st.AddProduct(ctx, &p)
			require.NoError(t, err)

			require.NoError(t, st.SetCurrentPrice(ctx, id, "39,99 €"))

			products, err := st.ProductsByUser(ctx, 100)
			require.NoError(t, err)
			require.Len(t, products, 1)
			require.Equal(t, "39,99 €", products[0].Price)
		})
	}
}

func TestStore_HistoryOfUnknownURL(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			entries, err := st.PriceHistory(context.Background(), 1, "https://amazon.de/dp/nope")
			require.NoError(t, err)
			require.Empty(t, entries)
		})
	}
}
