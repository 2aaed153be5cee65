package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFactory_CreateStore_Memory(t *testing.T) {
	factory := NewFactory(zap.NewNop())

	st, err := factory.CreateStore(Config{Type: TypeMemory})
	require.NoError(t, err)
	require.IsType(t, &InMemoryStore{}, st)
}

func TestFactory_CreateStore_SQLite(t *testing.T) {
	factory := NewFactory(zap.NewNop())

	st, err := factory.CreateStore(Config{
		Type: TypeSQLite,
		Path: filepath.Join(t.TempDir(), "tracker.db"),
	})
	require.NoError(t, err)
	require.IsType(t, &SQLiteStore{}, st)
	require.NoError(t, st.Close())
}

func TestFactory_CreateStore_Unsupported(t *testing.T) {
	factory := NewFactory(zap.NewNop())

	_, err := factory.CreateStore(Config{Type: "cassandra"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported store type")
}

func TestFactory_CreateStore_PostgresRequiresDSN(t *testing.T) {
	factory := NewFactory(zap.NewNop())

	_, err := factory.CreateStore(Config{Type: TypePostgres})
	require.Error(t, err)
}
