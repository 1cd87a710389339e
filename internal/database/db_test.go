package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaFile(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "data/chat.db", schemaFile("data/chat.db"))
	assert.Equal(t, "/var/lib/chat.db", schemaFile("file:/var/lib/chat.db?_pragma=busy_timeout(1)"))
}

func TestWithPragmas(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "chat.db?"+connPragmas, withPragmas("chat.db"))
	assert.Equal(t, "chat.db?mode=ro", withPragmas("chat.db?mode=ro"))
}

func TestNewDB_CreatesDirectoryAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "chat.db")

	db, err := NewDB(path)
	require.NoError(t, err)
	var fk int
	require.NoError(t, db.Get(&fk, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, fk)
	CloseDB(db)

	db, err = NewDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { CloseDB(db) })

	var mascots int
	require.NoError(t, db.Get(&mascots, "SELECT COUNT(*) FROM mascots"))
	assert.Positive(t, mascots)
}
