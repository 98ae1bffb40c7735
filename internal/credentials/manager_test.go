package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_LoadAbsentTokenIsValid(t *testing.T) {
	m := NewManager(NewMemoryStore(), nil)
	m.Load()

	_, ok := m.Token()
	assert.False(t, ok)
}

func TestManager_SaveThenToken(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, nil)

	require.NoError(t, m.Save("tok-abc"))

	token, ok := m.Token()
	assert.True(t, ok)
	assert.Equal(t, "tok-abc", token)

	// Persisted too: a fresh manager over the same store sees it.
	m2 := NewManager(store, nil)
	m2.Load()
	token, ok = m2.Token()
	assert.True(t, ok)
	assert.Equal(t, "tok-abc", token)
}

func TestManager_Clear(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, nil)
	require.NoError(t, m.Save("tok-abc"))

	require.NoError(t, m.Clear())

	_, ok := m.Token()
	assert.False(t, ok)

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_SaveStorageFailureKeepsMemory(t *testing.T) {
	store := NewMemoryStore()
	store.FailSaves = errors.New("disk full")
	m := NewManager(store, nil)

	err := m.Save("tok-abc")
	assert.Error(t, err)

	// The running session is still usable.
	token, ok := m.Token()
	assert.True(t, ok)
	assert.Equal(t, "tok-abc", token)
}

func TestManager_ClearStorageFailureStillClearsMemory(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, nil)
	require.NoError(t, m.Save("tok-abc"))

	store.FailSaves = errors.New("disk full")
	assert.Error(t, m.Clear())

	_, ok := m.Token()
	assert.False(t, ok)
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	store := NewFileStore(path)

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save("tok-persisted"))

	// A new store instance over the same path sees the token.
	token, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-persisted", token)
}

func TestFileStore_ClearRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := NewFileStore(path)
	require.NoError(t, store.Save("tok"))

	require.NoError(t, store.Clear())

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNotFound)

	// Clearing twice is fine.
	assert.NoError(t, store.Clear())
}

func TestFileStore_CorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := NewFileStore(path)
	require.NoError(t, store.Save("tok"))

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := store.Load()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
