package statestore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hzleung/readsync/internal/entities"
)

func TestExportAll(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	store := New(db)

	require.NoError(t, store.SaveBookCheckpoint("b1", 42))
	require.NoError(t, store.MarkBookSynced("b1"))

	data, err := store.ExportAll()
	require.NoError(t, err)
	assert.Equal(t, "42", data[entities.SettingKeyBookCheckpointPrefix+"b1"])
	assert.Contains(t, data, entities.SettingKeySyncedBookIDs)
}

func TestImportMergesHistoryByID(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	store := New(db)

	require.NoError(t, store.AppendHistory(entities.SyncHistoryEntry{ID: "existing", Message: "kept"}))

	imported, err := json.Marshal([]entities.SyncHistoryEntry{
		{ID: "existing", Message: "duplicate, must not be added"},
		{ID: "new", Message: "added"},
	})
	require.NoError(t, err)

	require.NoError(t, store.Import(map[string]string{
		entities.SettingKeySyncHistory: string(imported),
	}))

	history := store.GetHistory()
	require.Len(t, history, 2)
	// Imported new entries come first; the existing entry keeps its value.
	assert.Equal(t, "new", history[0].ID)
	assert.Equal(t, "existing", history[1].ID)
	assert.Equal(t, "kept", history[1].Message)
}

func TestImportUnionsBookIDSets(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	store := New(db)

	require.NoError(t, store.MarkBookSynced("b1"))
	require.NoError(t, store.MarkBookSynced("b2"))

	require.NoError(t, store.Import(map[string]string{
		entities.SettingKeySyncedBookIDs: `["b2","b3"]`,
	}))

	assert.Equal(t, []string{"b1", "b2", "b3"}, store.SyncedBookIDs())
}

func TestImportOverwritesOtherKeys(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	store := New(db)

	require.NoError(t, store.SaveBookCheckpoint("b1", 100))

	require.NoError(t, store.Import(map[string]string{
		entities.SettingKeyBookCheckpointPrefix + "b1": "200",
		entities.SettingKeyBookCheckpointPrefix + "b2": "300",
	}))

	assert.Equal(t, int64(200), store.BookCheckpoint("b1"))
	assert.Equal(t, int64(300), store.BookCheckpoint("b2"))
}

func TestImportIntoEmptyStore(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	store := New(db)

	require.NoError(t, store.Import(map[string]string{
		entities.SettingKeySyncedBookIDs: `["b1"]`,
		entities.SettingKeySyncHistory:   `[{"id":"h1"}]`,
	}))

	assert.Equal(t, []string{"b1"}, store.SyncedBookIDs())
	require.Len(t, store.GetHistory(), 1)
}
