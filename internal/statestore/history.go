package statestore

import (
	"github.com/hzleung/readsync/internal/entities"
)

// Retained history is capped; the newest entries win.
const maxHistoryEntries = 100

// GetHistory returns the sync history, newest first.
func (s *Store) GetHistory() []entities.SyncHistoryEntry {
	var history []entities.SyncHistoryEntry
	s.getJSON(entities.SettingKeySyncHistory, &history)
	return history
}

// AppendHistory prepends an entry and trims the retained list.
func (s *Store) AppendHistory(entry entities.SyncHistoryEntry) error {
	history := append([]entities.SyncHistoryEntry{entry}, s.GetHistory()...)
	if len(history) > maxHistoryEntries {
		history = history[:maxHistoryEntries]
	}
	return s.setJSON(entities.SettingKeySyncHistory, history)
}

// DeleteHistoryEntry removes a single entry by id. Unknown ids are a no-op.
func (s *Store) DeleteHistoryEntry(id string) error {
	history := s.GetHistory()
	kept := make([]entities.SyncHistoryEntry, 0, len(history))
	for _, entry := range history {
		if entry.ID != id {
			kept = append(kept, entry)
		}
	}
	return s.setJSON(entities.SettingKeySyncHistory, kept)
}

func (s *Store) ClearHistory() error {
	return s.db.DeleteSetting(entities.SettingKeySyncHistory)
}
