package statestore

import (
	"encoding/json"
	"fmt"

	"github.com/hzleung/readsync/internal/entities"
)

// Keys holding book-id sets are merged by set union on import.
var bookIDSetKeys = map[string]bool{
	entities.SettingKeySyncedBookIDs:   true,
	entities.SettingKeyAutoSyncBookIDs: true,
}

// ExportAll returns the complete persisted state as a flat key->value
// mapping, suitable for backup.
func (s *Store) ExportAll() (map[string]string, error) {
	return s.db.GetAllSettings()
}

// Import merges a previously exported snapshot into the current state.
// History entries are de-duplicated by id with imported entries first,
// book-id sets are unioned, and every other key is overwritten by the
// imported value.
func (s *Store) Import(data map[string]string) error {
	current, err := s.db.GetAllSettings()
	if err != nil {
		return err
	}

	merged := make(map[string]string, len(current)+len(data))
	for key, value := range current {
		merged[key] = value
	}

	for key, value := range data {
		switch {
		case key == entities.SettingKeySyncHistory && merged[key] != "":
			mergedValue, err := mergeHistory(merged[key], value)
			if err != nil {
				return fmt.Errorf("failed to merge history: %w", err)
			}
			merged[key] = mergedValue
		case bookIDSetKeys[key] && merged[key] != "":
			mergedValue, err := mergeBookIDSet(merged[key], value)
			if err != nil {
				return fmt.Errorf("failed to merge %s: %w", key, err)
			}
			merged[key] = mergedValue
		default:
			merged[key] = value
		}
	}

	return s.db.ReplaceAllSettings(merged)
}

// mergeHistory keeps all unique entries by id, imported entries first.
func mergeHistory(currentRaw, importedRaw string) (string, error) {
	var current, imported []entities.SyncHistoryEntry
	if err := json.Unmarshal([]byte(currentRaw), &current); err != nil {
		return "", err
	}
	if err := json.Unmarshal([]byte(importedRaw), &imported); err != nil {
		return "", err
	}

	seen := make(map[string]bool, len(current))
	for _, entry := range current {
		seen[entry.ID] = true
	}

	merged := make([]entities.SyncHistoryEntry, 0, len(current)+len(imported))
	for _, entry := range imported {
		if !seen[entry.ID] {
			merged = append(merged, entry)
		}
	}
	merged = append(merged, current...)

	raw, err := json.Marshal(merged)
	return string(raw), err
}

// mergeBookIDSet unions two id lists, existing ids first.
func mergeBookIDSet(currentRaw, importedRaw string) (string, error) {
	var current, imported []string
	if err := json.Unmarshal([]byte(currentRaw), &current); err != nil {
		return "", err
	}
	if err := json.Unmarshal([]byte(importedRaw), &imported); err != nil {
		return "", err
	}

	seen := make(map[string]bool, len(current))
	merged := make([]string, 0, len(current)+len(imported))
	for _, id := range current {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	for _, id := range imported {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}

	raw, err := json.Marshal(merged)
	return string(raw), err
}
