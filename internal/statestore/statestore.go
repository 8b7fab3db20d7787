// Package statestore layers typed accessors over the flat key/value store:
// sync settings, credentials, the source session, per-book checkpoints, the
// synced-book registry, sync history and run progress.
package statestore

import (
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/hzleung/readsync/internal/database"
	"github.com/hzleung/readsync/internal/entities"
)

// Session cookies are assumed valid for 29 days unless told otherwise.
const defaultSessionLifetimeDays = 29

type Store struct {
	db *database.Database
}

func New(db *database.Database) *Store {
	return &Store{db: db}
}

// GetSyncSettings returns the stored sync settings, falling back to defaults
// when nothing was saved yet or the stored value does not parse.
func (s *Store) GetSyncSettings() entities.SyncSettings {
	setting, err := s.db.GetSetting(entities.SettingKeySyncSettings)
	if err != nil || setting.Value == "" {
		return entities.DefaultSyncSettings()
	}

	var settings entities.SyncSettings
	if err := json.Unmarshal([]byte(setting.Value), &settings); err != nil {
		log.Printf("State: sync settings are corrupt, using defaults: %v", err)
		return entities.DefaultSyncSettings()
	}
	return settings
}

func (s *Store) SaveSyncSettings(settings entities.SyncSettings) error {
	return s.setJSON(entities.SettingKeySyncSettings, settings)
}

// ResetLastGlobalSync zeroes the whole-library sync timestamp so the next
// full run falls back to the time-window policy.
func (s *Store) ResetLastGlobalSync() error {
	settings := s.GetSyncSettings()
	settings.LastGlobalSyncAt = 0
	return s.SaveSyncSettings(settings)
}

func (s *Store) GetCredentials() entities.WriteathonCredentials {
	var creds entities.WriteathonCredentials
	s.getJSON(entities.SettingKeyWriteathonCredentials, &creds)
	return creds
}

func (s *Store) SaveCredentials(creds entities.WriteathonCredentials) error {
	return s.setJSON(entities.SettingKeyWriteathonCredentials, creds)
}

// GetSession returns the stored WeRead session, or nil when none is stored.
// An expired session is removed and reported as missing.
func (s *Store) GetSession() *entities.WeReadSession {
	setting, err := s.db.GetSetting(entities.SettingKeyWeReadSession)
	if err != nil || setting.Value == "" {
		return nil
	}

	var session entities.WeReadSession
	if err := json.Unmarshal([]byte(setting.Value), &session); err != nil {
		return nil
	}

	if session.Expired(time.Now()) {
		_ = s.ClearSession()
		return nil
	}
	return &session
}

func (s *Store) SaveSession(cookie string, lifetimeDays int) error {
	if lifetimeDays <= 0 {
		lifetimeDays = defaultSessionLifetimeDays
	}
	session := entities.WeReadSession{
		Cookie:    cookie,
		ExpiresAt: time.Now().Add(time.Duration(lifetimeDays) * 24 * time.Hour).UnixMilli(),
	}
	return s.setJSON(entities.SettingKeyWeReadSession, session)
}

func (s *Store) ClearSession() error {
	return s.db.DeleteSetting(entities.SettingKeyWeReadSession)
}

// BookCheckpoint returns the per-book last-synced timestamp in epoch millis,
// 0 when the book was never checkpointed.
func (s *Store) BookCheckpoint(bookID string) int64 {
	setting, err := s.db.GetSetting(entities.SettingKeyBookCheckpointPrefix + bookID)
	if err != nil || setting.Value == "" {
		return 0
	}
	ts, err := strconv.ParseInt(setting.Value, 10, 64)
	if err != nil {
		return 0
	}
	return ts
}

// SaveBookCheckpoint records the per-book last-synced timestamp. Callers must
// only do this after at least one card for the book was dispatched.
func (s *Store) SaveBookCheckpoint(bookID string, millis int64) error {
	return s.db.SetSetting(entities.SettingKeyBookCheckpointPrefix+bookID, strconv.FormatInt(millis, 10))
}

// SyncedBookIDs returns the registry of books that completed a first sync.
func (s *Store) SyncedBookIDs() []string {
	return s.getStringList(entities.SettingKeySyncedBookIDs)
}

func (s *Store) IsBookSynced(bookID string) bool {
	return contains(s.SyncedBookIDs(), bookID)
}

// MarkBookSynced adds a book to the synced registry. Adding an already
// registered book is a no-op; registry entries are never removed outside a
// full reset.
func (s *Store) MarkBookSynced(bookID string) error {
	ids := s.SyncedBookIDs()
	if contains(ids, bookID) {
		return nil
	}
	return s.setJSON(entities.SettingKeySyncedBookIDs, append(ids, bookID))
}

// AutoSyncBookIDs returns books explicitly marked for scheduled syncs.
func (s *Store) AutoSyncBookIDs() []string {
	return s.getStringList(entities.SettingKeyAutoSyncBookIDs)
}

func (s *Store) IsBookAutoSync(bookID string) bool {
	return contains(s.AutoSyncBookIDs(), bookID)
}

func (s *Store) MarkBookAutoSync(bookID string) error {
	ids := s.AutoSyncBookIDs()
	if contains(ids, bookID) {
		return nil
	}
	return s.setJSON(entities.SettingKeyAutoSyncBookIDs, append(ids, bookID))
}

func (s *Store) UnmarkBookAutoSync(bookID string) error {
	ids := s.AutoSyncBookIDs()
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != bookID {
			kept = append(kept, id)
		}
	}
	return s.setJSON(entities.SettingKeyAutoSyncBookIDs, kept)
}

func (s *Store) SaveProgress(progress entities.SyncProgress) error {
	return s.setJSON(entities.SettingKeySyncProgress, progress)
}

func (s *Store) GetProgress() *entities.SyncProgress {
	var progress entities.SyncProgress
	if !s.getJSON(entities.SettingKeySyncProgress, &progress) {
		return nil
	}
	return &progress
}

func (s *Store) ClearProgress() error {
	return s.db.DeleteSetting(entities.SettingKeySyncProgress)
}

// Reset clears the synced-book registry and every per-book checkpoint, which
// makes the next run a first sync for the whole library.
func (s *Store) Reset() error {
	keys, err := s.db.KeysWithPrefix(entities.SettingKeyBookCheckpointPrefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.db.DeleteSetting(key); err != nil {
			return err
		}
	}
	return s.db.DeleteSetting(entities.SettingKeySyncedBookIDs)
}

func (s *Store) getJSON(key string, out any) bool {
	setting, err := s.db.GetSetting(key)
	if err != nil || setting.Value == "" {
		return false
	}
	return json.Unmarshal([]byte(setting.Value), out) == nil
}

func (s *Store) setJSON(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.db.SetSetting(key, string(raw))
}

func (s *Store) getStringList(key string) []string {
	var ids []string
	s.getJSON(key, &ids)
	return ids
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
