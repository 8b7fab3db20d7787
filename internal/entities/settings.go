package entities

import (
	"time"
)

// Setting is a single persisted key/value pair. All service state outside the
// process config lives in this flat namespace.
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Known setting keys
const (
	SettingKeySyncSettings          = "sync_settings"
	SettingKeyWriteathonCredentials = "writeathon_credentials"
	SettingKeyWeReadSession         = "weread_session"
	SettingKeySyncHistory           = "sync_history"
	SettingKeySyncedBookIDs         = "synced_book_ids"
	SettingKeyAutoSyncBookIDs       = "auto_sync_book_ids"
	SettingKeySyncProgress          = "sync_progress"

	// Per-book checkpoints are stored one key per book.
	SettingKeyBookCheckpointPrefix = "book_last_sync_time_"
)

// SyncRange is the symbolic time window used when a book has no checkpoint yet.
type SyncRange string

const (
	SyncRangeLast1Days  SyncRange = "last1days"
	SyncRangeLast7Days  SyncRange = "last7days"
	SyncRangeLast14Days SyncRange = "last14days"
	SyncRangeLast30Days SyncRange = "last30days"
	SyncRangeAll        SyncRange = "all"
)

// WindowDuration returns the duration of the range. ok is false for
// SyncRangeAll and for unknown values, which keep everything.
func (r SyncRange) WindowDuration() (time.Duration, bool) {
	switch r {
	case SyncRangeLast1Days:
		return 24 * time.Hour, true
	case SyncRangeLast7Days:
		return 7 * 24 * time.Hour, true
	case SyncRangeLast14Days:
		return 14 * 24 * time.Hour, true
	case SyncRangeLast30Days:
		return 30 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// SyncSettings controls how sync runs select and deliver content. Read fresh
// at the start of every run; never re-read mid-run.
type SyncSettings struct {
	Range                   SyncRange `json:"range"`
	PollIntervalMinutes     int       `json:"poll_interval_minutes"`
	MergeNotesAndHighlights bool      `json:"merge_notes_and_highlights"`
	AutoSyncEnabled         bool      `json:"auto_sync_enabled"`
	LastGlobalSyncAt        int64     `json:"last_global_sync_at"` // epoch millis, 0 = never
	InterRequestDelayMs     int       `json:"inter_request_delay_ms"`
}

// DefaultSyncSettings returns the settings used before the user saves any.
func DefaultSyncSettings() SyncSettings {
	return SyncSettings{
		Range:                   SyncRangeAll,
		PollIntervalMinutes:     15,
		MergeNotesAndHighlights: false,
		AutoSyncEnabled:         false,
		LastGlobalSyncAt:        0,
		InterRequestDelayMs:     100,
	}
}

// WriteathonCredentials identify the destination account. The username is
// informational, filled in when credentials are validated.
type WriteathonCredentials struct {
	APIToken string `json:"api_token"`
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
}

// Configured reports whether both required fields are present.
func (c WriteathonCredentials) Configured() bool {
	return c.APIToken != "" && c.UserID != ""
}

// WeReadSession is the stored source session cookie with its expiry.
type WeReadSession struct {
	Cookie    string `json:"cookie"`
	ExpiresAt int64  `json:"expires_at"` // epoch millis
}

// Expired reports whether the session is past its expiry at the given time.
func (s WeReadSession) Expired(now time.Time) bool {
	return s.ExpiresAt < now.UnixMilli()
}
