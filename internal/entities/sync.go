package entities

// SyncHistoryEntry is one line of the append-only sync log, newest first.
type SyncHistoryEntry struct {
	ID             string   `json:"id"`
	Timestamp      string   `json:"timestamp"` // ISO-8601
	NoteCount      int      `json:"note_count"`
	HighlightCount int      `json:"highlight_count"`
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	BookIDs        []string `json:"book_ids"`
}

// SyncProgress is the transient state of the current run. It is cleared when
// a run starts and fully populated with Completed=true when it ends, so a
// reader never observes a partially stale value.
type SyncProgress struct {
	CurrentBook      int    `json:"current_book"`
	TotalBooks       int    `json:"total_books"`
	CurrentBookTitle string `json:"current_book_title"`
	Completed        bool   `json:"completed"`
	Background       bool   `json:"background"`
}
