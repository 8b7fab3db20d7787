package entities

// Book is a snapshot of a WeRead book, fetched fresh for every sync run.
type Book struct {
	ID       string `json:"book_id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	CoverURL string `json:"cover_url"`
	Category string `json:"category"`
}

// Note is a reader annotation with commentary attached to a quoted passage.
type Note struct {
	BookID     string `json:"book_id"`
	ChapterUID int    `json:"chapter_uid"`
	CreatedAt  int64  `json:"created_at"` // epoch seconds, as reported by WeRead
	MarkText   string `json:"mark_text"`
	Content    string `json:"content"`
	NoteID     string `json:"note_id"`
}

// Highlight is a quoted passage without commentary.
type Highlight struct {
	BookID      string `json:"book_id"`
	ChapterUID  int    `json:"chapter_uid"`
	CreatedAt   int64  `json:"created_at"` // epoch seconds
	MarkText    string `json:"mark_text"`
	HighlightID string `json:"highlight_id"`
}
