// Package syncer implements the incremental synchronization engine: change
// filtering, content aggregation and the run state machine that moves
// annotations from WeRead into Writeathon cards.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hzleung/readsync/internal/entities"
	"github.com/hzleung/readsync/internal/weread"
)

// ReadGateway is the source platform capability consumed by the engine.
type ReadGateway interface {
	Bookshelf(ctx context.Context, cookie string) ([]entities.Book, error)
	Notebooks(ctx context.Context, cookie string) ([]entities.Book, error)
	BookDetail(ctx context.Context, cookie, bookID string) (*entities.Book, error)
	Notes(ctx context.Context, cookie, bookID string) ([]entities.Note, error)
	Highlights(ctx context.Context, cookie, bookID string) ([]entities.Highlight, error)
}

// WriteGateway is the destination service capability consumed by the engine.
type WriteGateway interface {
	ValidateCredentials(ctx context.Context, creds entities.WriteathonCredentials) bool
	CreateCard(ctx context.Context, creds entities.WriteathonCredentials, title, content string) bool
}

// StateStore is the persisted-state capability consumed by the engine.
type StateStore interface {
	GetSyncSettings() entities.SyncSettings
	SaveSyncSettings(entities.SyncSettings) error
	GetCredentials() entities.WriteathonCredentials
	GetSession() *entities.WeReadSession
	ClearSession() error
	BookCheckpoint(bookID string) int64
	SaveBookCheckpoint(bookID string, millis int64) error
	IsBookSynced(bookID string) bool
	MarkBookSynced(bookID string) error
	AutoSyncBookIDs() []string
	SaveProgress(entities.SyncProgress) error
	ClearProgress() error
	AppendHistory(entities.SyncHistoryEntry) error
}

// ProgressListener receives a progress snapshot once per book advance and
// once at completion. Background runs persist progress but never notify.
type ProgressListener func(entities.SyncProgress)

// Result is what every top-level engine entry point returns; errors never
// escape as panics or bare error values.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Engine sequences a sync run: preconditions, per-book filtering,
// aggregation, dispatch, and checkpoint/history bookkeeping. A single engine
// processes books and cards strictly sequentially.
type Engine struct {
	store    StateStore
	source   ReadGateway
	dest     WriteGateway
	listener ProgressListener
}

func New(store StateStore, source ReadGateway, dest WriteGateway, listener ProgressListener) *Engine {
	return &Engine{
		store:    store,
		source:   source,
		dest:     dest,
		listener: listener,
	}
}

// SyncAll synchronizes every book with new annotations. A background run
// syncs the books marked for auto-sync (falling back to the whole library
// when none are marked) and suppresses progress notifications.
func (e *Engine) SyncAll(ctx context.Context, background bool) Result {
	_ = e.store.ClearProgress()
	e.publish(entities.SyncProgress{Background: background}, background)

	creds, session, failure := e.checkPreconditions(ctx)
	if failure != nil {
		return *failure
	}

	settings := e.store.GetSyncSettings()
	now := time.Now()

	books, err := e.source.Notebooks(ctx, session.Cookie)
	if err != nil {
		return e.abort(err, "failed to list books")
	}

	if background {
		books = restrictToAutoSync(books, e.store.AutoSyncBookIDs())
	}

	if len(books) == 0 {
		e.publish(entities.SyncProgress{Completed: true, Background: background}, background)
		return Result{Success: true, Message: "no books with annotations to sync"}
	}

	progress := entities.SyncProgress{TotalBooks: len(books), Background: background}
	e.publish(progress, background)

	var totalNotes, totalHighlights, failedBooks int
	var syncedBookIDs []string

	for i, book := range books {
		progress.CurrentBook = i + 1
		progress.CurrentBookTitle = book.Title
		e.publish(progress, background)

		content, err := e.fetchBookContent(ctx, session.Cookie, book, settings, now)
		if err != nil {
			if errors.Is(err, weread.ErrSessionExpired) {
				return e.abort(err, "WeRead session expired during sync")
			}
			log.Printf("Sync: skipping %q: %v", book.Title, err)
			failedBooks++
			continue
		}
		if content.empty() {
			continue
		}

		outcome := e.dispatchBook(ctx, creds, content, settings.MergeNotesAndHighlights, now)
		if outcome.dispatched > 0 {
			if err := e.store.SaveBookCheckpoint(book.ID, now.UnixMilli()); err != nil {
				log.Printf("Sync: failed to save checkpoint for %q: %v", book.Title, err)
			}
			syncedBookIDs = append(syncedBookIDs, book.ID)
			totalNotes += outcome.notes
			totalHighlights += outcome.highlights
		}
		if outcome.failed > 0 {
			failedBooks++
		}
	}

	e.publish(entities.SyncProgress{
		CurrentBook: len(books),
		TotalBooks:  len(books),
		Completed:   true,
		Background:  background,
	}, background)

	message := fmt.Sprintf("synced %d notes and %d highlights across %d books",
		totalNotes, totalHighlights, len(syncedBookIDs))
	if failedBooks > 0 {
		message += fmt.Sprintf(", %d books had failures", failedBooks)
	}
	e.appendHistory(totalNotes, totalHighlights, true, message, syncedBookIDs)

	settings.LastGlobalSyncAt = now.UnixMilli()
	if err := e.store.SaveSyncSettings(settings); err != nil {
		log.Printf("Sync: failed to advance global sync time: %v", err)
	}

	return Result{Success: true, Message: message}
}

// SyncBook synchronizes a single book on demand, using its checkpoint to
// pick up only new annotations.
func (e *Engine) SyncBook(ctx context.Context, bookID string) Result {
	creds, session, failure := e.checkPreconditions(ctx)
	if failure != nil {
		return *failure
	}

	settings := e.store.GetSyncSettings()
	now := time.Now()

	book, err := e.source.BookDetail(ctx, session.Cookie, bookID)
	if err != nil {
		return e.abort(err, "failed to fetch book details")
	}
	if book == nil {
		return Result{Success: false, Message: "book not found"}
	}

	notes, err := e.source.Notes(ctx, session.Cookie, bookID)
	if err != nil {
		return e.abort(err, fmt.Sprintf("failed to fetch notes for %q", book.Title))
	}
	highlights, err := e.source.Highlights(ctx, session.Cookie, bookID)
	if err != nil {
		return e.abort(err, fmt.Sprintf("failed to fetch highlights for %q", book.Title))
	}

	if len(notes) == 0 && len(highlights) == 0 {
		return Result{Success: true, Message: fmt.Sprintf("%q has no notes or highlights", book.Title)}
	}

	notes, highlights = Filter(notes, highlights, CheckpointPolicy(e.store.BookCheckpoint(bookID)))
	if len(notes) == 0 && len(highlights) == 0 {
		return Result{Success: true, Message: fmt.Sprintf("%q has nothing new since the last sync", book.Title)}
	}

	grouped := groupByBook([]entities.Book{*book}, notes, highlights)
	if len(grouped) == 0 {
		return Result{Success: true, Message: fmt.Sprintf("%q has nothing new since the last sync", book.Title)}
	}

	outcome := e.dispatchBook(ctx, creds, grouped[0], settings.MergeNotesAndHighlights, now)
	if outcome.dispatched == 0 {
		message := fmt.Sprintf("failed to sync %q: no cards could be created", book.Title)
		e.appendHistory(0, 0, false, message, nil)
		return Result{Success: false, Message: message}
	}

	if err := e.store.SaveBookCheckpoint(bookID, now.UnixMilli()); err != nil {
		log.Printf("Sync: failed to save checkpoint for %q: %v", book.Title, err)
	}

	message := fmt.Sprintf("synced %d notes and %d highlights from %q",
		outcome.notes, outcome.highlights, book.Title)
	if outcome.failed > 0 {
		message += fmt.Sprintf(", %d cards failed", outcome.failed)
	}
	e.appendHistory(outcome.notes, outcome.highlights, true, message, []string{bookID})

	return Result{Success: true, Message: message}
}

// fetchBookContent pulls and filters one book's annotations. The per-book
// checkpoint supersedes the time-window policy whenever one exists.
func (e *Engine) fetchBookContent(ctx context.Context, cookie string, book entities.Book, settings entities.SyncSettings, now time.Time) (bookContent, error) {
	notes, err := e.source.Notes(ctx, cookie, book.ID)
	if err != nil {
		return bookContent{}, fmt.Errorf("notes: %w", err)
	}
	highlights, err := e.source.Highlights(ctx, cookie, book.ID)
	if err != nil {
		return bookContent{}, fmt.Errorf("highlights: %w", err)
	}

	var policy FilterPolicy
	if checkpoint := e.store.BookCheckpoint(book.ID); checkpoint > 0 {
		policy = CheckpointPolicy(checkpoint)
	} else {
		policy = WindowPolicy(settings.Range, now)
	}
	notes, highlights = Filter(notes, highlights, policy)

	grouped := groupByBook([]entities.Book{book}, notes, highlights)
	if len(grouped) == 0 {
		return bookContent{Book: book}, nil
	}
	return grouped[0], nil
}

type dispatchOutcome struct {
	notes      int
	highlights int
	dispatched int
	failed     int
}

// dispatchBook renders and sends one book's cards. The synced registry is
// flipped exactly once, guarded by the first successful dispatch, so a
// partial failure never retroactively claims the book was fully delivered.
func (e *Engine) dispatchBook(ctx context.Context, creds entities.WriteathonCredentials, content bookContent, merged bool, now time.Time) dispatchOutcome {
	firstSync := !e.store.IsBookSynced(content.Book.ID)
	cards := renderCards(content, merged, renderContext{FirstSync: firstSync, Now: now})

	marked := !firstSync
	var outcome dispatchOutcome
	for _, c := range cards {
		if !e.dest.CreateCard(ctx, creds, c.Title, c.Body) {
			outcome.failed++
			continue
		}
		outcome.dispatched++
		outcome.notes += c.Notes
		outcome.highlights += c.Highlights

		if !marked {
			if err := e.store.MarkBookSynced(content.Book.ID); err != nil {
				log.Printf("Sync: failed to mark %q as synced: %v", content.Book.Title, err)
			} else {
				marked = true
			}
		}
	}
	return outcome
}

// checkPreconditions verifies credentials and session before any content
// I/O. Any failure aborts the run with a user-facing reason.
func (e *Engine) checkPreconditions(ctx context.Context) (entities.WriteathonCredentials, *entities.WeReadSession, *Result) {
	creds := e.store.GetCredentials()
	if !creds.Configured() {
		return creds, nil, &Result{Success: false, Message: "Writeathon API token and user ID are not configured"}
	}

	session := e.store.GetSession()
	if session == nil {
		return creds, nil, &Result{Success: false, Message: "WeRead session is missing, sign in to WeRead first"}
	}

	if !e.dest.ValidateCredentials(ctx, creds) {
		return creds, nil, &Result{Success: false, Message: "Writeathon API token or user ID is invalid"}
	}

	return creds, session, nil
}

// abort maps an operational error onto a failed Result. A session-expiry
// error also clears the stored session; the gateway itself never does.
func (e *Engine) abort(err error, message string) Result {
	if errors.Is(err, weread.ErrSessionExpired) {
		if clearErr := e.store.ClearSession(); clearErr != nil {
			log.Printf("Sync: failed to clear expired session: %v", clearErr)
		}
		message = "WeRead session has expired, sign in again"
	}
	log.Printf("Sync: %s: %v", message, err)
	return Result{Success: false, Message: message}
}

func (e *Engine) appendHistory(notes, highlights int, success bool, message string, bookIDs []string) {
	entry := entities.SyncHistoryEntry{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		NoteCount:      notes,
		HighlightCount: highlights,
		Success:        success,
		Message:        message,
		BookIDs:        bookIDs,
	}
	if err := e.store.AppendHistory(entry); err != nil {
		log.Printf("Sync: failed to append history entry: %v", err)
	}
}

// publish persists the progress snapshot and, for foreground runs, notifies
// the registered listener.
func (e *Engine) publish(progress entities.SyncProgress, background bool) {
	if err := e.store.SaveProgress(progress); err != nil {
		log.Printf("Sync: failed to persist progress: %v", err)
	}
	if background || e.listener == nil {
		return
	}
	e.listener(progress)
}

// restrictToAutoSync narrows the book set to the auto-sync registry. An
// empty registry keeps the whole set so that enabling auto-sync without
// marking books still syncs the library.
func restrictToAutoSync(books []entities.Book, autoSyncIDs []string) []entities.Book {
	if len(autoSyncIDs) == 0 {
		return books
	}
	marked := make(map[string]bool, len(autoSyncIDs))
	for _, id := range autoSyncIDs {
		marked[id] = true
	}
	kept := make([]entities.Book, 0, len(books))
	for _, book := range books {
		if marked[book.ID] {
			kept = append(kept, book)
		}
	}
	return kept
}
