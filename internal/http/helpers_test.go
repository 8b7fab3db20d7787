package http

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/hzleung/readsync/internal/database"
	"github.com/hzleung/readsync/internal/entities"
	"github.com/hzleung/readsync/internal/statestore"
	"github.com/hzleung/readsync/internal/syncer"
)

func setupTestStore(t *testing.T) (*database.Database, *statestore.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbPath := filepath.Join(t.TempDir(), fmt.Sprintf("%s.db", filepath.Base(t.Name())))
	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db, statestore.New(db)
}

type stubEngine struct {
	result     syncer.Result
	bookResult syncer.Result
	syncedBook string
}

func (e *stubEngine) SyncAll(ctx context.Context, background bool) syncer.Result {
	return e.result
}

func (e *stubEngine) SyncBook(ctx context.Context, bookID string) syncer.Result {
	e.syncedBook = bookID
	return e.bookResult
}

type stubScheduler struct {
	rescheduled bool
	syncing     bool
	running     bool
	nextRun     *time.Time
}

func (s *stubScheduler) Reschedule() error {
	s.rescheduled = true
	return nil
}
func (s *stubScheduler) RunNow()                 {}
func (s *stubScheduler) IsRunning() bool         { return s.running }
func (s *stubScheduler) IsSyncing() bool         { return s.syncing }
func (s *stubScheduler) NextRunTime() *time.Time { return s.nextRun }

type stubChecker struct {
	valid    bool
	username string
}

func (c *stubChecker) ValidateCredentials(ctx context.Context, creds entities.WriteathonCredentials) bool {
	return c.valid
}

func (c *stubChecker) UserInfo(ctx context.Context, creds entities.WriteathonCredentials) (string, error) {
	if c.username == "" {
		return "", fmt.Errorf("no username")
	}
	return c.username, nil
}

type stubSource struct {
	books []entities.Book
	err   error
}

func (s *stubSource) Bookshelf(ctx context.Context, cookie string) ([]entities.Book, error) {
	return s.books, s.err
}

func (s *stubSource) Notebooks(ctx context.Context, cookie string) ([]entities.Book, error) {
	return s.books, s.err
}

func (s *stubSource) BookDetail(ctx context.Context, cookie, bookID string) (*entities.Book, error) {
	return nil, nil
}

func (s *stubSource) Notes(ctx context.Context, cookie, bookID string) ([]entities.Note, error) {
	return nil, nil
}

func (s *stubSource) Highlights(ctx context.Context, cookie, bookID string) ([]entities.Highlight, error) {
	return nil, nil
}
