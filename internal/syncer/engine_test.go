package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hzleung/readsync/internal/entities"
	"github.com/hzleung/readsync/internal/weread"
)

type fakeStore struct {
	settings       entities.SyncSettings
	creds          entities.WriteathonCredentials
	session        *entities.WeReadSession
	checkpoints    map[string]int64
	synced         map[string]bool
	autoSync       []string
	progress       []entities.SyncProgress
	history        []entities.SyncHistoryEntry
	sessionCleared bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		settings:    entities.DefaultSyncSettings(),
		creds:       entities.WriteathonCredentials{APIToken: "token", UserID: "user-1"},
		session:     &entities.WeReadSession{Cookie: "wr_vid=1"},
		checkpoints: map[string]int64{},
		synced:      map[string]bool{},
	}
}

func (s *fakeStore) GetSyncSettings() entities.SyncSettings { return s.settings }
func (s *fakeStore) SaveSyncSettings(settings entities.SyncSettings) error {
	s.settings = settings
	return nil
}
func (s *fakeStore) GetCredentials() entities.WriteathonCredentials { return s.creds }
func (s *fakeStore) GetSession() *entities.WeReadSession            { return s.session }
func (s *fakeStore) ClearSession() error {
	s.session = nil
	s.sessionCleared = true
	return nil
}
func (s *fakeStore) BookCheckpoint(bookID string) int64 { return s.checkpoints[bookID] }
func (s *fakeStore) SaveBookCheckpoint(bookID string, millis int64) error {
	s.checkpoints[bookID] = millis
	return nil
}
func (s *fakeStore) IsBookSynced(bookID string) bool { return s.synced[bookID] }
func (s *fakeStore) MarkBookSynced(bookID string) error {
	s.synced[bookID] = true
	return nil
}
func (s *fakeStore) AutoSyncBookIDs() []string { return s.autoSync }
func (s *fakeStore) SaveProgress(p entities.SyncProgress) error {
	s.progress = append(s.progress, p)
	return nil
}
func (s *fakeStore) ClearProgress() error {
	s.progress = nil
	return nil
}
func (s *fakeStore) AppendHistory(entry entities.SyncHistoryEntry) error {
	s.history = append([]entities.SyncHistoryEntry{entry}, s.history...)
	return nil
}

type fakeSource struct {
	books         []entities.Book
	notes         map[string][]entities.Note
	highlights    map[string][]entities.Highlight
	notesErr      map[string]error
	highlightsErr map[string]error
	listErr       error
}

func (f *fakeSource) Bookshelf(ctx context.Context, cookie string) ([]entities.Book, error) {
	return f.books, f.listErr
}

func (f *fakeSource) Notebooks(ctx context.Context, cookie string) ([]entities.Book, error) {
	return f.books, f.listErr
}

func (f *fakeSource) BookDetail(ctx context.Context, cookie, bookID string) (*entities.Book, error) {
	for _, book := range f.books {
		if book.ID == bookID {
			return &book, nil
		}
	}
	return nil, nil
}

func (f *fakeSource) Notes(ctx context.Context, cookie, bookID string) ([]entities.Note, error) {
	if err := f.notesErr[bookID]; err != nil {
		return nil, err
	}
	return f.notes[bookID], nil
}

func (f *fakeSource) Highlights(ctx context.Context, cookie, bookID string) ([]entities.Highlight, error) {
	if err := f.highlightsErr[bookID]; err != nil {
		return nil, err
	}
	return f.highlights[bookID], nil
}

type createdCard struct {
	title string
	body  string
}

type fakeDest struct {
	invalid bool
	reject  bool
	cards   []createdCard
}

func (f *fakeDest) ValidateCredentials(ctx context.Context, creds entities.WriteathonCredentials) bool {
	return !f.invalid
}

func (f *fakeDest) CreateCard(ctx context.Context, creds entities.WriteathonCredentials, title, content string) bool {
	if f.reject {
		return false
	}
	f.cards = append(f.cards, createdCard{title: title, body: content})
	return true
}

func recentNote(bookID, id string) entities.Note {
	return entities.Note{
		BookID:    bookID,
		NoteID:    id,
		CreatedAt: time.Now().Add(-time.Hour).Unix(),
		MarkText:  "marked passage",
		Content:   "a thought",
	}
}

func recentHighlight(bookID, id string) entities.Highlight {
	return entities.Highlight{
		BookID:      bookID,
		HighlightID: id,
		CreatedAt:   time.Now().Add(-time.Hour).Unix(),
		MarkText:    "highlighted passage",
	}
}

func TestSyncAllRequiresCredentials(t *testing.T) {
	store := newFakeStore()
	store.creds = entities.WriteathonCredentials{}
	engine := New(store, &fakeSource{}, &fakeDest{}, nil)

	result := engine.SyncAll(context.Background(), false)

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "not configured")
	assert.Empty(t, store.history)
}

func TestSyncAllRequiresSession(t *testing.T) {
	store := newFakeStore()
	store.session = nil
	engine := New(store, &fakeSource{}, &fakeDest{}, nil)

	result := engine.SyncAll(context.Background(), false)

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "session is missing")
}

func TestSyncAllRejectsInvalidCredentials(t *testing.T) {
	store := newFakeStore()
	engine := New(store, &fakeSource{}, &fakeDest{invalid: true}, nil)

	result := engine.SyncAll(context.Background(), false)

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "invalid")
}

func TestSyncAllDispatchesAndRecordsState(t *testing.T) {
	store := newFakeStore()
	store.settings.MergeNotesAndHighlights = true
	source := &fakeSource{
		books: []entities.Book{
			{ID: "b1", Title: "First Book"},
			{ID: "b2", Title: "Second Book"},
		},
		notes: map[string][]entities.Note{
			"b1": {recentNote("b1", "n1")},
		},
		highlights: map[string][]entities.Highlight{
			"b1": {recentHighlight("b1", "h1")},
			"b2": {recentHighlight("b2", "h2")},
		},
	}
	dest := &fakeDest{}
	engine := New(store, source, dest, nil)

	result := engine.SyncAll(context.Background(), false)

	require.True(t, result.Success)
	assert.Contains(t, result.Message, "1 notes and 2 highlights")
	require.Len(t, dest.cards, 2)
	assert.Equal(t, "First Book - notes and highlights", dest.cards[0].title)
	assert.Equal(t, "Second Book - notes and highlights", dest.cards[1].title)

	assert.True(t, store.synced["b1"])
	assert.True(t, store.synced["b2"])
	assert.Positive(t, store.checkpoints["b1"])
	assert.Positive(t, store.checkpoints["b2"])
	assert.Positive(t, store.settings.LastGlobalSyncAt)

	require.Len(t, store.history, 1)
	assert.True(t, store.history[0].Success)
	assert.Equal(t, 1, store.history[0].NoteCount)
	assert.Equal(t, 2, store.history[0].HighlightCount)
	assert.Equal(t, []string{"b1", "b2"}, store.history[0].BookIDs)
	assert.NotEmpty(t, store.history[0].ID)

	require.NotEmpty(t, store.progress)
	final := store.progress[len(store.progress)-1]
	assert.True(t, final.Completed)
	assert.Equal(t, 2, final.TotalBooks)
}

func TestSyncAllRerunWithCheckpointDispatchesNothing(t *testing.T) {
	store := newFakeStore()
	store.settings.MergeNotesAndHighlights = true
	source := &fakeSource{
		books: []entities.Book{{ID: "b1", Title: "First Book"}},
		notes: map[string][]entities.Note{
			"b1": {recentNote("b1", "n1")},
		},
	}
	dest := &fakeDest{}
	engine := New(store, source, dest, nil)

	first := engine.SyncAll(context.Background(), false)
	require.True(t, first.Success)
	require.Len(t, dest.cards, 1)

	second := engine.SyncAll(context.Background(), false)

	require.True(t, second.Success)
	assert.Len(t, dest.cards, 1, "unchanged book must not be dispatched again")
	assert.Contains(t, second.Message, "0 notes and 0 highlights")
}

func TestSyncAllFirstSyncHeaderThenDateHeading(t *testing.T) {
	store := newFakeStore()
	store.settings.MergeNotesAndHighlights = true
	source := &fakeSource{
		books: []entities.Book{{ID: "b1", Title: "First Book"}},
		notes: map[string][]entities.Note{
			"b1": {recentNote("b1", "n1")},
		},
	}
	dest := &fakeDest{}
	engine := New(store, source, dest, nil)

	require.True(t, engine.SyncAll(context.Background(), false).Success)
	require.Len(t, dest.cards, 1)
	assert.Contains(t, dest.cards[0].body, "#weread/")

	// A later note on an already-synced book renders with a date heading.
	store.checkpoints["b1"] = 0
	source.notes["b1"] = []entities.Note{recentNote("b1", "n2")}
	require.True(t, engine.SyncAll(context.Background(), false).Success)
	require.Len(t, dest.cards, 2)
	assert.NotContains(t, dest.cards[1].body, "#weread/")
	assert.Contains(t, dest.cards[1].body, "### ")
}

func TestSyncAllRejectedDispatchLeavesNoTrace(t *testing.T) {
	store := newFakeStore()
	store.settings.MergeNotesAndHighlights = true
	source := &fakeSource{
		books: []entities.Book{{ID: "b1", Title: "First Book"}},
		notes: map[string][]entities.Note{
			"b1": {recentNote("b1", "n1")},
		},
	}
	engine := New(store, source, &fakeDest{reject: true}, nil)

	result := engine.SyncAll(context.Background(), false)

	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "1 books had failures")
	assert.False(t, store.synced["b1"], "rejected book must not enter the synced registry")
	assert.Zero(t, store.checkpoints["b1"], "rejected book must not gain a checkpoint")
}

func TestSyncAllSessionExpiryAbortsAndClearsSession(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{
		books: []entities.Book{{ID: "b1", Title: "First Book"}},
		notesErr: map[string]error{
			"b1": weread.ErrSessionExpired,
		},
	}
	engine := New(store, source, &fakeDest{}, nil)

	result := engine.SyncAll(context.Background(), false)

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "expired")
	assert.True(t, store.sessionCleared)
}

func TestSyncAllSkipsFailingBookAndContinues(t *testing.T) {
	store := newFakeStore()
	store.settings.MergeNotesAndHighlights = true
	source := &fakeSource{
		books: []entities.Book{
			{ID: "b1", Title: "Broken Book"},
			{ID: "b2", Title: "Good Book"},
		},
		notesErr: map[string]error{
			"b1": assert.AnError,
		},
		highlights: map[string][]entities.Highlight{
			"b2": {recentHighlight("b2", "h1")},
		},
	}
	dest := &fakeDest{}
	engine := New(store, source, dest, nil)

	result := engine.SyncAll(context.Background(), false)

	require.True(t, result.Success)
	require.Len(t, dest.cards, 1)
	assert.Equal(t, "Good Book - notes and highlights", dest.cards[0].title)
	assert.Contains(t, result.Message, "1 books had failures")
}

func TestSyncAllBackgroundRestrictsToAutoSyncBooks(t *testing.T) {
	store := newFakeStore()
	store.settings.MergeNotesAndHighlights = true
	store.autoSync = []string{"b2"}
	source := &fakeSource{
		books: []entities.Book{
			{ID: "b1", Title: "Unmarked Book"},
			{ID: "b2", Title: "Marked Book"},
		},
		notes: map[string][]entities.Note{
			"b1": {recentNote("b1", "n1")},
			"b2": {recentNote("b2", "n2")},
		},
	}
	dest := &fakeDest{}
	var notified int
	engine := New(store, source, dest, func(entities.SyncProgress) { notified++ })

	result := engine.SyncAll(context.Background(), true)

	require.True(t, result.Success)
	require.Len(t, dest.cards, 1)
	assert.Equal(t, "Marked Book - notes and highlights", dest.cards[0].title)
	assert.Zero(t, notified, "background runs must not notify the listener")
	assert.NotEmpty(t, store.progress, "background runs still persist progress")
}

func TestSyncAllWindowPolicyAppliesWithoutCheckpoint(t *testing.T) {
	store := newFakeStore()
	store.settings.MergeNotesAndHighlights = true
	store.settings.Range = entities.SyncRangeLast7Days
	old := recentNote("b1", "old")
	old.CreatedAt = time.Now().Add(-10 * 24 * time.Hour).Unix()
	source := &fakeSource{
		books: []entities.Book{{ID: "b1", Title: "First Book"}},
		notes: map[string][]entities.Note{
			"b1": {old, recentNote("b1", "fresh")},
		},
	}
	dest := &fakeDest{}
	engine := New(store, source, dest, nil)

	result := engine.SyncAll(context.Background(), false)

	require.True(t, result.Success)
	assert.Contains(t, result.Message, "1 notes and 0 highlights")
}

func TestSyncBookDispatchesSingleBook(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{
		books: []entities.Book{{ID: "b1", Title: "First Book"}},
		notes: map[string][]entities.Note{
			"b1": {recentNote("b1", "n1")},
		},
	}
	dest := &fakeDest{}
	engine := New(store, source, dest, nil)

	result := engine.SyncBook(context.Background(), "b1")

	require.True(t, result.Success)
	assert.Contains(t, result.Message, `"First Book"`)
	require.Len(t, dest.cards, 1)
	assert.Positive(t, store.checkpoints["b1"])
	require.Len(t, store.history, 1)
	assert.Equal(t, []string{"b1"}, store.history[0].BookIDs)
}

func TestSyncBookUnknownBook(t *testing.T) {
	store := newFakeStore()
	engine := New(store, &fakeSource{}, &fakeDest{}, nil)

	result := engine.SyncBook(context.Background(), "missing")

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "not found")
}

func TestSyncBookNothingNewSinceCheckpoint(t *testing.T) {
	store := newFakeStore()
	store.checkpoints["b1"] = time.Now().UnixMilli()
	source := &fakeSource{
		books: []entities.Book{{ID: "b1", Title: "First Book"}},
		notes: map[string][]entities.Note{
			"b1": {recentNote("b1", "n1")},
		},
	}
	dest := &fakeDest{}
	engine := New(store, source, dest, nil)

	result := engine.SyncBook(context.Background(), "b1")

	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "nothing new")
	assert.Empty(t, dest.cards)
}

func TestSyncBookAllCardsRejected(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{
		books: []entities.Book{{ID: "b1", Title: "First Book"}},
		notes: map[string][]entities.Note{
			"b1": {recentNote("b1", "n1")},
		},
	}
	engine := New(store, source, &fakeDest{reject: true}, nil)

	result := engine.SyncBook(context.Background(), "b1")

	assert.False(t, result.Success)
	assert.Zero(t, store.checkpoints["b1"])
	require.Len(t, store.history, 1)
	assert.False(t, store.history[0].Success)
}
