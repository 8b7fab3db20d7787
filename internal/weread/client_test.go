package weread

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hzleung/readsync/internal/retrypolicy"
)

func testClient(serverURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    serverURL,
		pacer:      func() time.Duration { return 0 },
		retry:      retrypolicy.Policy{MaxAttempts: 3, Backoff: time.Millisecond},
	}
}

func TestNotebooksSortedBySourceOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/notebooks", r.URL.Path)
		assert.Equal(t, "wr_skey=abc", r.Header.Get("Cookie"))
		w.Write([]byte(`{"books":[
			{"sort":2,"book":{"bookId":"b2","title":"Second","author":"A","categories":[{"title":"Fiction"},{"title":"Classic"}]}},
			{"sort":1,"book":{"bookId":"b1","title":"First","author":"B"}}
		]}`))
	}))
	defer server.Close()

	books, err := testClient(server.URL).Notebooks(context.Background(), "wr_skey=abc")
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "b1", books[0].ID)
	assert.Equal(t, "b2", books[1].ID)
	assert.Equal(t, "Fiction|Classic", books[1].Category)
}

func TestBookshelfSorted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/shelf/sync", r.URL.Path)
		w.Write([]byte(`{"books":[
			{"bookId":"b3","title":"Third","sort":30},
			{"bookId":"b1","title":"First","sort":10}
		]}`))
	}))
	defer server.Close()

	books, err := testClient(server.URL).Bookshelf(context.Background(), "c")
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "b1", books[0].ID)
}

func TestNotesMapsBookCommentsToSyntheticChapter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/review/list", r.URL.Path)
		assert.Equal(t, "11", r.URL.Query().Get("listType"))
		assert.Equal(t, "1", r.URL.Query().Get("mine"))
		w.Write([]byte(`{"reviews":[
			{"review":{"reviewId":"n1","chapterUid":3,"createTime":1700000000,"abstract":"quoted","content":"my thought","type":1}},
			{"review":{"reviewId":"n2","createTime":1700000100,"abstract":"book level","content":"overall","type":4}}
		]}`))
	}))
	defer server.Close()

	notes, err := testClient(server.URL).Notes(context.Background(), "c", "b1")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, 3, notes[0].ChapterUID)
	assert.Equal(t, "quoted", notes[0].MarkText)
	assert.Equal(t, "my thought", notes[0].Content)
	assert.Equal(t, syntheticChapterReview, notes[1].ChapterUID)
	assert.Equal(t, "b1", notes[1].BookID)
}

func TestHighlights(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/book/bookmarklist", r.URL.Path)
		assert.Equal(t, "b1", r.URL.Query().Get("bookId"))
		w.Write([]byte(`{"updated":[
			{"bookmarkId":"h1","chapterUid":2,"createTime":1700000000,"markText":"a passage"}
		]}`))
	}))
	defer server.Close()

	highlights, err := testClient(server.URL).Highlights(context.Background(), "c", "b1")
	require.NoError(t, err)
	require.Len(t, highlights, 1)
	assert.Equal(t, "h1", highlights[0].HighlightID)
	assert.Equal(t, int64(1700000000), highlights[0].CreatedAt)
}

func TestSessionExpiredErrcode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errcode":-2012,"errmsg":"session timeout"}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Notebooks(context.Background(), "stale")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"errcode":-1}`))
			return
		}
		w.Write([]byte(`{"books":[]}`))
	}))
	defer server.Close()

	books, err := testClient(server.URL).Notebooks(context.Background(), "c")
	require.NoError(t, err)
	assert.Empty(t, books)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGivesUpAfterThirdFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"errcode":-1,"errmsg":"server error"}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Notebooks(context.Background(), "c")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())

	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestBookDetailMissingBook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	book, err := testClient(server.URL).BookDetail(context.Background(), "c", "gone")
	require.NoError(t, err)
	assert.Nil(t, book)
}
