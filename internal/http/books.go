package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hzleung/readsync/internal/bookid"
	"github.com/hzleung/readsync/internal/entities"
	"github.com/hzleung/readsync/internal/statestore"
	"github.com/hzleung/readsync/internal/syncer"
)

// BooksController exposes the source library and the auto-sync registry
type BooksController struct {
	store  *statestore.Store
	source syncer.ReadGateway
}

func NewBooksController(store *statestore.Store, source syncer.ReadGateway) *BooksController {
	return &BooksController{
		store:  store,
		source: source,
	}
}

// BookResponse is one book of the library, joined with local sync state
type BookResponse struct {
	entities.Book
	ReaderURL  string `json:"reader_url"`
	Synced     bool   `json:"synced"`
	AutoSync   bool   `json:"auto_sync"`
	LastSyncAt int64  `json:"last_sync_at,omitempty"` // epoch millis, 0 = never
}

// GetBookshelf returns the user's full bookshelf
func (c *BooksController) GetBookshelf(ctx *gin.Context) {
	c.listBooks(ctx, c.source.Bookshelf)
}

// GetNotebooks returns only the books that have notes or highlights
func (c *BooksController) GetNotebooks(ctx *gin.Context) {
	c.listBooks(ctx, c.source.Notebooks)
}

func (c *BooksController) listBooks(ctx *gin.Context, fetch func(ctx context.Context, cookie string) ([]entities.Book, error)) {
	session := c.store.GetSession()
	if session == nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "WeRead session is missing, sign in to WeRead first"})
		return
	}

	books, err := fetch(ctx.Request.Context(), session.Cookie)
	if err != nil {
		ctx.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch books: " + err.Error()})
		return
	}

	response := make([]BookResponse, 0, len(books))
	for _, book := range books {
		response = append(response, BookResponse{
			Book:       book,
			ReaderURL:  bookid.ReaderURL(book.ID),
			Synced:     c.store.IsBookSynced(book.ID),
			AutoSync:   c.store.IsBookAutoSync(book.ID),
			LastSyncAt: c.store.BookCheckpoint(book.ID),
		})
	}

	ctx.JSON(http.StatusOK, gin.H{"books": response})
}

// MarkAutoSync adds a book to the auto-sync registry
func (c *BooksController) MarkAutoSync(ctx *gin.Context) {
	bookID := ctx.Param("id")
	if err := c.store.MarkBookAutoSync(bookID); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark book for auto-sync: " + err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

// UnmarkAutoSync removes a book from the auto-sync registry
func (c *BooksController) UnmarkAutoSync(ctx *gin.Context) {
	bookID := ctx.Param("id")
	if err := c.store.UnmarkBookAutoSync(bookID); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unmark book for auto-sync: " + err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
