// Package weread wraps the WeRead private API behind the shared retry and
// pacing policy. Every operation is idempotent and safe to retry.
package weread

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hzleung/readsync/internal/entities"
	"github.com/hzleung/readsync/internal/retrypolicy"
)

const (
	defaultBaseURL = "https://i.weread.qq.com"

	defaultTimeout = 30 * time.Second
	maxJitter      = 100 * time.Millisecond

	// Reviews of this type are book-level comments without a chapter; the
	// upstream client files them under a synthetic chapter id.
	reviewTypeBookComment  = 4
	syntheticChapterReview = 1000000
)

// Pacer returns the delay to apply before each individual request, read from
// the current sync settings. Jitter is added on top by the client.
type Pacer func() time.Duration

// Client interfaces with the WeRead API using a stored session cookie.
type Client struct {
	httpClient *http.Client
	baseURL    string
	pacer      Pacer
	retry      retrypolicy.Policy
}

func NewClient(pacer Pacer) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		pacer:      pacer,
		retry:      retrypolicy.Default,
	}
}

type bookPayload struct {
	BookID     string `json:"bookId"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	Cover      string `json:"cover"`
	Sort       int    `json:"sort"`
	Categories []struct {
		Title string `json:"title"`
	} `json:"categories"`
}

func (p bookPayload) toBook() entities.Book {
	categories := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		categories = append(categories, c.Title)
	}
	return entities.Book{
		ID:       p.BookID,
		Title:    p.Title,
		Author:   p.Author,
		CoverURL: p.Cover,
		Category: strings.Join(categories, "|"),
	}
}

// Bookshelf lists every book on the shelf, in the source's own sort order.
func (c *Client) Bookshelf(ctx context.Context, cookie string) ([]entities.Book, error) {
	var payload struct {
		Books []bookPayload `json:"books"`
	}
	err := c.get(ctx, cookie, "/shelf/sync?synckey=0&teenmode=0&album=1&onlyBookid=0", &payload)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(payload.Books, func(i, j int) bool {
		return payload.Books[i].Sort < payload.Books[j].Sort
	})

	books := make([]entities.Book, 0, len(payload.Books))
	for _, b := range payload.Books {
		books = append(books, b.toBook())
	}
	return books, nil
}

// Notebooks lists books that have at least one annotation, in the source's
// own sort order.
func (c *Client) Notebooks(ctx context.Context, cookie string) ([]entities.Book, error) {
	var payload struct {
		Books []struct {
			Sort int         `json:"sort"`
			Book bookPayload `json:"book"`
		} `json:"books"`
	}
	if err := c.get(ctx, cookie, "/user/notebooks", &payload); err != nil {
		return nil, err
	}

	sort.SliceStable(payload.Books, func(i, j int) bool {
		return payload.Books[i].Sort < payload.Books[j].Sort
	})

	books := make([]entities.Book, 0, len(payload.Books))
	for _, b := range payload.Books {
		books = append(books, b.Book.toBook())
	}
	return books, nil
}

// BookDetail fetches a single book snapshot; nil when the book is gone.
func (c *Client) BookDetail(ctx context.Context, cookie, bookID string) (*entities.Book, error) {
	var payload bookPayload
	err := c.get(ctx, cookie, "/book/info?bookId="+url.QueryEscape(bookID), &payload)
	if err != nil {
		return nil, err
	}
	if payload.BookID == "" {
		return nil, nil
	}
	book := payload.toBook()
	return &book, nil
}

// Notes lists the reader's notes (reviews with commentary) for a book.
func (c *Client) Notes(ctx context.Context, cookie, bookID string) ([]entities.Note, error) {
	var payload struct {
		Reviews []struct {
			Review struct {
				ReviewID   string `json:"reviewId"`
				ChapterUID int    `json:"chapterUid"`
				CreateTime int64  `json:"createTime"`
				Abstract   string `json:"abstract"`
				Content    string `json:"content"`
				Type       int    `json:"type"`
			} `json:"review"`
		} `json:"reviews"`
	}

	params := url.Values{}
	params.Set("bookId", bookID)
	params.Set("listType", "11")
	params.Set("mine", "1")
	params.Set("syncKey", "0")
	if err := c.get(ctx, cookie, "/review/list?"+params.Encode(), &payload); err != nil {
		return nil, err
	}

	notes := make([]entities.Note, 0, len(payload.Reviews))
	for _, r := range payload.Reviews {
		review := r.Review
		chapter := review.ChapterUID
		if review.Type == reviewTypeBookComment {
			chapter = syntheticChapterReview
		}
		notes = append(notes, entities.Note{
			BookID:     bookID,
			ChapterUID: chapter,
			CreatedAt:  review.CreateTime,
			MarkText:   review.Abstract,
			Content:    review.Content,
			NoteID:     review.ReviewID,
		})
	}
	return notes, nil
}

// Highlights lists the reader's highlights (bookmarks) for a book.
func (c *Client) Highlights(ctx context.Context, cookie, bookID string) ([]entities.Highlight, error) {
	var payload struct {
		Updated []struct {
			BookmarkID string `json:"bookmarkId"`
			ChapterUID int    `json:"chapterUid"`
			CreateTime int64  `json:"createTime"`
			MarkText   string `json:"markText"`
		} `json:"updated"`
	}
	if err := c.get(ctx, cookie, "/book/bookmarklist?bookId="+url.QueryEscape(bookID), &payload); err != nil {
		return nil, err
	}

	highlights := make([]entities.Highlight, 0, len(payload.Updated))
	for _, b := range payload.Updated {
		highlights = append(highlights, entities.Highlight{
			BookID:      bookID,
			ChapterUID:  b.ChapterUID,
			CreatedAt:   b.CreateTime,
			MarkText:    b.MarkText,
			HighlightID: b.BookmarkID,
		})
	}
	return highlights, nil
}

// get performs a paced, retried GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, cookie, path string, out any) error {
	return c.retry.Do(ctx, func() error {
		if err := c.pace(ctx); err != nil {
			return err
		}
		return c.doRequest(ctx, cookie, path, out)
	})
}

func (c *Client) doRequest(ctx context.Context, cookie, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Cookie", cookie)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}

	if resp.StatusCode != http.StatusOK {
		_ = json.NewDecoder(resp.Body).Decode(&envelope)
		return asAPIError(resp.StatusCode, envelope.ErrCode, envelope.ErrMsg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// pace waits the configured inter-request delay plus a small random jitter
// so a run never produces synchronized request bursts.
func (c *Client) pace(ctx context.Context) error {
	var delay time.Duration
	if c.pacer != nil {
		delay = c.pacer()
	}
	delay += time.Duration(rand.Int63n(int64(maxJitter)))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
