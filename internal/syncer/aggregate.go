package syncer

import (
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/hzleung/readsync/internal/bookid"
	"github.com/hzleung/readsync/internal/entities"
)

const (
	// Rendered card titles are clamped; when a title is over the limit it is
	// cut to the first half of it.
	maxTitleLength  = 50
	halfTitleLength = maxTitleLength / 2

	// Separate-mode card titles carry a prefix of the quoted passage.
	markTextTitlePrefix = 20

	cardSeparator = "---"
)

var (
	// Title text keeps CJK ideographs, ASCII letters/digits and whitespace.
	titleStripPattern = regexp.MustCompile(`[^\p{Han}a-zA-Z0-9\s]`)

	// Leading whitespace runs, including full-width spaces, are stripped
	// from every body line. Interior whitespace stays.
	leadingSpacePattern = regexp.MustCompile("(?m)^[\\s　]+")
)

// bookContent is one book's grouped annotations joined with its snapshot.
type bookContent struct {
	Book       entities.Book
	Notes      []entities.Note
	Highlights []entities.Highlight
}

func (b bookContent) empty() bool {
	return len(b.Notes) == 0 && len(b.Highlights) == 0
}

// groupByBook buckets annotations per book, preserving the order of the
// book snapshot list. Annotations whose book is absent from the snapshot are
// dropped: the book may have been removed from the shelf.
func groupByBook(books []entities.Book, notes []entities.Note, highlights []entities.Highlight) []bookContent {
	index := make(map[string]int, len(books))
	grouped := make([]bookContent, len(books))
	for i, book := range books {
		index[book.ID] = i
		grouped[i] = bookContent{Book: book}
	}

	for _, note := range notes {
		i, ok := index[note.BookID]
		if !ok {
			log.Printf("Sync: dropping note %s: book %s is not on the shelf", note.NoteID, note.BookID)
			continue
		}
		grouped[i].Notes = append(grouped[i].Notes, note)
	}
	for _, highlight := range highlights {
		i, ok := index[highlight.BookID]
		if !ok {
			log.Printf("Sync: dropping highlight %s: book %s is not on the shelf", highlight.HighlightID, highlight.BookID)
			continue
		}
		grouped[i].Highlights = append(grouped[i].Highlights, highlight)
	}

	kept := make([]bookContent, 0, len(grouped))
	for _, content := range grouped {
		if !content.empty() {
			kept = append(kept, content)
		}
	}
	return kept
}

// card is a single rendered unit ready for dispatch.
type card struct {
	Title      string
	Body       string
	Notes      int
	Highlights int
}

// renderContext carries the per-book formatting decisions shared by both
// rendering modes.
type renderContext struct {
	FirstSync bool
	Now       time.Time
}

// renderCards produces the cards for one book's content under the chosen
// mode.
func renderCards(content bookContent, merged bool, rc renderContext) []card {
	if merged {
		return []card{renderMergedCard(content, rc)}
	}
	return renderSeparateCards(content, rc)
}

// renderMergedCard renders one card covering all of a book's new notes and
// highlights. The first sync gets the tag and source-link header; later
// syncs get a date heading instead.
func renderMergedCard(content bookContent, rc renderContext) card {
	book := content.Book
	var sb strings.Builder

	if rc.FirstSync {
		writeTagHeader(&sb, book)
	} else {
		writeDateHeading(&sb, rc.Now)
	}

	sb.WriteString(fmt.Sprintf("## %s\n\n", book.Title))

	for _, note := range content.Notes {
		writeNoteBlock(&sb, note)
	}
	for _, highlight := range content.Highlights {
		sb.WriteString(fmt.Sprintf("> %s\n\n", SanitizeBody(highlight.MarkText)))
	}

	sb.WriteString("\n\n" + cardSeparator + "\n\n")

	return card{
		Title:      fmt.Sprintf("%s - notes and highlights", book.Title),
		Body:       sb.String(),
		Notes:      len(content.Notes),
		Highlights: len(content.Highlights),
	}
}

// renderSeparateCards renders one card per note and one per highlight. Every
// card carries the tag/link header and a date heading.
func renderSeparateCards(content bookContent, rc renderContext) []card {
	book := content.Book
	cards := make([]card, 0, len(content.Notes)+len(content.Highlights))

	for _, note := range content.Notes {
		var sb strings.Builder
		writeTagHeader(&sb, book)
		writeDateHeading(&sb, rc.Now)
		writeNoteBlock(&sb, note)
		sb.WriteString(cardSeparator + "\n\n")

		cards = append(cards, card{
			Title: fmt.Sprintf("%s - note: %s", book.Title, truncateMark(note.MarkText)),
			Body:  sb.String(),
			Notes: 1,
		})
	}

	for _, highlight := range content.Highlights {
		var sb strings.Builder
		writeTagHeader(&sb, book)
		writeDateHeading(&sb, rc.Now)
		sb.WriteString(fmt.Sprintf("> %s\n\n", SanitizeBody(highlight.MarkText)))
		sb.WriteString(cardSeparator + "\n\n")

		cards = append(cards, card{
			Title:      fmt.Sprintf("%s - highlight: %s", book.Title, truncateMark(highlight.MarkText)),
			Body:       sb.String(),
			Highlights: 1,
		})
	}

	return cards
}

func writeTagHeader(sb *strings.Builder, book entities.Book) {
	sb.WriteString(fmt.Sprintf("#weread/%s \n\n", SanitizeTitle(book.Title)))
	sb.WriteString(fmt.Sprintf("WeRead: [%s](%s)\n\n", book.Title, bookid.ReaderURL(book.ID)))
}

func writeDateHeading(sb *strings.Builder, now time.Time) {
	sb.WriteString(fmt.Sprintf("### %s\n\n", now.Format("2006-01-02")))
}

func writeNoteBlock(sb *strings.Builder, note entities.Note) {
	sb.WriteString(fmt.Sprintf("> %s\n\n%s\n\n%s\n\n",
		SanitizeBody(note.MarkText), SanitizeBody(note.Content), cardSeparator))
}

// SanitizeTitle strips characters outside CJK ideographs, ASCII letters,
// digits and whitespace, then clamps the result.
func SanitizeTitle(title string) string {
	title = titleStripPattern.ReplaceAllString(title, "")
	runes := []rune(title)
	if len(runes) <= maxTitleLength {
		return title
	}
	return string(runes[:halfTitleLength])
}

// SanitizeBody removes leading whitespace and full-width space runs from
// every line.
func SanitizeBody(content string) string {
	return leadingSpacePattern.ReplaceAllString(content, "")
}

// truncateMark returns a title-sized prefix of a quoted passage.
func truncateMark(markText string) string {
	runes := []rune(markText)
	if len(runes) <= markTextTitlePrefix {
		return markText
	}
	return string(runes[:markTextTitlePrefix]) + "..."
}
