// Package bookid derives the obfuscated string identifier WeRead uses in its
// public reader URLs from a raw book ID. The transform is deterministic and
// total; collisions carry the same residual risk as the underlying digest.
package bookid

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const readerBaseURL = "https://weread.qq.com/web/reader/"

// Encode transforms a raw book ID into the obfuscated reader identifier.
func Encode(rawID string) string {
	digest := md5Hex(rawID)

	var sb strings.Builder
	sb.WriteString(digest[:3])

	code, chunks := transformID(rawID)
	sb.WriteString(code)
	sb.WriteString("2")
	sb.WriteString(digest[len(digest)-2:])

	for i, chunk := range chunks {
		sb.WriteString(fmt.Sprintf("%02x", len(chunk)))
		sb.WriteString(chunk)
		if i < len(chunks)-1 {
			sb.WriteString("g")
		}
	}

	result := sb.String()
	if len(result) < 20 {
		result += digest[:20-len(result)]
	}

	// Second digest pass over the assembled string.
	return result + md5Hex(result)[:3]
}

// ReaderURL returns the canonical web link for a book.
func ReaderURL(rawID string) string {
	return readerBaseURL + Encode(rawID)
}

// transformID renders the raw ID as hex chunks. Pure-numeric IDs are split
// into 9-digit groups rendered as hex (case "3"); anything else becomes a
// single chunk of per-rune hex code points (case "4").
func transformID(rawID string) (string, []string) {
	if isDigits(rawID) {
		var chunks []string
		for i := 0; i < len(rawID); i += 9 {
			end := i + 9
			if end > len(rawID) {
				end = len(rawID)
			}
			n, _ := strconv.ParseUint(rawID[i:end], 10, 64)
			chunks = append(chunks, strconv.FormatUint(n, 16))
		}
		return "3", chunks
	}

	var sb strings.Builder
	for _, r := range rawID {
		sb.WriteString(fmt.Sprintf("%02x", r))
	}
	return "4", []string{sb.String()}
}

// isDigits reports whether s consists only of decimal digits. The empty
// string counts as numeric, mirroring the upstream behavior.
func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
