package bookid

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestEncodeDeterministic(t *testing.T) {
	inputs := []string{"", "3300028078", "CB_12345", "布局之道", "a", "999999999999999999"}
	for _, in := range inputs {
		assert.Equal(t, Encode(in), Encode(in), "input %q", in)
	}
}

func TestEncodeNumericID(t *testing.T) {
	id := "3300028078"
	got := Encode(id)

	digest := md5hex(id)
	assert.True(t, strings.HasPrefix(got, digest[:3]+"32"+digest[len(digest)-2:]),
		"numeric IDs carry the 3 tag after the digest prefix")

	// Trailing 3 chars are the digest of everything before them.
	body := got[:len(got)-3]
	assert.Equal(t, md5hex(body)[:3], got[len(got)-3:])
}

func TestEncodeNumericSplitsNineDigitChunks(t *testing.T) {
	// 12 digits split into a 9-digit and a 3-digit chunk joined by "g".
	got := Encode("123456789123")
	assert.Contains(t, got, "g")

	// A short numeric ID produces a single chunk and no separator.
	short := Encode("1234")
	assert.NotContains(t, short[5:], "g")
}

func TestEncodeNonNumericID(t *testing.T) {
	id := "CB_645763"
	got := Encode(id)

	digest := md5hex(id)
	assert.True(t, strings.HasPrefix(got, digest[:3]+"42"+digest[len(digest)-2:]),
		"non-numeric IDs carry the 4 tag")
}

func TestEncodeTotal(t *testing.T) {
	// Must not fail or produce short output for any input.
	for _, in := range []string{"", " ", "0", "漫长的告别", "id-with-ünicode", strings.Repeat("9", 40)} {
		got := Encode(in)
		assert.GreaterOrEqual(t, len(got), 23, "input %q", in)
	}
}

func TestEncodePadsShortResults(t *testing.T) {
	// Empty numeric input yields no chunks, so the assembled string must be
	// padded to 20 before the final digest is appended.
	got := Encode("")
	assert.Len(t, got, 23)
}

func TestReaderURL(t *testing.T) {
	url := ReaderURL("3300028078")
	assert.True(t, strings.HasPrefix(url, "https://weread.qq.com/web/reader/"))
	assert.Equal(t, "https://weread.qq.com/web/reader/"+Encode("3300028078"), url)
}
