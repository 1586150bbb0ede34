package animals

import (
	"errors"
	"strconv"
	"strings"
)

// Cursor is the browse position carried in navigation buttons. The photo
// album sent with a card is referenced so it can be removed on navigation.
type Cursor struct {
	ID         int64
	Mine       bool
	AlbumFirst int
	AlbumCount int
}

var errBadCursor = errors.New("animals: malformed cursor")

// Encode packs the cursor as "id:mine:first:count".
func (c Cursor) Encode() string {
	mine := "0"
	if c.Mine {
		mine = "1"
	}
	return strconv.FormatInt(c.ID, 10) + ":" + mine + ":" + strconv.Itoa(c.AlbumFirst) + ":" + strconv.Itoa(c.AlbumCount)
}

// ParseCursor reverses Encode.
func ParseCursor(s string) (Cursor, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return Cursor{}, errBadCursor
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id < 0 {
		return Cursor{}, errBadCursor
	}
	first, err1 := strconv.Atoi(parts[2])
	count, err2 := strconv.Atoi(parts[3])
	if err1 != nil || err2 != nil || first < 0 || count < 0 {
		return Cursor{}, errBadCursor
	}
	return Cursor{ID: id, Mine: parts[1] == "1", AlbumFirst: first, AlbumCount: count}, nil
}
