package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Params is what list endpoints accept: a page size and an opaque cursor
// returned by the previous page.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the keyset position of the last row on a page. Lists are ordered
// newest first by (created_at, id).
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Resolve clamps the limit and decodes the cursor. A nil cursor means the
// first page.
func (p Params) Resolve() (int, *Cursor, error) {
	cursor, err := ParseCursor(p.Cursor)
	if err != nil {
		return 0, nil, err
	}
	return NormalizeLimit(p.Limit), cursor, nil
}

func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Before returns a WHERE clause selecting rows that sort after c in a
// created_at DESC, id DESC listing.
func (c Cursor) Before() (string, []any) {
	return "(created_at < ? OR (created_at = ? AND id < ?))", []any{c.CreatedAt, c.CreatedAt, c.ID}
}

// EncodeCursor renders c as URL-safe text so it can travel in a query string.
func EncodeCursor(c Cursor) string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	stamp, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, fmt.Errorf("%w: missing separator", ErrInvalidCursor)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrInvalidCursor, err)
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: id: %v", ErrInvalidCursor, err)
	}
	return &Cursor{CreatedAt: createdAt, ID: parsedID}, nil
}

// Trim cuts a page fetched with limit+1 rows down to limit and returns the
// cursor of the last kept row when another page exists.
func Trim[T any](rows []T, limit int, cursorOf func(T) Cursor) ([]T, *Cursor) {
	if len(rows) <= limit {
		return rows, nil
	}
	rows = rows[:limit]
	next := cursorOf(rows[len(rows)-1])
	return rows, &next
}

// NextCursor encodes the cursor for responses; nil yields "".
func NextCursor(c *Cursor) string {
	if c == nil {
		return ""
	}
	return EncodeCursor(*c)
}
