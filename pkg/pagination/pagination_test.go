package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
}

func TestCursorRoundTrip(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC), ID: uuid.New()}

	encoded := EncodeCursor(cursor)
	assert.NotContains(t, encoded, "=")
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")

	parsed, err := ParseCursor(encoded)
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.True(t, cursor.CreatedAt.Equal(parsed.CreatedAt))
	assert.Equal(t, cursor.ID, parsed.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	parsed, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, parsed)

	for _, bad := range []string{
		"%%%",
		base64.RawURLEncoding.EncodeToString([]byte("no-separator")),
		base64.RawURLEncoding.EncodeToString([]byte("yesterday|" + uuid.NewString())),
		base64.RawURLEncoding.EncodeToString([]byte("2026-01-01T00:00:00Z|nope")),
	} {
		_, err := ParseCursor(bad)
		assert.ErrorIs(t, err, ErrInvalidCursor, bad)
	}
}

func TestResolve(t *testing.T) {
	limit, cursor, err := Params{}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, limit)
	assert.Nil(t, cursor)

	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	id := uuid.New()
	limit, cursor, err = Params{Limit: 500, Cursor: EncodeCursor(Cursor{CreatedAt: at, ID: id})}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, limit)
	require.NotNil(t, cursor)

	clause, args := cursor.Before()
	assert.Contains(t, clause, "created_at < ?")
	require.Len(t, args, 3)
	assert.Equal(t, id, args[2])

	_, _, err = Params{Cursor: "!!"}.Resolve()
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestTrim(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []Cursor{
		{CreatedAt: base.Add(3 * time.Hour), ID: uuid.New()},
		{CreatedAt: base.Add(2 * time.Hour), ID: uuid.New()},
		{CreatedAt: base.Add(time.Hour), ID: uuid.New()},
	}
	identity := func(c Cursor) Cursor { return c }

	page, next := Trim(rows, 2, identity)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	assert.Equal(t, rows[1].ID, next.ID)
	assert.NotEmpty(t, NextCursor(next))

	page, next = Trim(rows, 5, identity)
	assert.Len(t, page, 3)
	assert.Nil(t, next)
	assert.Empty(t, NextCursor(next))
}
