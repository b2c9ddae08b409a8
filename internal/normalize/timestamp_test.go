package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocTimestamp struct {
	at time.Time
}

func (f fakeDocTimestamp) ToDate() time.Time { return f.at }

func TestParseShapes(t *testing.T) {
	want := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  any
		kind Kind
	}{
		{name: "native", raw: want, kind: KindNative},
		{name: "native pointer", raw: &want, kind: KindNative},
		{name: "epoch seconds", raw: want.Unix(), kind: KindEpoch},
		{name: "epoch millis", raw: want.UnixMilli(), kind: KindEpoch},
		{name: "epoch float", raw: float64(want.Unix()), kind: KindEpoch},
		{name: "json number", raw: json.Number("1710495000"), kind: KindEpoch},
		{name: "rfc3339", raw: "2024-03-15T09:30:00Z", kind: KindISO},
		{name: "rfc3339 offset", raw: "2024-03-15T11:30:00+02:00", kind: KindISO},
		{name: "local layout", raw: "2024-03-15T09:30:00", kind: KindISO},
		{name: "numeric string", raw: "1710495000000", kind: KindEpoch},
		{name: "wrapper", raw: map[string]any{"seconds": float64(want.Unix()), "nanoseconds": float64(0)}, kind: KindWrapper},
		{name: "underscore wrapper", raw: map[string]any{"_seconds": want.Unix(), "_nanoseconds": 0}, kind: KindWrapper},
		{name: "dater", raw: fakeDocTimestamp{at: want}, kind: KindNative},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := Parse(tc.raw)
			assert.Equal(t, tc.kind, ts.Kind)
			assert.True(t, want.Equal(ts.Time), "got %s", ts.Time)
		})
	}
}

func TestParseDateOnly(t *testing.T) {
	ts := Parse("2024-03-15")
	require.Equal(t, KindISO, ts.Kind)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), ts.Time)
}

func TestParseInvalid(t *testing.T) {
	for _, raw := range []any{nil, "", "not a date", -5, map[string]any{"foo": 1}, struct{}{}, time.Time{}} {
		assert.Equal(t, KindInvalid, Parse(raw).Kind, "raw=%v", raw)
	}
}

func TestToInstantFailsSoft(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	assert.Equal(t, now, ToInstant("garbage", clock))
	assert.Equal(t, now, ToInstant(nil, clock))
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), ToInstant(int64(1700000000), clock))
}

func TestTimestampJSON(t *testing.T) {
	var doc struct {
		CreatedAt Timestamp `json:"createdAt"`
		PaidAt    Timestamp `json:"paidAt"`
		Missing   Timestamp `json:"missing"`
		Broken    Timestamp `json:"broken"`
	}
	payload := `{"createdAt":{"_seconds":1710495000,"_nanoseconds":500},"paidAt":"2024-03-15T09:30:00Z","missing":null,"broken":true}`
	require.NoError(t, json.Unmarshal([]byte(payload), &doc))

	assert.Equal(t, KindWrapper, doc.CreatedAt.Kind)
	assert.Equal(t, 500, doc.CreatedAt.Time.Nanosecond())
	assert.Equal(t, KindISO, doc.PaidAt.Kind)
	assert.False(t, doc.Missing.Valid())
	assert.False(t, doc.Broken.Valid())

	out, err := json.Marshal(doc.PaidAt)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-15T09:30:00Z"`, string(out))
}

func TestTimestampSQL(t *testing.T) {
	var ts Timestamp
	require.NoError(t, ts.Scan("2024-03-15 09:30:00"))
	assert.Equal(t, KindISO, ts.Kind)

	value, err := ts.Value()
	require.NoError(t, err)
	assert.Equal(t, ts.Time, value)

	var empty Timestamp
	require.NoError(t, empty.Scan(nil))
	value, err = empty.Value()
	require.NoError(t, err)
	assert.Nil(t, value)
}
