// Package normalize turns heterogeneous persisted values into canonical ones
// at the read boundary: timestamps, payment completion state and plan
// feature lists.
package normalize

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind tags the representation a Timestamp was decoded from.
type Kind int

const (
	KindInvalid Kind = iota
	KindNative
	KindEpoch
	KindISO
	KindWrapper
)

func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindEpoch:
		return "epoch"
	case KindISO:
		return "iso"
	case KindWrapper:
		return "wrapper"
	default:
		return "invalid"
	}
}

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
// 1e11 seconds is the year 5138, 1e11 millis is 1973.
const epochMillisThreshold = 1e11

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp is a decoded instant plus the shape it arrived in. Only
// KindInvalid carries a zero Time.
type Timestamp struct {
	Kind Kind
	Time time.Time
}

// Dater is implemented by wrapper types that know how to convert themselves.
type Dater interface {
	ToDate() time.Time
}

// Valid reports whether the timestamp decoded to an instant.
func (t Timestamp) Valid() bool {
	return t.Kind != KindInvalid
}

// Or returns the instant, or fallback when invalid.
func (t Timestamp) Or(fallback time.Time) time.Time {
	if !t.Valid() {
		return fallback
	}
	return t.Time
}

// Parse classifies raw into a Timestamp. It never fails; unknown shapes
// come back as KindInvalid.
func Parse(raw any) Timestamp {
	switch v := raw.(type) {
	case nil:
		return Timestamp{}
	case Timestamp:
		return v
	case *Timestamp:
		if v == nil {
			return Timestamp{}
		}
		return *v
	case time.Time:
		if v.IsZero() {
			return Timestamp{}
		}
		return Timestamp{Kind: KindNative, Time: v.UTC()}
	case *time.Time:
		if v == nil {
			return Timestamp{}
		}
		return Parse(*v)
	case Dater:
		return Parse(v.ToDate())
	case int:
		return fromEpoch(float64(v))
	case int32:
		return fromEpoch(float64(v))
	case int64:
		return fromEpoch(float64(v))
	case uint32:
		return fromEpoch(float64(v))
	case uint64:
		return fromEpoch(float64(v))
	case float32:
		return fromEpoch(float64(v))
	case float64:
		return fromEpoch(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return Timestamp{}
		}
		return fromEpoch(f)
	case string:
		return fromString(v)
	case []byte:
		return fromString(string(v))
	case map[string]any:
		return fromWrapper(v)
	default:
		return Timestamp{}
	}
}

func fromEpoch(value float64) Timestamp {
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return Timestamp{}
	}
	if value > epochMillisThreshold {
		sec, frac := math.Modf(value / 1000)
		return Timestamp{Kind: KindEpoch, Time: time.Unix(int64(sec), int64(frac*1e9)).UTC()}
	}
	sec, frac := math.Modf(value)
	return Timestamp{Kind: KindEpoch, Time: time.Unix(int64(sec), int64(frac*1e9)).UTC()}
}

func fromString(value string) Timestamp {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Timestamp{}
	}
	for _, layout := range isoLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return Timestamp{Kind: KindISO, Time: parsed.UTC()}
		}
	}
	// numeric strings show up when epochs were stored as text
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return fromEpoch(f)
	}
	return Timestamp{}
}

// fromWrapper handles {seconds, nanoseconds} and {_seconds, _nanoseconds}.
func fromWrapper(m map[string]any) Timestamp {
	secRaw, ok := m["seconds"]
	if !ok {
		secRaw, ok = m["_seconds"]
	}
	if !ok {
		return Timestamp{}
	}
	sec, ok := asFloat(secRaw)
	if !ok {
		return Timestamp{}
	}
	nanosRaw, ok := m["nanoseconds"]
	if !ok {
		nanosRaw = m["_nanoseconds"]
	}
	nanos, _ := asFloat(nanosRaw)
	return Timestamp{Kind: KindWrapper, Time: time.Unix(int64(sec), int64(nanos)).UTC()}
}

func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// UnmarshalJSON accepts any of the supported shapes. Unknown shapes decode to
// KindInvalid instead of failing the whole document.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	*t = Parse(raw)
	return nil
}

// MarshalJSON renders RFC3339 or null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// Scan implements sql.Scanner.
func (t *Timestamp) Scan(src any) error {
	*t = Parse(src)
	return nil
}

// Value implements driver.Valuer.
func (t Timestamp) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, nil
	}
	return t.Time, nil
}

// ToInstant coerces raw into an instant, falling back to now() when the value
// cannot be interpreted. Display paths rely on this never failing.
func ToInstant(raw any, now func() time.Time) time.Time {
	ts := Parse(raw)
	if ts.Valid() {
		return ts.Time
	}
	if now == nil {
		return time.Now().UTC()
	}
	return now()
}
