package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// NormalizeFeatures turns a persisted feature value back into an ordered list.
// Lists pass through. Maps keyed by index ({"0":"a","1":"b"}) are ordered
// numerically, other keys lexically after them. Postgres array literals and
// JSON encoded lists are decoded first.
func NormalizeFeatures(raw any) []string {
	switch v := raw.(type) {
	case nil:
		return []string{}
	case []string:
		return compact(v)
	case pq.StringArray:
		return compact([]string(v))
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, stringify(item))
		}
		return compact(out)
	case map[string]any:
		return fromIndexedMap(v)
	case map[string]string:
		converted := make(map[string]any, len(v))
		for k, val := range v {
			converted[k] = val
		}
		return fromIndexedMap(converted)
	case []byte:
		return fromText(string(v))
	case string:
		return fromText(v)
	default:
		return []string{}
	}
}

func fromText(value string) []string {
	trimmed := strings.TrimSpace(value)
	switch {
	case trimmed == "":
		return []string{}
	case strings.HasPrefix(trimmed, "{") && !strings.Contains(trimmed, ":"):
		var arr pq.StringArray
		if err := arr.Scan(trimmed); err == nil {
			return compact([]string(arr))
		}
	case strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{"):
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return NormalizeFeatures(decoded)
		}
	}
	return []string{trimmed}
}

func fromIndexedMap(m map[string]any) []string {
	type keyed struct {
		key     string
		index   int
		numeric bool
	}
	keys := make([]keyed, 0, len(m))
	for k := range m {
		idx, err := strconv.Atoi(k)
		keys = append(keys, keyed{key: k, index: idx, numeric: err == nil})
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.numeric != b.numeric {
			return a.numeric
		}
		if a.numeric {
			return a.index < b.index
		}
		return a.key < b.key
	})
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, stringify(m[k.key]))
	}
	return compact(out)
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
