package duckdb

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// stringifyValues renders scanned values the way Athena serialises VARCHAR
// results. SQL NULL stays nil.
func stringifyValues(values []any) []*string {
	out := make([]*string, len(values))
	for i, value := range values {
		if value == nil {
			continue
		}
		text := stringifyValue(value)
		out[i] = &text
	}
	return out
}

func stringifyValue(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case []byte:
		return string(typed)
	case bool:
		return strconv.FormatBool(typed)
	case int8, int16, int32, int64, int, uint8, uint16, uint32, uint64, uint:
		return fmt.Sprintf("%d", typed)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case *big.Int:
		return typed.String()
	case time.Time:
		return formatTime(typed)
	case fmt.Stringer:
		return typed.String()
	case map[string]any, []any:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(encoded)
	default:
		return fmt.Sprint(typed)
	}
}

func formatTime(value time.Time) string {
	value = value.UTC()
	if value.Hour() == 0 && value.Minute() == 0 && value.Second() == 0 && value.Nanosecond() == 0 {
		return value.Format(time.DateOnly)
	}
	return value.Format("2006-01-02 15:04:05.000")
}
