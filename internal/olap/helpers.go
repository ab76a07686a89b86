package olap

import (
	"fmt"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

// Fingerprint identifies a query shape in logs. Bound values do not change it.
func Fingerprint(query string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(query))
}

// InterpolateQuery substitutes args into the ? placeholders of query for
// logging. The result is not meant to be executed.
func InterpolateQuery(query string, args []any) string {
	var b strings.Builder
	b.Grow(len(query))

	next := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' && next < len(args) {
			b.WriteString(literal(args[next]))
			next++
			continue
		}
		b.WriteByte(query[i])
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

func literal(arg any) string {
	switch v := arg.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case time.Time:
		return "'" + v.UTC().Format("2006-01-02 15:04:05.000") + "'"
	case *time.Time:
		if v == nil {
			return "NULL"
		}
		return literal(*v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32, float64:
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("'%v'", v)
	}
}
