package olap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInterpolateQuery(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		query string
		args  []any
		want  string
	}{
		{
			name:  "no args",
			query: "SELECT 1",
			want:  "SELECT 1",
		},
		{
			name:  "string with quote",
			query: "SELECT * FROM t WHERE queue = ?",
			args:  []any{"bob's"},
			want:  "SELECT * FROM t WHERE queue = 'bob''s'",
		},
		{
			name:  "mixed",
			query: "SELECT * FROM t WHERE a = ? AND b >= ? AND c = ? AND d = ? LIMIT ?",
			args:  []any{int64(7), ts, true, nil, 100},
			want:  "SELECT * FROM t WHERE a = 7 AND b >= '2024-03-01 12:30:00.000' AND c = true AND d = NULL LIMIT 100",
		},
		{
			name:  "float",
			query: "SELECT ?",
			args:  []any{1.5},
			want:  "SELECT 1.5",
		},
		{
			name:  "more placeholders than args",
			query: "SELECT ?, ?",
			args:  []any{"a"},
			want:  "SELECT 'a', ?",
		},
		{
			name:  "whitespace collapsed",
			query: "SELECT\n\t1\n  FROM t",
			want:  "SELECT 1 FROM t",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InterpolateQuery(tt.query, tt.args))
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("SELECT 1")

	assert.Len(t, a, 16)
	assert.Equal(t, a, Fingerprint("SELECT 1"))
	assert.NotEqual(t, a, Fingerprint("SELECT 2"))
}
