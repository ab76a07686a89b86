package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeFlagsParse(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		flags     TimeFlags
		wantStart time.Time
		wantEnd   time.Time
		wantErr   string
	}{
		{
			name:      "default since",
			flags:     TimeFlags{},
			wantStart: now.Add(-24 * time.Hour),
			wantEnd:   now,
		},
		{
			name:      "since",
			flags:     TimeFlags{Since: "90m"},
			wantStart: now.Add(-90 * time.Minute),
			wantEnd:   now,
		},
		{
			name:      "from and to",
			flags:     TimeFlags{From: "2024-03-01", To: "2024-03-02T06:00:00Z"},
			wantStart: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 3, 2, 6, 0, 0, 0, time.UTC),
		},
		{
			name:      "from wins over since",
			flags:     TimeFlags{Since: "1h", From: "2024-03-09T00:00:00Z"},
			wantStart: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
			wantEnd:   now,
		},
		{
			name:      "to now",
			flags:     TimeFlags{From: "2024-03-10", To: "now"},
			wantStart: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			wantEnd:   now,
		},
		{
			name:    "bad since",
			flags:   TimeFlags{Since: "yesterday"},
			wantErr: "invalid --since",
		},
		{
			name:    "negative since",
			flags:   TimeFlags{Since: "-1h"},
			wantErr: "must not be negative",
		},
		{
			name:    "bad from",
			flags:   TimeFlags{From: "03/01/2024"},
			wantErr: "invalid --from",
		},
		{
			name:    "end before start",
			flags:   TimeFlags{From: "2024-03-02", To: "2024-03-01"},
			wantErr: "cannot be before",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := tt.flags.Parse(now)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.wantStart.Equal(tr.Start), "start = %s", tr.Start)
			assert.True(t, tt.wantEnd.Equal(tr.End), "end = %s", tr.End)
		})
	}
}
