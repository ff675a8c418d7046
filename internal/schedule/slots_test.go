package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func defaultTemplate(t *testing.T) *SlotTemplate {
	t.Helper()
	tmpl, err := NewSlotTemplate("09:00", "12:00", "14:00", "17:00", 30)
	require.NoError(t, err)
	return tmpl
}

func TestSlotTemplateDefaultDay(t *testing.T) {
	tmpl := defaultTemplate(t)

	require.Equal(t, []string{
		"09:00 AM", "09:30 AM", "10:00 AM", "10:30 AM", "11:00 AM", "11:30 AM",
		"02:00 PM", "02:30 PM", "03:00 PM", "03:30 PM", "04:00 PM", "04:30 PM",
	}, tmpl.Labels())

	require.True(t, tmpl.Contains("09:00 AM"))
	require.True(t, tmpl.Contains("04:30 PM"))
	require.False(t, tmpl.Contains("12:00 PM"))
	require.False(t, tmpl.Contains("9:00 AM")) // labels are zero padded
}

func TestSlotTemplateSubtract(t *testing.T) {
	tmpl := defaultTemplate(t)

	free := tmpl.Subtract([]string{"09:30 AM", "02:00 PM", "06:00 PM"})
	require.Len(t, free, 10)
	require.NotContains(t, free, "09:30 AM")
	require.NotContains(t, free, "02:00 PM")
	// Chronological order is preserved
	require.Equal(t, "09:00 AM", free[0])
	require.Equal(t, "04:30 PM", free[len(free)-1])

	// Subtracting nothing returns the whole template
	require.Equal(t, tmpl.Labels(), tmpl.Subtract(nil))
}

func TestSlotTemplateRejectsBadWindows(t *testing.T) {
	_, err := NewSlotTemplate("12:00", "09:00", "14:00", "17:00", 30)
	require.Error(t, err)

	_, err = NewSlotTemplate("09:00", "12:00", "14:00", "17:00", 0)
	require.Error(t, err)

	_, err = NewSlotTemplate("09:00", "12:00", "11:00", "13:00", 30)
	require.Error(t, err) // overlapping windows produce duplicate labels
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-11-10")
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("10/11/2025")
	require.Error(t, err)
}

func TestAge(t *testing.T) {
	on := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		dob  time.Time
		want int
	}{
		{"birthday passed", time.Date(1990, 3, 1, 0, 0, 0, 0, time.UTC), 35},
		{"birthday today", time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC), 35},
		{"birthday upcoming", time.Date(1990, 9, 1, 0, 0, 0, 0, time.UTC), 34},
		{"leap day birth", time.Date(2000, 2, 29, 0, 0, 0, 0, time.UTC), 25},
		{"born after", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Age(tt.dob, on))
		})
	}
}
