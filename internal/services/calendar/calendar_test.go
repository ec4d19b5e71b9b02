package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidDate(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"2024-01-01", true},
		{"2024-02-29", true},
		{"2023-02-29", false},
		{"2024-02-30", false},
		{"2024-13-01", false},
		{"2024-00-10", false},
		{"2024-1-01", false},
		{"24-01-01", false},
		{"2024/01/01", false},
		{"2024-01-01T00:00:00Z", false},
		{" 2024-01-01", false},
		{"", false},
		{"yesterday", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidDate(tt.input))
		})
	}
}

func TestIsSameDay(t *testing.T) {
	assert.True(t, IsSameDay("2024-01-01", "2024-01-01"))
	assert.False(t, IsSameDay("2024-01-01", "2024-01-02"))
}

func TestIsConsecutiveDay(t *testing.T) {
	assert.True(t, IsConsecutiveDay("2024-01-01", "2024-01-02"))
	assert.True(t, IsConsecutiveDay("2024-01-31", "2024-02-01"))
	assert.True(t, IsConsecutiveDay("2023-12-31", "2024-01-01"))

	// Leap years
	assert.True(t, IsConsecutiveDay("2023-02-28", "2023-03-01"))
	assert.False(t, IsConsecutiveDay("2024-02-28", "2024-03-01"))
	assert.True(t, IsConsecutiveDay("2024-02-28", "2024-02-29"))
	assert.True(t, IsConsecutiveDay("2024-02-29", "2024-03-01"))

	assert.False(t, IsConsecutiveDay("2024-01-01", "2024-01-01"))
	assert.False(t, IsConsecutiveDay("2024-01-02", "2024-01-01"))
	assert.False(t, IsConsecutiveDay("2024-01-01", "2024-01-03"))
	assert.False(t, IsConsecutiveDay("bad", "2024-01-02"))
}

func TestDaysBetween(t *testing.T) {
	days, err := DaysBetween("2024-01-01", "2024-01-04")
	require.NoError(t, err)
	assert.Equal(t, 3, days)

	days, err = DaysBetween("2024-01-04", "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, -3, days)

	days, err = DaysBetween("2023-03-01", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, 366, days)

	_, err = DaysBetween("2024-01-01", "nope")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestCompare(t *testing.T) {
	cmp, err := Compare("2024-01-01", "2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = Compare("2024-01-02", "2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, 0, cmp)

	cmp, err = Compare("2024-03-01", "2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)

	_, err = Compare("2024-02-30", "2024-02-29")
	assert.ErrorIs(t, err, ErrInvalidDate)
}
