package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Weekday parsing ---

func TestParseWeekday_AcceptsLongAndShortForms(t *testing.T) {
	cases := map[string]time.Weekday{
		"mon":       time.Monday,
		"Monday":    time.Monday,
		"TUES":      time.Tuesday,
		"wednesday": time.Wednesday,
		" sun ":     time.Sunday,
	}
	for name, want := range cases {
		got, ok := ParseWeekday(name)
		require.True(t, ok, "expected %q to parse", name)
		assert.Equal(t, want, got)
	}
}

func TestParseWeekday_RejectsUnknownNames(t *testing.T) {
	_, ok := ParseWeekday("someday")
	assert.False(t, ok)
}

// --- Clock parsing ---

func TestParseClock(t *testing.T) {
	minutes, err := ParseClock("08:30")
	require.NoError(t, err)
	assert.Equal(t, 8*60+30, minutes)

	minutes, err = ParseClock("00:00")
	require.NoError(t, err)
	assert.Equal(t, 0, minutes)

	minutes, err = ParseClock("23:59")
	require.NoError(t, err)
	assert.Equal(t, 23*60+59, minutes)
}

func TestParseClock_Rejects(t *testing.T) {
	for _, bad := range []string{"24:00", "12:60", "12", "12:xx", "-1:00"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, "expected %q to fail", bad)
	}
}

// --- Windows ---

func TestTimeWindow_Contains(t *testing.T) {
	win := TimeWindow{Start: "09:00", End: "17:00"}

	in, err := win.Contains(9 * 60)
	require.NoError(t, err)
	assert.True(t, in, "start is inclusive")

	in, err = win.Contains(17 * 60)
	require.NoError(t, err)
	assert.False(t, in, "end is exclusive")

	in, err = win.Contains(12 * 60)
	require.NoError(t, err)
	assert.True(t, in)
}

func TestTimeWindow_WrapsMidnight(t *testing.T) {
	win := TimeWindow{Start: "22:00", End: "02:00"}

	for minutes, want := range map[int]bool{
		23 * 60:     true,
		1 * 60:      true,
		22 * 60:     true,
		2 * 60:      false,
		12 * 60:     false,
		21*60 + 59:  false,
		1*60 + 59:   true,
	} {
		in, err := win.Contains(minutes)
		require.NoError(t, err)
		assert.Equal(t, want, in, "minutes=%d", minutes)
	}
}

func TestTimeWindow_EmptyWindowErrors(t *testing.T) {
	win := TimeWindow{Start: "10:00", End: "10:00"}
	_, err := win.Contains(10 * 60)
	assert.Error(t, err)
}

// --- Condition zero value ---

func TestCondition_IsZero(t *testing.T) {
	var nilCond *Condition
	assert.True(t, nilCond.IsZero())
	assert.True(t, (&Condition{}).IsZero())
	assert.False(t, (&Condition{DaysOfWeek: []string{"mon"}}).IsZero())
	assert.False(t, (&Condition{When: "pass > 0"}).IsZero())
}
