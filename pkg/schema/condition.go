package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Condition guards a step or playlist. All populated fields must hold for
// the node to contribute steps; an absent condition always holds.
//
// days_of_week and time_of_day come from the v2 schema. cron restricts
// activation to minutes matched by a standard 5-field expression, and
// when is a CEL expression over {pass, weekday, hour, minute, date}.
type Condition struct {
	DaysOfWeek []string     `json:"days_of_week,omitempty"`
	TimeOfDay  []TimeWindow `json:"time_of_day,omitempty"`
	Cron       string       `json:"cron,omitempty"`
	When       string       `json:"when,omitempty"`
}

// IsZero reports whether no constraint is set.
func (c *Condition) IsZero() bool {
	return c == nil ||
		(len(c.DaysOfWeek) == 0 && len(c.TimeOfDay) == 0 && c.Cron == "" && c.When == "")
}

// TimeWindow is a half-open [start, end) local-time window in HH:MM form.
// start > end wraps past midnight (e.g. 22:00 to 02:00).
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// weekdayNames maps the accepted day spellings (long and short forms,
// matching the original config files) to time.Weekday.
var weekdayNames = map[string]time.Weekday{
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
	"sun": time.Sunday, "sunday": time.Sunday,
}

// ParseWeekday resolves a day-of-week tag, case-insensitively.
func ParseWeekday(name string) (time.Weekday, bool) {
	day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	return day, ok
}

// ParseClock parses an HH:MM value into minutes since midnight.
func ParseClock(value string) (int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("time %q must be in HH:MM form", value)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("time %q must be numeric HH:MM", value)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("time %q must be numeric HH:MM", value)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("time %q must be within 00:00-23:59", value)
	}
	return hours*60 + minutes, nil
}

// Contains reports whether the given minutes-since-midnight value falls
// inside the window. Assumes both bounds already validated.
func (w TimeWindow) Contains(minutes int) (bool, error) {
	start, err := ParseClock(w.Start)
	if err != nil {
		return false, err
	}
	end, err := ParseClock(w.End)
	if err != nil {
		return false, err
	}
	if start == end {
		return false, fmt.Errorf("window %s-%s is empty", w.Start, w.End)
	}
	if start < end {
		return minutes >= start && minutes < end, nil
	}
	// Overnight window such as 22:00-02:00.
	return minutes >= start || minutes < end, nil
}
