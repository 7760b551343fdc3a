package records

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	relativeRe  = regexp.MustCompile(`^in\s+(\d+)\s*(minute|min|hour|hr|day|week)s?$`)
	clockRe     = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
	absoluteFmt = []string{
		time.RFC3339,
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006-01-02",
	}
)

// ParseWhen reads the loose time phrases the model passes to tools:
// "in 10 minutes", "tomorrow 9am", "today at 14:30", "2pm" or an ISO date.
// A bare time of day that has already passed today means tomorrow.
func ParseWhen(text string, now time.Time) (time.Time, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range absoluteFmt {
		if t, err := time.ParseInLocation(layout, strings.ToUpper(s), now.Location()); err == nil {
			return t, true
		}
	}

	if m := relativeRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		var unit time.Duration
		switch m[2] {
		case "minute", "min":
			unit = time.Minute
		case "hour", "hr":
			unit = time.Hour
		case "day":
			unit = 24 * time.Hour
		case "week":
			unit = 7 * 24 * time.Hour
		}
		return now.Add(time.Duration(n) * unit), true
	}

	day := 0
	explicitDay := false
	switch {
	case strings.HasPrefix(s, "tomorrow"):
		day, explicitDay = 1, true
		s = strings.TrimPrefix(s, "tomorrow")
	case strings.HasPrefix(s, "today"):
		explicitDay = true
		s = strings.TrimPrefix(s, "today")
	}
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "at"))

	if s == "" {
		if !explicitDay {
			return time.Time{}, false
		}
		// "tomorrow" alone: same clock time, next day.
		return now.AddDate(0, 0, day), true
	}

	hour, minute, ok := parseClock(s)
	if !ok {
		return time.Time{}, false
	}
	t := time.Date(now.Year(), now.Month(), now.Day()+day, hour, minute, 0, 0, now.Location())
	if !explicitDay && !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t, true
}

func parseClock(s string) (int, int, bool) {
	m := clockRe.FindStringSubmatch(strings.ReplaceAll(s, ".", ""))
	if m == nil {
		return 0, 0, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch m[3] {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if m[2] == "" {
			// A bare number is too ambiguous to schedule.
			return 0, 0, false
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
