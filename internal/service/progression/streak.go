package progression

import (
	"sort"
	"time"
)

// Streaks holds the current and longest runs of consecutive active days.
type Streaks struct {
	Current int `json:"current_streak"`
	Longest int `json:"longest_streak"`
}

// CalculateStreaks derives streaks from the dates of completed actions.
// Duplicates and ordering of dates do not matter. The current streak counts
// back from today, so it is 0 until today's first action is logged.
func CalculateStreaks(dates []time.Time, today time.Time) Streaks {
	if len(dates) == 0 {
		return Streaks{}
	}

	days := distinctDaysDesc(dates)

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if daysBetween(days[i], days[i-1]) == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	current := 0
	expected := Day(today)
	for _, d := range days {
		if d.After(expected) {
			// future-dated rows do not count
			continue
		}
		if !d.Equal(expected) {
			break
		}
		current++
		expected = expected.AddDate(0, 0, -1)
	}

	return Streaks{Current: current, Longest: longest}
}

func distinctDaysDesc(dates []time.Time) []time.Time {
	seen := make(map[time.Time]bool, len(dates))
	days := make([]time.Time, 0, len(dates))
	for _, t := range dates {
		d := Day(t)
		if seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })
	return days
}

// daysBetween returns the whole days from a to b, both midnight UTC.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
