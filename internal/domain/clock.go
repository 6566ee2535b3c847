package domain

import "github.com/jonboulle/clockwork"

// clock is a package-level time source so tests can freeze time via SetClock.
// Production code uses the real clock; tests inject a fake for deterministic
// date windows.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// TodayUTC returns the current UTC calendar date at midnight.
func TodayUTC() string {
	return clock.Now().UTC().Format("2006-01-02")
}

// DateWindow returns the UTC calendar dates from today back windowDays days,
// inclusive on both ends. A window of zero or less is empty: stale-row
// deletion is skipped entirely rather than issued against no dates.
func DateWindow(windowDays int) []string {
	if windowDays <= 0 {
		return nil
	}
	now := clock.Now().UTC()
	dates := make([]string, 0, windowDays+1)
	for i := 0; i <= windowDays; i++ {
		dates = append(dates, now.AddDate(0, 0, -i).Format("2006-01-02"))
	}
	return dates
}
