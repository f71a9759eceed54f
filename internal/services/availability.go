package services

import (
	"strconv"
	"strings"
	"time"

	"consult-system/models"
)

// InWindow reports whether now falls inside any of the given weekly
// schedule windows. A window whose start is later than its end crosses
// midnight: its evening portion matches on the window's own day and its
// morning portion matches on the following day. The caller decides the
// time basis; this function never converts zones.
func InWindow(now time.Time, windows []models.ScheduleWindow) bool {
	currentDay := int(now.Weekday())
	previousDay := (currentDay + 6) % 7
	currentMinutes := now.Hour()*60 + now.Minute()

	for _, w := range windows {
		if !w.Active {
			continue
		}
		if w.DayOfWeek != currentDay && w.DayOfWeek != previousDay {
			continue
		}

		start, ok := clockToMinutes(w.StartTime)
		if !ok {
			continue
		}
		end, ok := clockToMinutes(w.EndTime)
		if !ok {
			continue
		}

		if start <= end {
			// same-day window
			if w.DayOfWeek == currentDay && start <= currentMinutes && currentMinutes <= end {
				return true
			}
			continue
		}

		// midnight-crossing window: evening portion on its own day,
		// morning portion carried over to the next day
		if w.DayOfWeek == currentDay && currentMinutes >= start {
			return true
		}
		if w.DayOfWeek == previousDay && currentMinutes <= end {
			return true
		}
	}

	return false
}

// clockToMinutes parses "HH:MM" into minutes since midnight.
func clockToMinutes(clock string) (int, bool) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}

	return hour*60 + minute, true
}
