package services

import (
	"testing"
	"time"

	"consult-system/models"

	"github.com/stretchr/testify/assert"
)

// 2024-01-02 is a Tuesday (weekday 2); 2024-01-03 a Wednesday.
func onDay(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, time.UTC)
}

func TestInWindowSameDay(t *testing.T) {
	windows := []models.ScheduleWindow{
		{DayOfWeek: 2, StartTime: "09:00", EndTime: "17:00", Active: true},
	}

	assert.True(t, InWindow(onDay(2, 9, 0), windows), "start boundary counts")
	assert.True(t, InWindow(onDay(2, 12, 30), windows))
	assert.True(t, InWindow(onDay(2, 17, 0), windows), "end boundary counts")
	assert.False(t, InWindow(onDay(2, 8, 59), windows))
	assert.False(t, InWindow(onDay(2, 17, 1), windows))
	assert.False(t, InWindow(onDay(3, 12, 0), windows), "wrong day")
}

func TestInWindowCrossesMidnight(t *testing.T) {
	// Tuesday 19:00 through Wednesday 03:00
	windows := []models.ScheduleWindow{
		{DayOfWeek: 2, StartTime: "19:00", EndTime: "03:00", Active: true},
	}

	assert.True(t, InWindow(onDay(2, 19, 0), windows), "evening portion, own day")
	assert.True(t, InWindow(onDay(2, 23, 59), windows))
	assert.True(t, InWindow(onDay(3, 2, 0), windows), "morning portion, next day")
	assert.True(t, InWindow(onDay(3, 3, 0), windows), "end boundary counts")
	assert.False(t, InWindow(onDay(3, 4, 0), windows), "past the morning portion")
	assert.False(t, InWindow(onDay(2, 18, 59), windows), "before the evening portion")
	assert.False(t, InWindow(onDay(4, 2, 0), windows), "two days later")
}

func TestInWindowInactiveIgnored(t *testing.T) {
	windows := []models.ScheduleWindow{
		{DayOfWeek: 2, StartTime: "00:00", EndTime: "23:59", Active: false},
	}

	assert.False(t, InWindow(onDay(2, 12, 0), windows))
}

func TestInWindowMultipleWindows(t *testing.T) {
	windows := []models.ScheduleWindow{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", Active: true},
		{DayOfWeek: 2, StartTime: "14:00", EndTime: "16:00", Active: true},
	}

	assert.True(t, InWindow(onDay(2, 15, 0), windows))
	assert.False(t, InWindow(onDay(2, 10, 0), windows), "Monday window does not apply on Tuesday")
}

func TestInWindowBadClockSkipped(t *testing.T) {
	windows := []models.ScheduleWindow{
		{DayOfWeek: 2, StartTime: "25:00", EndTime: "17:00", Active: true},
		{DayOfWeek: 2, StartTime: "not-a-clock", EndTime: "17:00", Active: true},
	}

	assert.False(t, InWindow(onDay(2, 12, 0), windows))
}

func TestInWindowEmpty(t *testing.T) {
	assert.False(t, InWindow(onDay(2, 12, 0), nil))
}
