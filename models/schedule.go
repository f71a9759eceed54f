package models

// ScheduleWindow is one recurring weekly availability range for an
// automated consultant. StartTime/EndTime are "HH:MM"; a start later
// than the end means the window crosses midnight into the next day.
type ScheduleWindow struct {
	ID           string `json:"id"`
	ConsultantID string `json:"consultant_id"`
	DayOfWeek    int    `json:"day_of_week"` // 0 = Sunday
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Active       bool   `json:"active"`
}
