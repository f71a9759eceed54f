package models

// Follower mirrors the followers collection record.
type Follower struct {
	ID           string `json:"id"`
	ConsultantID string `json:"consultant_id"`
	UserID       string `json:"user_id"`
	Destination  string `json:"destination"`
	NotifyOnline bool   `json:"notify_online"`
}
