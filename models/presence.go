package models

type ConsultantKind string

const (
	KindHuman     ConsultantKind = "human"
	KindAutomated ConsultantKind = "automated"
)

type ConsultantStatus string

const (
	StatusOnline  ConsultantStatus = "online"
	StatusOffline ConsultantStatus = "offline"
)

// Consultant mirrors the consultants collection record.
type Consultant struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Kind         ConsultantKind `json:"kind"`
	IsOnline     bool           `json:"is_online"`
	AcceptsVideo bool           `json:"accepts_video"`
	AcceptsChat  bool           `json:"accepts_chat"`
}
