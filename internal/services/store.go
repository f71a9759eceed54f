package services

import (
	"context"
	"fmt"

	"consult-system/internal/status"
	"consult-system/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// ConsultantStore is the slice of the record store the presence side needs.
type ConsultantStore interface {
	FindConsultant(ctx context.Context, consultantID string) (*models.Consultant, error)
	SetConsultantOffline(ctx context.Context, consultantID string) error
	ActiveScheduleWindows(ctx context.Context, consultantID string) ([]models.ScheduleWindow, error)
}

// FollowerSource is the slice of the record store the dispatcher needs.
type FollowerSource interface {
	FindConsultant(ctx context.Context, consultantID string) (*models.Consultant, error)
	OnlineFollowers(ctx context.Context, consultantID string) ([]models.Follower, error)
}

// RecordStore adapts the PocketBase app to the store interfaces above.
type RecordStore struct {
	app core.App
}

func NewRecordStore(app core.App) *RecordStore {
	return &RecordStore{app: app}
}

func (s *RecordStore) FindConsultant(_ context.Context, consultantID string) (*models.Consultant, error) {
	record, err := s.app.FindRecordById("consultants", consultantID)
	if err != nil {
		return nil, status.ErrConsultantNotFound
	}

	return &models.Consultant{
		ID:           record.Id,
		Name:         record.GetString("name"),
		Kind:         models.ConsultantKind(record.GetString("kind")),
		IsOnline:     record.GetBool("is_online"),
		AcceptsVideo: record.GetBool("accepts_video"),
		AcceptsChat:  record.GetBool("accepts_chat"),
	}, nil
}

// SetConsultantOffline revokes every form of reachability in one save:
// the headline flag and both channel capability flags.
func (s *RecordStore) SetConsultantOffline(ctx context.Context, consultantID string) error {
	record, err := s.app.FindRecordById("consultants", consultantID)
	if err != nil {
		return status.ErrConsultantNotFound
	}

	record.Set("is_online", false)
	record.Set("accepts_video", false)
	record.Set("accepts_chat", false)

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("store: set offline %s: %w", consultantID, err)
	}
	return nil
}

func (s *RecordStore) ActiveScheduleWindows(_ context.Context, consultantID string) ([]models.ScheduleWindow, error) {
	records, err := s.app.FindRecordsByFilter(
		"schedule_windows",
		"consultant = {:cid} && active = true",
		"",
		0,
		0,
		dbx.Params{"cid": consultantID},
	)
	if err != nil {
		return nil, fmt.Errorf("store: schedule windows %s: %w", consultantID, err)
	}

	windows := make([]models.ScheduleWindow, 0, len(records))
	for _, r := range records {
		windows = append(windows, models.ScheduleWindow{
			ID:           r.Id,
			ConsultantID: r.GetString("consultant"),
			DayOfWeek:    r.GetInt("day_of_week"),
			StartTime:    r.GetString("start_time"),
			EndTime:      r.GetString("end_time"),
			Active:       r.GetBool("active"),
		})
	}
	return windows, nil
}

func (s *RecordStore) OnlineFollowers(_ context.Context, consultantID string) ([]models.Follower, error) {
	records, err := s.app.FindRecordsByFilter(
		"followers",
		"consultant = {:cid} && notify_online = true",
		"created",
		0,
		0,
		dbx.Params{"cid": consultantID},
	)
	if err != nil {
		return nil, fmt.Errorf("store: followers %s: %w", consultantID, err)
	}

	followers := make([]models.Follower, 0, len(records))
	for _, r := range records {
		followers = append(followers, models.Follower{
			ID:           r.Id,
			ConsultantID: r.GetString("consultant"),
			UserID:       r.GetString("user_id"),
			Destination:  r.GetString("destination"),
			NotifyOnline: r.GetBool("notify_online"),
		})
	}
	return followers, nil
}
