package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"consult-system/config"
	"consult-system/models"

	"github.com/redis/go-redis/v9"
)

// PresenceService tracks consultant liveness pulses in Redis and
// resolves the effective status per consultant kind.
type PresenceService struct {
	redis  *redis.Client
	store  ConsultantStore
	config *config.Config

	now func() time.Time
}

func NewPresenceService(rdb *redis.Client, store ConsultantStore, cfg *config.Config) *PresenceService {
	return &PresenceService{
		redis:  rdb,
		store:  store,
		config: cfg,
		now:    time.Now,
	}
}

func pulseKey(consultantID string) string {
	return fmt.Sprintf("presence:pulse:%s", consultantID)
}

// Heartbeat records a liveness pulse. Last write wins; there is no
// ordering requirement between concurrent pulses for the same
// consultant. The key expires at twice the pulse window so a dead
// consultant leaves no residue behind.
func (s *PresenceService) Heartbeat(ctx context.Context, consultantID string) error {
	now := s.now().UnixMilli()
	key := pulseKey(consultantID)

	if err := s.redis.Set(ctx, key, now, 2*s.config.PulseWindow).Err(); err != nil {
		return fmt.Errorf("presence: record pulse %s: %w", consultantID, err)
	}
	return nil
}

// LastPulse returns the most recent pulse time, or the zero time when
// no pulse was ever recorded (or it already expired).
func (s *PresenceService) LastPulse(ctx context.Context, consultantID string) (time.Time, error) {
	val, err := s.redis.Get(ctx, pulseKey(consultantID)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("presence: read pulse %s: %w", consultantID, err)
	}

	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("presence: corrupt pulse %s: %w", consultantID, err)
	}
	return time.UnixMilli(ms), nil
}

// SetOffline flips the consultant offline immediately. The pulse key is
// dropped as well so a racing status read cannot see a fresh pulse on a
// consultant who just signed off.
func (s *PresenceService) SetOffline(ctx context.Context, consultantID string) error {
	if err := s.store.SetConsultantOffline(ctx, consultantID); err != nil {
		return err
	}

	if err := s.redis.Del(ctx, pulseKey(consultantID)).Err(); err != nil {
		// record already flipped; the stale pulse expires on its own
		log.Printf("presence: drop pulse %s: %v", consultantID, err)
	}
	return nil
}

// ResolveStatus computes the effective status for a consultant.
//
// Automated consultants are online exactly when the current time falls
// inside one of their active schedule windows. Human consultants are
// online only when both conditions hold: the stored flag says online
// AND a pulse landed within the pulse window. Either condition alone is
// not enough.
func (s *PresenceService) ResolveStatus(ctx context.Context, consultant *models.Consultant) (models.ConsultantStatus, error) {
	if consultant.Kind == models.KindAutomated {
		windows, err := s.store.ActiveScheduleWindows(ctx, consultant.ID)
		if err != nil {
			return models.StatusOffline, err
		}
		if InWindow(s.now(), windows) {
			return models.StatusOnline, nil
		}
		return models.StatusOffline, nil
	}

	if !consultant.IsOnline {
		return models.StatusOffline, nil
	}

	pulse, err := s.LastPulse(ctx, consultant.ID)
	if err != nil {
		return models.StatusOffline, err
	}
	if pulse.IsZero() || s.now().Sub(pulse) >= s.config.PulseWindow {
		return models.StatusOffline, nil
	}
	return models.StatusOnline, nil
}

// ResolveStatusByID looks the consultant up first. An unknown
// consultant resolves to offline with status.ErrConsultantNotFound.
func (s *PresenceService) ResolveStatusByID(ctx context.Context, consultantID string) (models.ConsultantStatus, error) {
	consultant, err := s.store.FindConsultant(ctx, consultantID)
	if err != nil {
		return models.StatusOffline, err
	}
	return s.ResolveStatus(ctx, consultant)
}
