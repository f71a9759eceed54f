package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"consult-system/models"
	"consult-system/monitoring"
	"consult-system/utils"
)

// NotifyService fans a "consultant is online" announcement out to the
// consultant's followers. Batches are fire-and-forget: the eligible
// count is returned immediately and delivery happens in the background.
// A batch lost on restart is lost; nothing is persisted.
type NotifyService struct {
	store     FollowerSource
	publisher Publisher
	breaker   *utils.CircuitBreaker
	sendDelay time.Duration

	wg sync.WaitGroup
}

func NewNotifyService(store FollowerSource, publisher Publisher, sendDelay time.Duration) *NotifyService {
	return &NotifyService{
		store:     store,
		publisher: publisher,
		breaker:   utils.NewCircuitBreaker("notify-transport"),
		sendDelay: sendDelay,
	}
}

// NotifyFollowers counts the eligible followers, kicks off the delivery
// batch and returns. The count reflects eligibility at call time, not
// delivery outcomes.
func (s *NotifyService) NotifyFollowers(ctx context.Context, consultantID string) (int, error) {
	consultant, err := s.store.FindConsultant(ctx, consultantID)
	if err != nil {
		return 0, err
	}

	followers, err := s.store.OnlineFollowers(ctx, consultantID)
	if err != nil {
		return 0, fmt.Errorf("notify: load followers %s: %w", consultantID, err)
	}

	eligible := followers[:0:0]
	for _, f := range followers {
		if f.Destination != "" {
			eligible = append(eligible, f)
		}
	}

	if len(eligible) > 0 {
		message := map[string]any{
			"type":            "consultant_online",
			"consultant_id":   consultant.ID,
			"consultant_name": consultant.Name,
			"message":         fmt.Sprintf("%s is now available", consultant.Name),
		}

		s.wg.Add(1)
		go s.runBatch(consultantID, eligible, message)
	}

	return len(eligible), nil
}

// runBatch walks the follower list in order, pacing sends with a fixed
// delay. A failed send is logged and skipped; it never stalls the rest
// of the batch.
func (s *NotifyService) runBatch(consultantID string, followers []models.Follower, message map[string]any) {
	defer s.wg.Done()

	for i, follower := range followers {
		if i > 0 {
			time.Sleep(s.sendDelay)
		}

		destination := follower.Destination
		_, err := s.breaker.Execute(context.Background(), func() (interface{}, error) {
			return nil, s.publisher.Publish(context.Background(), destination, message)
		})
		if err != nil {
			monitoring.TrackNotification("failed")
			log.Printf("notify: send to %s (consultant %s): %v", destination, consultantID, err)
			continue
		}
		monitoring.TrackNotification("sent")
	}
}

// Wait blocks until every in-flight batch finishes. Used on shutdown to
// give running batches a chance to drain.
func (s *NotifyService) Wait() {
	s.wg.Wait()
}
