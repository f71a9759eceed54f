package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"consult-system/internal/status"
	"consult-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFollowerSource struct {
	consultant *models.Consultant
	followers  []models.Follower
}

func (f *fakeFollowerSource) FindConsultant(_ context.Context, id string) (*models.Consultant, error) {
	if f.consultant == nil || f.consultant.ID != id {
		return nil, status.ErrConsultantNotFound
	}
	return f.consultant, nil
}

func (f *fakeFollowerSource) OnlineFollowers(_ context.Context, _ string) ([]models.Follower, error) {
	return f.followers, nil
}

type flakyPublisher struct {
	mu      sync.Mutex
	sends   []string
	stamps  []time.Time
	failOn  map[int]bool // 1-based attempt numbers that fail
	attempt int
}

func (p *flakyPublisher) Publish(_ context.Context, channel string, _ map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempt++
	p.stamps = append(p.stamps, time.Now())
	if p.failOn[p.attempt] {
		return errors.New("transport down")
	}
	p.sends = append(p.sends, channel)
	return nil
}

func followerBatch(n int) []models.Follower {
	followers := make([]models.Follower, 0, n)
	for i := 0; i < n; i++ {
		followers = append(followers, models.Follower{
			ID:           string(rune('a' + i)),
			ConsultantID: "doc1",
			Destination:  "dest-" + string(rune('a'+i)),
			NotifyOnline: true,
		})
	}
	return followers
}

func TestNotifyFollowersCountsBeforeSending(t *testing.T) {
	store := &fakeFollowerSource{
		consultant: &models.Consultant{ID: "doc1", Name: "Dr. Vong"},
		followers:  followerBatch(3),
	}
	pub := &flakyPublisher{}
	svc := NewNotifyService(store, pub, time.Millisecond)

	count, err := svc.NotifyFollowers(context.Background(), "doc1")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "count reflects eligibility, not delivery")

	svc.Wait()
	assert.Equal(t, []string{"dest-a", "dest-b", "dest-c"}, pub.sends, "sends preserve follower order")
}

func TestNotifyFollowersPacesSends(t *testing.T) {
	store := &fakeFollowerSource{
		consultant: &models.Consultant{ID: "doc1", Name: "Dr. Vong"},
		followers:  followerBatch(5),
	}
	pub := &flakyPublisher{failOn: map[int]bool{3: true}}
	delay := 10 * time.Millisecond
	svc := NewNotifyService(store, pub, delay)

	started := time.Now()
	count, err := svc.NotifyFollowers(context.Background(), "doc1")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	svc.Wait()
	elapsed := time.Since(started)

	assert.Len(t, pub.sends, 4, "the failed send is skipped, not retried")
	assert.NotContains(t, pub.sends, "dest-c")
	assert.GreaterOrEqual(t, elapsed, 4*delay, "four gaps between five sends")
}

func TestNotifyFollowersSkipsBlankDestinations(t *testing.T) {
	followers := followerBatch(2)
	followers = append(followers, models.Follower{ID: "x", ConsultantID: "doc1", NotifyOnline: true})
	store := &fakeFollowerSource{
		consultant: &models.Consultant{ID: "doc1", Name: "Dr. Vong"},
		followers:  followers,
	}
	pub := &flakyPublisher{}
	svc := NewNotifyService(store, pub, time.Millisecond)

	count, err := svc.NotifyFollowers(context.Background(), "doc1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	svc.Wait()
	assert.Len(t, pub.sends, 2)
}

func TestNotifyFollowersUnknownConsultant(t *testing.T) {
	svc := NewNotifyService(&fakeFollowerSource{}, &flakyPublisher{}, time.Millisecond)

	count, err := svc.NotifyFollowers(context.Background(), "ghost")
	assert.ErrorIs(t, err, status.ErrConsultantNotFound)
	assert.Zero(t, count)
}

func TestNotifyFollowersNoFollowers(t *testing.T) {
	store := &fakeFollowerSource{consultant: &models.Consultant{ID: "doc1", Name: "Dr. Vong"}}
	pub := &flakyPublisher{}
	svc := NewNotifyService(store, pub, time.Millisecond)

	count, err := svc.NotifyFollowers(context.Background(), "doc1")
	require.NoError(t, err)
	assert.Zero(t, count)

	svc.Wait()
	assert.Empty(t, pub.sends)
}
