package services

import (
	"context"
	"strconv"
	"testing"
	"time"

	"consult-system/config"
	"consult-system/internal/status"
	"consult-system/models"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	consultants map[string]*models.Consultant
	windows     map[string][]models.ScheduleWindow
	offlined    []string
}

func (f *fakeStore) FindConsultant(_ context.Context, id string) (*models.Consultant, error) {
	c, ok := f.consultants[id]
	if !ok {
		return nil, status.ErrConsultantNotFound
	}
	return c, nil
}

func (f *fakeStore) SetConsultantOffline(_ context.Context, id string) error {
	if _, ok := f.consultants[id]; !ok {
		return status.ErrConsultantNotFound
	}
	f.consultants[id].IsOnline = false
	f.offlined = append(f.offlined, id)
	return nil
}

func (f *fakeStore) ActiveScheduleWindows(_ context.Context, id string) ([]models.ScheduleWindow, error) {
	return f.windows[id], nil
}

func presenceConfig() *config.Config {
	return &config.Config{PulseWindow: 180 * time.Second}
}

func newPresenceFixture(store *fakeStore) (*PresenceService, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	svc := NewPresenceService(db, store, presenceConfig())
	return svc, mock
}

func TestHeartbeatRecordsPulse(t *testing.T) {
	svc, mock := newPresenceFixture(&fakeStore{})
	at := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return at }

	mock.ExpectSet("presence:pulse:c1", at.UnixMilli(), 360*time.Second).SetVal("OK")

	err := svc.Heartbeat(context.Background(), "c1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastPulseMissing(t *testing.T) {
	svc, mock := newPresenceFixture(&fakeStore{})

	mock.ExpectGet("presence:pulse:c1").RedisNil()

	pulse, err := svc.LastPulse(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, pulse.IsZero())
}

func TestSetOfflineDropsPulse(t *testing.T) {
	store := &fakeStore{consultants: map[string]*models.Consultant{
		"c1": {ID: "c1", Kind: models.KindHuman, IsOnline: true},
	}}
	svc, mock := newPresenceFixture(store)

	mock.ExpectDel("presence:pulse:c1").SetVal(1)

	err := svc.SetOffline(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, store.offlined)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetOfflineUnknownConsultant(t *testing.T) {
	svc, _ := newPresenceFixture(&fakeStore{consultants: map[string]*models.Consultant{}})

	err := svc.SetOffline(context.Background(), "ghost")
	assert.ErrorIs(t, err, status.ErrConsultantNotFound)
}

func TestResolveStatusHumanOnline(t *testing.T) {
	consultant := &models.Consultant{ID: "c1", Kind: models.KindHuman, IsOnline: true}
	svc, mock := newPresenceFixture(&fakeStore{})

	at := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return at }
	pulse := at.Add(-30 * time.Second)
	mock.ExpectGet("presence:pulse:c1").SetVal(strconv.FormatInt(pulse.UnixMilli(), 10))

	st, err := svc.ResolveStatus(context.Background(), consultant)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, st)
}

func TestResolveStatusHumanStalePulse(t *testing.T) {
	consultant := &models.Consultant{ID: "c1", Kind: models.KindHuman, IsOnline: true}
	svc, mock := newPresenceFixture(&fakeStore{})

	at := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return at }
	pulse := at.Add(-200 * time.Second)
	mock.ExpectGet("presence:pulse:c1").SetVal(strconv.FormatInt(pulse.UnixMilli(), 10))

	st, err := svc.ResolveStatus(context.Background(), consultant)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, st, "flag alone is not enough")
}

func TestResolveStatusHumanFlagOff(t *testing.T) {
	// fresh pulse but the stored flag says offline: the pulse is never read
	consultant := &models.Consultant{ID: "c1", Kind: models.KindHuman, IsOnline: false}
	svc, mock := newPresenceFixture(&fakeStore{})

	st, err := svc.ResolveStatus(context.Background(), consultant)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, st)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveStatusHumanNoPulse(t *testing.T) {
	consultant := &models.Consultant{ID: "c1", Kind: models.KindHuman, IsOnline: true}
	svc, mock := newPresenceFixture(&fakeStore{})

	mock.ExpectGet("presence:pulse:c1").RedisNil()

	st, err := svc.ResolveStatus(context.Background(), consultant)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, st)
}

func TestResolveStatusAutomated(t *testing.T) {
	store := &fakeStore{
		consultants: map[string]*models.Consultant{
			"bot": {ID: "bot", Kind: models.KindAutomated},
		},
		windows: map[string][]models.ScheduleWindow{
			"bot": {{DayOfWeek: 2, StartTime: "09:00", EndTime: "17:00", Active: true}},
		},
	}
	svc, _ := newPresenceFixture(store)

	svc.now = func() time.Time { return time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC) }
	st, err := svc.ResolveStatusByID(context.Background(), "bot")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, st)

	svc.now = func() time.Time { return time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC) }
	st, err = svc.ResolveStatusByID(context.Background(), "bot")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, st)
}

func TestResolveStatusByIDUnknown(t *testing.T) {
	svc, _ := newPresenceFixture(&fakeStore{consultants: map[string]*models.Consultant{}})

	st, err := svc.ResolveStatusByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, status.ErrConsultantNotFound)
	assert.Equal(t, models.StatusOffline, st)
}
