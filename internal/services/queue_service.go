package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"consult-system/config"
	"consult-system/internal/status"
	"consult-system/models"
	"consult-system/monitoring"

	"github.com/redis/go-redis/v9"
)

const activeQueuesKey = "queue:active"

// Lua keeps join, leave and admit atomic per consultant. Redis runs
// scripts one at a time, which linearizes concurrent joiners without
// any locking on our side.
const enqueueScript = `
if redis.call('EXISTS', KEYS[2]) == 1 then
	return {-1}
end
redis.call('RPUSH', KEYS[1], ARGV[1])
redis.call('HSET', KEYS[2], 'joined_at', ARGV[2])
redis.call('SADD', KEYS[3], ARGV[3])
return {redis.call('LLEN', KEYS[1])}
`

const cancelScript = `
local removed = redis.call('LREM', KEYS[1], 1, ARGV[1])
redis.call('DEL', KEYS[2])
if redis.call('LLEN', KEYS[1]) == 0 then
	redis.call('SREM', KEYS[3], ARGV[2])
end
return removed
`

const dequeueScript = `
local client = redis.call('LPOP', KEYS[1])
if not client then
	return false
end
local entry = ARGV[1] .. client
local joined = redis.call('HGET', entry, 'joined_at')
redis.call('DEL', entry)
if redis.call('LLEN', KEYS[1]) == 0 then
	redis.call('SREM', KEYS[2], ARGV[2])
end
return {client, joined}
`

// QueueService manages per-consultant FIFO admission queues in Redis.
type QueueService struct {
	redis     *redis.Client
	publisher Publisher
	config    *config.Config

	stopChan chan struct{}
	wg       sync.WaitGroup

	now func() time.Time
}

func NewQueueService(rdb *redis.Client, publisher Publisher, cfg *config.Config) *QueueService {
	return &QueueService{
		redis:     rdb,
		publisher: publisher,
		config:    cfg,
		stopChan:  make(chan struct{}),
		now:       time.Now,
	}
}

func waitingKey(consultantID string) string {
	return fmt.Sprintf("queue:waiting:%s", consultantID)
}

func entryKey(consultantID, clientID string) string {
	return fmt.Sprintf("queue:entry:%s:%s", consultantID, clientID)
}

func entryKeyPrefix(consultantID string) string {
	return fmt.Sprintf("queue:entry:%s:", consultantID)
}

func clientChannel(clientID string) string {
	return fmt.Sprintf("client-%s", clientID)
}

// Enqueue appends the client to the consultant's queue and returns the
// assigned position (1-based) with the waiting-time estimate.
func (s *QueueService) Enqueue(ctx context.Context, consultantID, clientID string) (*models.QueueTicket, error) {
	res, err := s.redis.Eval(ctx, enqueueScript,
		[]string{waitingKey(consultantID), entryKey(consultantID, clientID), activeQueuesKey},
		clientID, s.now().Unix(), consultantID,
	).Result()
	if err != nil {
		monitoring.TrackQueueOperation("enqueue", consultantID, "error")
		return nil, fmt.Errorf("queue: enqueue %s/%s: %w", consultantID, clientID, err)
	}

	reply, ok := res.([]interface{})
	if !ok || len(reply) == 0 {
		return nil, fmt.Errorf("queue: enqueue %s/%s: unexpected reply %v", consultantID, clientID, res)
	}

	position, _ := reply[0].(int64)
	if position < 0 {
		monitoring.TrackQueueOperation("enqueue", consultantID, "duplicate")
		return nil, status.ErrAlreadyQueued
	}

	monitoring.TrackQueueOperation("enqueue", consultantID, "success")

	ticket := &models.QueueTicket{
		Position:   int(position),
		ETAMinutes: int(position) * s.config.SlotMinutes,
	}

	s.publishToClient(clientID, map[string]any{
		"type":          "queue_joined",
		"consultant_id": consultantID,
		"position":      ticket.Position,
		"eta_minutes":   ticket.ETAMinutes,
	})

	return ticket, nil
}

// Cancel removes the client from the queue. Everyone behind shifts up
// implicitly; positions are derived from list order, never stored.
func (s *QueueService) Cancel(ctx context.Context, consultantID, clientID string) error {
	removed, err := s.redis.Eval(ctx, cancelScript,
		[]string{waitingKey(consultantID), entryKey(consultantID, clientID), activeQueuesKey},
		clientID, consultantID,
	).Int64()
	if err != nil {
		monitoring.TrackQueueOperation("cancel", consultantID, "error")
		return fmt.Errorf("queue: cancel %s/%s: %w", consultantID, clientID, err)
	}
	if removed == 0 {
		monitoring.TrackQueueOperation("cancel", consultantID, "missing")
		return status.ErrNotQueued
	}

	monitoring.TrackQueueOperation("cancel", consultantID, "success")
	return nil
}

// DequeueNext pops the head of the queue for admission and tells the
// client their turn came up.
func (s *QueueService) DequeueNext(ctx context.Context, consultantID string) (*models.QueueEntry, error) {
	res, err := s.redis.Eval(ctx, dequeueScript,
		[]string{waitingKey(consultantID), activeQueuesKey},
		entryKeyPrefix(consultantID), consultantID,
	).Result()
	if err == redis.Nil {
		monitoring.TrackQueueOperation("dequeue", consultantID, "empty")
		return nil, status.ErrEmptyQueue
	}
	if err != nil {
		monitoring.TrackQueueOperation("dequeue", consultantID, "error")
		return nil, fmt.Errorf("queue: dequeue %s: %w", consultantID, err)
	}

	reply, ok := res.([]interface{})
	if !ok || len(reply) < 2 {
		return nil, fmt.Errorf("queue: dequeue %s: unexpected reply %v", consultantID, res)
	}

	clientID, _ := reply[0].(string)
	entry := &models.QueueEntry{
		ConsultantID: consultantID,
		ClientID:     clientID,
		Position:     0,
	}
	if joined, ok := reply[1].(string); ok {
		if sec, err := strconv.ParseInt(joined, 10, 64); err == nil {
			entry.JoinedAt = time.Unix(sec, 0)
		}
	}

	monitoring.TrackQueueOperation("dequeue", consultantID, "success")

	s.publishToClient(clientID, map[string]any{
		"type":          "queue_ready",
		"consultant_id": consultantID,
	})

	return entry, nil
}

// Position reports the client's current 1-based position. A client no
// longer (or never) in the queue gets status.ErrNotQueued.
func (s *QueueService) Position(ctx context.Context, consultantID, clientID string) (*models.QueueTicket, error) {
	idx, err := s.redis.LPos(ctx, waitingKey(consultantID), clientID, redis.LPosArgs{}).Result()
	if err == redis.Nil {
		return nil, status.ErrNotQueued
	}
	if err != nil {
		return nil, fmt.Errorf("queue: position %s/%s: %w", consultantID, clientID, err)
	}

	position := int(idx) + 1
	return &models.QueueTicket{
		Position:   position,
		ETAMinutes: position * s.config.SlotMinutes,
	}, nil
}

// Stats summarizes one consultant's queue for the dashboard.
func (s *QueueService) Stats(ctx context.Context, consultantID string) (*models.QueueStats, error) {
	length, err := s.redis.LLen(ctx, waitingKey(consultantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: stats %s: %w", consultantID, err)
	}
	return &models.QueueStats{
		ConsultantID: consultantID,
		Waiting:      int(length),
		LastUpdated:  time.Now(),
	}, nil
}

// WaitingClients returns the queue content in order, positions attached.
func (s *QueueService) WaitingClients(ctx context.Context, consultantID string) ([]models.QueueEntry, error) {
	clients, err := s.redis.LRange(ctx, waitingKey(consultantID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: list %s: %w", consultantID, err)
	}

	entries := make([]models.QueueEntry, 0, len(clients))
	for i, clientID := range clients {
		entry := models.QueueEntry{
			ConsultantID: consultantID,
			ClientID:     clientID,
			Position:     i + 1,
		}
		if joined, err := s.redis.HGet(ctx, entryKey(consultantID, clientID), "joined_at").Result(); err == nil {
			if sec, perr := strconv.ParseInt(joined, 10, 64); perr == nil {
				entry.JoinedAt = time.Unix(sec, 0)
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ActiveQueues lists the consultants who currently have waiting clients.
func (s *QueueService) ActiveQueues(ctx context.Context) ([]string, error) {
	return s.redis.SMembers(ctx, activeQueuesKey).Result()
}

// StartPositionBroadcaster pushes fresh positions to every waiting
// client on a fixed cadence. Clients also poll; the broadcast only
// shortens the feedback loop.
func (s *QueueService) StartPositionBroadcaster() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.config.PositionUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.broadcastPositions(context.Background())
			case <-s.stopChan:
				return
			}
		}
	}()
}

func (s *QueueService) broadcastPositions(ctx context.Context) {
	consultants, err := s.ActiveQueues(ctx)
	if err != nil {
		log.Printf("queue: broadcast: list active queues: %v", err)
		return
	}

	for _, consultantID := range consultants {
		clients, err := s.redis.LRange(ctx, waitingKey(consultantID), 0, -1).Result()
		if err != nil {
			log.Printf("queue: broadcast: read %s: %v", consultantID, err)
			continue
		}

		monitoring.SetQueueDepth(consultantID, len(clients))

		for i, clientID := range clients {
			position := i + 1
			s.publishToClient(clientID, map[string]any{
				"type":          "queue_position",
				"consultant_id": consultantID,
				"position":      position,
				"eta_minutes":   position * s.config.SlotMinutes,
			})
		}
	}
}

// StartCleanupLoop drops registry entries whose queues drained without
// going through the scripts (manual Redis surgery, crashed admits).
func (s *QueueService) StartCleanupLoop() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.config.InactiveQueueTTL)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.cleanupInactive(context.Background())
			case <-s.stopChan:
				return
			}
		}
	}()
}

func (s *QueueService) cleanupInactive(ctx context.Context) {
	consultants, err := s.ActiveQueues(ctx)
	if err != nil {
		log.Printf("queue: cleanup: %v", err)
		return
	}

	for _, consultantID := range consultants {
		length, err := s.redis.LLen(ctx, waitingKey(consultantID)).Result()
		if err != nil {
			continue
		}
		if length == 0 {
			if err := s.redis.SRem(ctx, activeQueuesKey, consultantID).Err(); err != nil {
				log.Printf("queue: cleanup %s: %v", consultantID, err)
			}
		}
	}
}

// Shutdown stops the background loops and waits for them to exit.
func (s *QueueService) Shutdown() {
	close(s.stopChan)
	s.wg.Wait()
}

func (s *QueueService) publishToClient(clientID string, message map[string]any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(context.Background(), clientChannel(clientID), message); err != nil {
		log.Printf("queue: publish to %s: %v", clientID, err)
	}
}
