package monitoring

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var (
	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "admission_queue_waiting",
		Help: "Number of clients waiting per consultant queue",
	}, []string{"consultant_id"})

	queueOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admission_queue_operations_total",
		Help: "Queue operations by type and outcome",
	}, []string{"operation", "consultant_id", "outcome"})

	heartbeats = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_heartbeats_total",
		Help: "Liveness pulses received",
	})

	statusLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "presence_status_lookups_total",
		Help: "Status resolutions by resolved status",
	}, []string{"status"})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "follower_notifications_total",
		Help: "Follower notification sends by outcome",
	}, []string{"outcome"})

	webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Payment webhook deliveries by event and outcome",
	}, []string{"event", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})
)

func SetQueueDepth(consultantID string, waiting int) {
	queueDepth.WithLabelValues(consultantID).Set(float64(waiting))
}

func TrackQueueOperation(operation, consultantID, outcome string) {
	queueOperations.WithLabelValues(operation, consultantID, outcome).Inc()
}

func TrackHeartbeat() {
	heartbeats.Inc()
}

func TrackStatusLookup(status string) {
	statusLookups.WithLabelValues(status).Inc()
}

func TrackNotification(outcome string) {
	notifications.WithLabelValues(outcome).Inc()
}

func TrackWebhookEvent(event, outcome string) {
	webhookEvents.WithLabelValues(event, outcome).Inc()
}

func ObserveRequest(path string, elapsed time.Duration) {
	requestDuration.WithLabelValues(path).Observe(elapsed.Seconds())
}

// Monitor periodically refreshes the queue depth gauges from Redis and
// serves the scrape endpoint on its own port.
type Monitor struct {
	redis    *redis.Client
	stopChan chan struct{}
}

func NewMonitor(rdb *redis.Client) *Monitor {
	return &Monitor{
		redis:    rdb,
		stopChan: make(chan struct{}),
	}
}

func (m *Monitor) Start(port string, interval time.Duration) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Printf("monitoring: metrics listening on :%s", port)
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			log.Printf("monitoring: metrics server: %v", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.collectQueueDepths(context.Background())
			case <-m.stopChan:
				return
			}
		}
	}()
}

func (m *Monitor) Stop() {
	close(m.stopChan)
}

func (m *Monitor) collectQueueDepths(ctx context.Context) {
	consultants, err := m.redis.SMembers(ctx, "queue:active").Result()
	if err != nil {
		log.Printf("monitoring: collect queue depths: %v", err)
		return
	}

	for _, consultantID := range consultants {
		length, err := m.redis.LLen(ctx, "queue:waiting:"+consultantID).Result()
		if err != nil {
			continue
		}
		SetQueueDepth(consultantID, int(length))
	}
}
