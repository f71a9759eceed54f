package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"consult-system/config"
	"consult-system/internal/handlers"
	"consult-system/internal/services"
	"consult-system/internal/services/provider"
	"consult-system/internal/status"
	_ "consult-system/migrations"
	"consult-system/monitoring"
	"consult-system/security"
	"consult-system/utils"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	if cfg.Environment != "development" {
		if cfg.PubNubPublishKey == "" || cfg.PubNubSubscribeKey == "" {
			log.Fatal("PubNub keys are required outside development")
		}
	}

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub for outbound notifications
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)
	publisher := services.NewPubNubPublisher(pn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	store := services.NewRecordStore(app)
	presenceService := services.NewPresenceService(redisClient, store, cfg)
	queueService := services.NewQueueService(redisClient, publisher, cfg)
	notifyService := services.NewNotifyService(store, publisher, cfg.NotifySendDelay)

	// The payment provider is optional; without it charges are refused
	// but webhook settlement still works.
	var paymentProvider provider.PaymentProvider
	if cfg.Paygate.BaseURL != "" {
		var err error
		paymentProvider, err = provider.New(ctx, provider.ProviderPaygate, &cfg.Paygate)
		if err != nil {
			return err
		}
		defer paymentProvider.Close(ctx)
	}

	// Initialize handlers
	presenceHandler := handlers.NewPresenceHandler(presenceService)
	queueHandler := handlers.NewQueueHandler(queueService)
	notifyHandler := handlers.NewNotifyHandler(notifyService)
	adminHandler := handlers.NewAdminHandler(app, queueService)
	rateLimiter := security.NewRateLimiter(redisClient)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Start background tasks
	queueService.StartPositionBroadcaster()
	queueService.StartCleanupLoop()

	if cfg.EnableMetrics {
		monitor := monitoring.NewMonitor(redisClient)
		monitor.Start(cfg.MetricsPort, 15*time.Second)
		defer monitor.Stop()
	}

	// Setup graceful shutdown
	go handleShutdown(cancel, queueService, notifyService)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// app.DB() is only usable after bootstrap, so the ledger
		// wiring lives here
		ledgerService := services.NewLedgerService(app.DB(), func(fn func(tx dbx.Builder) error) error {
			return app.RunInTransaction(func(txApp core.App) error {
				return fn(txApp.DB())
			})
		})
		paymentHandler := handlers.NewPaymentHandler(ledgerService, paymentProvider, cfg)

		if paymentProvider != nil {
			go consumeProviderEvents(ctx, paymentProvider, ledgerService)
		}

		antiAbuse := rateLimiter.AntiAbuse(60, time.Minute)

		e.Router.BindFunc(func(e *core.RequestEvent) error {
			start := time.Now()
			err := e.Next()
			monitoring.ObserveRequest(e.Request.URL.Path, time.Since(start))
			return err
		})

		// Presence endpoints
		e.Router.POST("/api/presence/heartbeat", presenceHandler.Heartbeat)
		e.Router.POST("/api/presence/offline", presenceHandler.SetOffline)
		e.Router.GET("/api/presence/status", presenceHandler.GetStatus)
		e.Router.POST("/api/presence/notify-online", notifyHandler.NotifyOnline)

		// Queue endpoints
		e.Router.POST("/api/queue/join", queueHandler.JoinQueue).BindFunc(antiAbuse)
		e.Router.POST("/api/queue/leave", queueHandler.LeaveQueue)
		e.Router.POST("/api/queue/next", queueHandler.NextInQueue)
		e.Router.GET("/api/queue/position", queueHandler.GetPosition)

		// Payment endpoints
		e.Router.POST("/api/webhooks/payment", paymentHandler.Webhook)
		e.Router.POST("/api/charges", paymentHandler.CreateCharge).BindFunc(antiAbuse)
		e.Router.GET("/api/payments/{paymentId}/status", paymentHandler.GetPaymentStatus)

		// Admin endpoints
		e.Router.GET("/api/admin/queue-dashboard", adminHandler.GetQueueDashboard)
		e.Router.GET("/api/admin/queue-details", adminHandler.GetQueueDetails)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// consumeProviderEvents feeds push events from the provider into the
// ledger, so payments settle even when the webhook never lands.
func consumeProviderEvents(ctx context.Context, prov provider.PaymentProvider, ledger *services.LedgerService) {
	events := make(chan *status.ProviderEvent, 1)
	prov.SetEventChannel(events)

	for {
		select {
		case ev := <-events:
			slog.Info("provider event received", "provider_payment_id", ev.ProviderPaymentID, "amount", ev.Amount)

			if _, err := ledger.Process(ctx, "PAYMENT_RECEIVED", ev.ProviderPaymentID); err != nil {
				slog.Error("ledger.Process()", "error", err)
			}

		case <-ctx.Done():
			return
		}
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc, queueService *services.QueueService, notifyService *services.NotifyService) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	queueService.Shutdown()
	notifyService.Wait()
	cancel()
}
