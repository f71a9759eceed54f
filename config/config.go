package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Presence configuration
	PulseWindow       time.Duration
	HeartbeatInterval time.Duration

	// Admission queue configuration
	SlotMinutes            int
	PositionUpdateInterval time.Duration
	InactiveQueueTTL       time.Duration

	// Notification configuration
	NotifySendDelay time.Duration

	// Payment provider (paygate) configuration
	Paygate PaygateConfig

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

type PaygateConfig struct {
	BaseURL    string
	PartnerID  string
	ClientID   string
	ClientKey  string
	HMACKey    string
	MerchantID string

	PNSubKey    string
	PNSubSecret string
	PNUUID      string
	PNChannel   string
	PNCipherKey string

	// bcrypt hash of the shared webhook token; empty disables the check
	WebhookTokenHash string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Presence
		PulseWindow:       getEnvAsDuration("PULSE_WINDOW", "180s"),
		HeartbeatInterval: getEnvAsDuration("HEARTBEAT_INTERVAL", "45s"),

		// Admission queue
		SlotMinutes:            getEnvAsInt("QUEUE_SLOT_MINUTES", 15),
		PositionUpdateInterval: getEnvAsDuration("QUEUE_POSITION_UPDATE", "5s"),
		InactiveQueueTTL:       getEnvAsDuration("INACTIVE_QUEUE_TTL", "1h"),

		// Notifications
		NotifySendDelay: getEnvAsDuration("NOTIFY_SEND_DELAY", "3s"),

		// Payment provider
		Paygate: PaygateConfig{
			BaseURL:    getEnv("PAYGATE_BASE_URL", ""),
			PartnerID:  getEnv("PAYGATE_PARTNER_ID", ""),
			ClientID:   getEnv("PAYGATE_CLIENT_ID", ""),
			ClientKey:  getEnv("PAYGATE_CLIENT_KEY", ""),
			HMACKey:    getEnv("PAYGATE_HMAC_KEY", ""),
			MerchantID: getEnv("PAYGATE_MERCHANT_ID", ""),

			PNSubKey:    getEnv("PAYGATE_PN_SUBKEY", ""),
			PNSubSecret: getEnv("PAYGATE_PN_SUBSECRET", ""),
			PNUUID:      getEnv("PAYGATE_PN_UUID", ""),
			PNChannel:   getEnv("PAYGATE_PN_CHANNEL", ""),
			PNCipherKey: getEnv("PAYGATE_PN_CIPHERKEY", ""),

			WebhookTokenHash: getEnv("PAYMENT_WEBHOOK_TOKEN_HASH", ""),
		},

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
