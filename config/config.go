// Package config loads the service configuration from the environment.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type App struct {
	Name        string `envconfig:"APP_NAME" default:"INNKEEPER"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":3000"`
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"http://127.0.0.1:5173"`
	// StaticDir holds the built front end; it is served when present.
	StaticDir string `envconfig:"STATIC_DIR" default:"./dist"`

	// DB
	DBDriver   string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBDSN      string `envconfig:"DB_DSN" default:"./innkeeper.db"`
	DBLogLevel string `envconfig:"DB_LOG_LEVEL" default:"warn"`

	// Redis backs the per-room booking lock; empty keeps the lock in-process.
	RedisURL string        `envconfig:"REDIS_URL"`
	LockTTL  time.Duration `envconfig:"LOCK_TTL" default:"10s"`
	LockWait time.Duration `envconfig:"LOCK_WAIT" default:"3s"`

	// JWT
	JWTSecret string        `envconfig:"JWT_SECRET" default:"secret"`
	JWKSURL   string        `envconfig:"JWKS_URL"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"72h"`

	// Logging / tracing
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LOG_FORMAT" default:"text"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Notifications
	RabbitURL      string `envconfig:"RABBIT_URL"`
	EventsExchange string `envconfig:"EVENTS_EXCHANGE" default:"hotel.events"`
	SMTPHost       string `envconfig:"SMTP_HOST"`
	SMTPPort       int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername   string `envconfig:"SMTP_USERNAME"`
	SMTPPassword   string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom       string `envconfig:"SMTP_FROM" default:"frontdesk@innkeeper.local"`
	AdminEmail     string `envconfig:"ADMIN_EMAIL" default:"admin@innkeeper.local"`
	AdminPassword  string `envconfig:"ADMIN_PASSWORD" default:"superadminpass111"`

	// Payments
	WebhookSecret    string        `envconfig:"PAYMENT_WEBHOOK_SECRET"`
	OmisePublicKey   string        `envconfig:"OMISE_PUBLIC_KEY"`
	OmiseSecretKey   string        `envconfig:"OMISE_SECRET_KEY"`
	GatewayTimeout   time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"15s"`
	Currency         string        `envconfig:"DEFAULT_CURRENCY" default:"USD"`
	OverpayTolerance float64       `envconfig:"OVERPAY_TOLERANCE" default:"0.01"`

	// CancelCutoff is how long before check-in a guest may still cancel.
	CancelCutoff time.Duration `envconfig:"CANCEL_CUTOFF" default:"24h"`
	// NoShowWindow is how long after check-in a booking may be marked no-show.
	NoShowWindow time.Duration `envconfig:"NO_SHOW_WINDOW" default:"24h"`
}

// Load reads .env when present and then the process environment.
func Load() (App, error) {
	_ = godotenv.Load(".env")

	var c App
	err := envconfig.Process("", &c)
	return c, err
}
