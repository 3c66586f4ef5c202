package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Configはアプリ全体の設定
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	Log      Log
	HTTP     HTTPServer
	Database Database

	JWTSecret string `env:"JWT_SECRET,required"` // JWT署名シークレット

	Cart    Cart
	Gateway Gateway `envPrefix:"PAYMENT_"`
	Redis   Redis   `envPrefix:"REDIS_"`
	Kafka   Kafka   `envPrefix:"KAFKA_"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"` // json / text
}

type HTTPServer struct {
	Host            string        `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DATABASE_URL があれば最優先。無ければ POSTGRES_* から組み立てる
type Database struct {
	Driver string `env:"DB_DRIVER" envDefault:"postgres"` // postgres / sqlite

	URL      string `env:"DATABASE_URL"`
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Name     string `env:"POSTGRES_DB" envDefault:"app"`
	SSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	SQLitePath string `env:"SQLITE_PATH" envDefault:"templateshop.db"`

	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"50"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
}

type Cart struct {
	// 1明細あたりの上限数量
	MaxLineQuantity int64 `env:"CART_MAX_LINE_QUANTITY" envDefault:"100"`
}

type Gateway struct {
	Mode          string `env:"GATEWAY_MODE" envDefault:"fake"` // http / fake
	BaseURL       string `env:"GATEWAY_BASE_URL"`
	SecretKey     string `env:"GATEWAY_SECRET_KEY"`
	WebhookSecret string `env:"WEBHOOK_SECRET,required"`
	Currency      string `env:"CURRENCY" envDefault:"USD"`

	Timeout            time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`
	SignatureTolerance time.Duration `env:"SIGNATURE_TOLERANCE" envDefault:"5m"`

	BreakerFailures    uint32        `env:"BREAKER_FAILURES" envDefault:"5"`
	BreakerOpenTimeout time.Duration `env:"BREAKER_OPEN_TIMEOUT" envDefault:"30s"`
}

type Redis struct {
	Addr     string        `env:"ADDR"` // 空ならキャッシュなし
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	CacheTTL time.Duration `env:"ORDER_CACHE_TTL" envDefault:"30s"`
}

type Kafka struct {
	Brokers      []string      `env:"BROKERS" envSeparator:","` // 空ならoutboxは貯めるだけ
	Topic        string        `env:"TOPIC" envDefault:"order-events"`
	PollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"1s"`
	BatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
}

// Loadは環境変数から読み込む
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite: %q", c.Database.Driver)
	}

	switch c.Gateway.Mode {
	case "fake":
		// 本番で偽ゲートウェイを使うと課金されない注文ができる
		if c.IsProduction() {
			return fmt.Errorf("PAYMENT_GATEWAY_MODE=fake is not allowed in production")
		}
	case "http":
		if c.Gateway.BaseURL == "" {
			return fmt.Errorf("PAYMENT_GATEWAY_BASE_URL is required")
		}
		if c.Gateway.SecretKey == "" {
			return fmt.Errorf("PAYMENT_GATEWAY_SECRET_KEY is required")
		}
	default:
		return fmt.Errorf("PAYMENT_GATEWAY_MODE must be http or fake: %q", c.Gateway.Mode)
	}

	if c.Cart.MaxLineQuantity < 1 {
		return fmt.Errorf("CART_MAX_LINE_QUANTITY must be >= 1")
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("PAYMENT_GATEWAY_TIMEOUT must be positive")
	}
	return nil
}

// DSN はpostgres接続文字列を返す。
func (d Database) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// Addr はサーバーの待ち受けアドレス
func (h HTTPServer) Addr() string {
	if h.Port != "" && h.Port[0] == ':' {
		return h.Host + h.Port
	}
	return h.Host + ":" + h.Port
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}
