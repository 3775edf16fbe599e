package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
)

type Config struct {
	Primary  Primary        `koanf:"primary"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	WeChat   WeChatConfig   `koanf:"wechat"`
	Retry    RetryConfig    `koanf:"retry"`
	Logger   LoggerConfig   `koanf:"logger"`
	Worker   WorkerConfig   `koanf:"worker"`
	Webhook  WebhookConfig  `koanf:"webhook"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
	RateLimit    float64       `koanf:"rate_limit"`
	RateBurst    int           `koanf:"rate_burst"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
	// HealthCheckPeriod falls back to 30s when unset.
	HealthCheckPeriod time.Duration `koanf:"health_check_period"`
}

type WeChatConfig struct {
	BaseURL          string        `koanf:"base_url" validate:"required"`
	AppID            string        `koanf:"app_id" validate:"required"`
	MchID            string        `koanf:"mch_id" validate:"required"`
	SerialNo         string        `koanf:"serial_no" validate:"required"`
	PrivateKeyPath   string        `koanf:"private_key_path" validate:"required"`
	PlatformCertPath string        `koanf:"platform_cert_path" validate:"required"`
	APIV3Key         string        `koanf:"api_v3_key" validate:"required,len=32"`
	NotifyURL        string        `koanf:"notify_url" validate:"required"`
	RefundNotifyURL  string        `koanf:"refund_notify_url" validate:"required"`
	ConnTimeout      time.Duration `koanf:"conn_timeout" validate:"required"`
}

type RetryConfig struct {
	BaseDelay  int32 `koanf:"base_delay"`
	MaxRetries int32 `koanf:"max_retries"`
}

type LoggerConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type WorkerConfig struct {
	Interval   time.Duration `koanf:"interval" validate:"required"`
	BatchSize  int           `koanf:"batch_size" validate:"required"`
	StaleAfter time.Duration `koanf:"stale_after" validate:"required"`
}

type WebhookConfig struct {
	// TimestampSkew bounds how far a notification's signature timestamp may
	// drift from the local clock before the delivery is rejected.
	TimestampSkew time.Duration `koanf:"timestamp_skew" validate:"required"`
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	err := k.Load(env.Provider("GATEWAY_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "GATEWAY_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}
