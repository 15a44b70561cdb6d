package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the service settings. Every key can be set in the environment
// or in a .env file next to the binary.
type Config struct {
	AppEnv string `mapstructure:"APP_ENV"`
	Port   string `mapstructure:"PORT"`

	DatabaseURL    string `mapstructure:"DB_URL"`
	MigrateOnStart bool   `mapstructure:"MIGRATE_ON_START"`

	RedisURL        string        `mapstructure:"REDIS_URL"`
	ProfileCacheTTL time.Duration `mapstructure:"PROFILE_CACHE_TTL"`

	AsynqConcurrency int    `mapstructure:"ASYNQ_CONCURRENCY"`
	AsynqQueues      string `mapstructure:"ASYNQ_QUEUES"`

	PushAMQPURL  string `mapstructure:"PUSH_AMQP_URL"`
	PushExchange string `mapstructure:"PUSH_EXCHANGE"`

	JWTSecret         string  `mapstructure:"JWT_SECRET"`
	CORSOrigins       string  `mapstructure:"CORS_ORIGINS"`
	SendRatePerMinute float64 `mapstructure:"SEND_RATE_PER_MINUTE"`
}

var keys = map[string]any{
	"APP_ENV":              "development",
	"PORT":                 "8080",
	"DB_URL":               "",
	"MIGRATE_ON_START":     false,
	"REDIS_URL":            "",
	"PROFILE_CACHE_TTL":    "10m",
	"ASYNQ_CONCURRENCY":    10,
	"ASYNQ_QUEUES":         "",
	"PUSH_AMQP_URL":        "",
	"PUSH_EXCHANGE":        "messaging.push",
	"JWT_SECRET":           "",
	"CORS_ORIGINS":         "*",
	"SEND_RATE_PER_MINUTE": 60.0,
}

// Load reads .env files (if any) and the environment into a Config.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	// a missing .env is fine; the environment wins over file values
	_ = godotenv.Load(files...)

	v := viper.New()
	for k, def := range keys {
		v.SetDefault(k, def)
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.Port == "" {
		return errors.New("config: PORT is required")
	}
	return nil
}

func (c *Config) IsDevelopment() bool { return c.AppEnv == "development" }

// Origins splits CORS_ORIGINS on commas.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
