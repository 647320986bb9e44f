package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Telegram TelegramConfig
	Rental   RentalConfig
	Reminder ReminderConfig
	Session  SessionConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if _, err := cfg.Rental.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RENTALBOT_APP_ENV" default:"dev"`
	Port         string `envconfig:"RENTALBOT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"RENTALBOT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RENTALBOT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"RENTALBOT_DB_DSN"`
	Driver string `envconfig:"RENTALBOT_DB_DRIVER" default:"postgres"`

	UseSQLite   bool   `envconfig:"RENTALBOT_USE_SQLITE" default:"false"`
	SQLitePath  string `envconfig:"RENTALBOT_SQLITE_PATH" default:"rentals.db"`
	AutoMigrate bool   `envconfig:"RENTALBOT_AUTO_MIGRATE" default:"false"`

	MaxOpenConns    int           `envconfig:"RENTALBOT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"RENTALBOT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"RENTALBOT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RENTALBOT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// StoreTimeout bounds every store call made by the engine so a slow
	// backend surfaces as a retryable failure instead of hanging a chat.
	StoreTimeout time.Duration `envconfig:"RENTALBOT_DB_STORE_TIMEOUT" default:"10s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RENTALBOT_REDIS_URL"`
	Address      string        `envconfig:"RENTALBOT_REDIS_ADDR"`
	Password     string        `envconfig:"RENTALBOT_REDIS_PASSWORD"`
	DB           int           `envconfig:"RENTALBOT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RENTALBOT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RENTALBOT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RENTALBOT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RENTALBOT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RENTALBOT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type TelegramConfig struct {
	BotToken       string `envconfig:"TELEGRAM_BOT_TOKEN"`
	AdminUserIDs   string `envconfig:"ADMIN_USER_IDS"`
	Password       string `envconfig:"VERIFICATION_PASSWORD"`
	PublicSheetURL string `envconfig:"PUBLIC_SHEET_URL"`
}

// AdminIDs parses the comma-separated admin list, dropping malformed entries.
func (t TelegramConfig) AdminIDs() []int64 {
	parts := strings.Split(t.AdminUserIDs, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// IsAdmin reports whether the user appears in the configured admin list.
func (t TelegramConfig) IsAdmin(userID int64) bool {
	for _, id := range t.AdminIDs() {
		if id == userID {
			return true
		}
	}
	return false
}

type RentalConfig struct {
	Timezone        string `envconfig:"TIMEZONE" default:"Asia/Singapore"`
	MaxQuantity     int    `envconfig:"RENTALBOT_MAX_QUANTITY" default:"50"`
	MaxDurationDays int    `envconfig:"RENTALBOT_MAX_DURATION_DAYS" default:"90"`
}

// Location resolves the configured timezone.
func (r RentalConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", r.Timezone, err)
	}
	return loc, nil
}

type ReminderConfig struct {
	Hour     int           `envconfig:"RENTALBOT_REMINDER_HOUR" default:"9"`
	Interval time.Duration `envconfig:"RENTALBOT_REMINDER_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"RENTALBOT_REMINDER_LOCK_TTL" default:"23h"`
}

type SessionConfig struct {
	// Backend selects where verified-user sessions live. The memory backend
	// forgets everyone whenever the process restarts; redis survives restarts.
	Backend string        `envconfig:"RENTALBOT_SESSION_BACKEND" default:"memory"`
	TTL     time.Duration `envconfig:"RENTALBOT_SESSION_TTL" default:"720h"`
}
