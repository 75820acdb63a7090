// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Health       HealthConfig       `mapstructure:"health"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// TelegramConfig holds the bot credential and the two chat identities the
// bot operates against: the admin review group and the paid channel.
type TelegramConfig struct {
	Token        string `mapstructure:"token"`
	AdminGroupID int64  `mapstructure:"admin_group_id"`
	ChannelID    int64  `mapstructure:"channel_id"`
	PollTimeout  int    `mapstructure:"poll_timeout"` // seconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	URL            string `mapstructure:"url"` // full DSN, overrides the individual fields
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SubscriptionConfig holds the lifecycle policy knobs.
type SubscriptionConfig struct {
	MembershipDays    int    `mapstructure:"membership_days"`
	FirstReminderDays int    `mapstructure:"first_reminder_days"`
	FinalReminderDays int    `mapstructure:"final_reminder_days"`
	SweepSchedule     string `mapstructure:"sweep_schedule"`     // cron expression
	SweepTimeout      int    `mapstructure:"sweep_timeout"`      // milliseconds
	RejectMode        string `mapstructure:"reject_mode"`        // keep-pending | rejected
	CacheTTL          int    `mapstructure:"cache_ttl"`          // milliseconds
	CallbackGuardTTL  int    `mapstructure:"callback_guard_ttl"` // milliseconds
}

// HealthConfig holds settings for the liveness/metrics HTTP endpoint.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
