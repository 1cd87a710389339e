// Package config loads the service configuration from a YAML file, MASCOTCHAT_*
// environment variables and built-in defaults.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Chat      ChatConfig      `mapstructure:"chat"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig selects log level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig locates the SQLite file and sets log retention.
// RetentionDays of 0 keeps conversation logs forever.
type DatabaseConfig struct {
	Path          string `mapstructure:"path" validate:"required"`
	RetentionDays int    `mapstructure:"retention_days" validate:"min=0"`
}

// GeminiConfig configures the completion service. An empty APIKey leaves
// the chat service in not-configured mode. BaseURL overrides the API
// endpoint, for a proxy.
type GeminiConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url" validate:"omitempty,url"`
	ModelName       string        `mapstructure:"model_name" validate:"required"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"min=1s,max=5m"`
	Temperature     float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	TopP            float32       `mapstructure:"top_p" validate:"min=0,max=1"`
	MaxOutputTokens int32         `mapstructure:"max_output_tokens" validate:"min=1"`
}

// ChatConfig holds per-turn limits.
type ChatConfig struct {
	MaxMessageLength int `mapstructure:"max_message_length" validate:"min=1"`
	FreeDailyLimit   int `mapstructure:"free_daily_limit" validate:"min=1"`
	HistoryLimit     int `mapstructure:"history_limit" validate:"min=0,max=100"`
}

// HTTPConfig configures the API server. An empty AdminToken disables the
// admin routes.
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"min=1s"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=1s"`
	AdminToken   string        `mapstructure:"admin_token"`
}

// RedisConfig enables the quota cache when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"min=0"`
	QuotaTTL time.Duration `mapstructure:"quota_ttl" validate:"min=1s"`
}

// TelegramConfig enables the moderation bot when Token is set.
type TelegramConfig struct {
	Token       string `mapstructure:"token"`
	AdminUserID int64  `mapstructure:"admin_user_id" validate:"required_with=Token"`
	AlertChatID int64  `mapstructure:"alert_chat_id"`
}

// SchedulerConfig maps task names to their schedule.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables a scheduled task with a cron expression.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// MessagesConfig holds moderation bot replies.
type MessagesConfig struct {
	NotAuthorized string `mapstructure:"not_authorized" validate:"required"`
	GeneralError  string `mapstructure:"general_error" validate:"required"`
	NoFlagged     string `mapstructure:"no_flagged" validate:"required"`
	FlagUsage     string `mapstructure:"flag_usage" validate:"required"`
	UnflagUsage   string `mapstructure:"unflag_usage" validate:"required"`
	TurnNotFound  string `mapstructure:"turn_not_found" validate:"required"`
	FlagUpdated   string `mapstructure:"flag_updated" validate:"required"`
}
