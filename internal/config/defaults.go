package config

import (
	"time"

	"github.com/spf13/viper"
)

// Defaults for values that have a fixed meaning in the chat pipeline.
const (
	DefaultModelName        = "gemini-2.0-flash"
	DefaultModelTimeout     = 30 * time.Second
	DefaultTemperature      = 0.7
	DefaultTopP             = 0.9
	DefaultMaxOutputTokens  = 2000
	DefaultMaxMessageLength = 500
	DefaultFreeDailyLimit   = 20
	DefaultHistoryLimit     = 10
	DefaultQuotaTTL         = 30 * time.Second
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", false)

	v.SetDefault("database.path", "mascotchat.db")
	v.SetDefault("database.retention_days", 0)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("gemini.model_name", DefaultModelName)
	v.SetDefault("gemini.timeout", DefaultModelTimeout)
	v.SetDefault("gemini.temperature", DefaultTemperature)
	v.SetDefault("gemini.top_p", DefaultTopP)
	v.SetDefault("gemini.max_output_tokens", DefaultMaxOutputTokens)

	v.SetDefault("chat.max_message_length", DefaultMaxMessageLength)
	v.SetDefault("chat.free_daily_limit", DefaultFreeDailyLimit)
	v.SetDefault("chat.history_limit", DefaultHistoryLimit)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 45*time.Second)
	v.SetDefault("http.admin_token", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.quota_ttl", DefaultQuotaTTL)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_user_id", 0)
	v.SetDefault("telegram.alert_chat_id", 0)

	v.SetDefault("scheduler.tasks", map[string]any{
		"sql_maintenance": map[string]any{"enabled": true, "schedule": "0 0 3 * * 0"},
		"log_retention":   map[string]any{"enabled": true, "schedule": "0 30 3 * * *"},
	})

	v.SetDefault("messages.not_authorized", "🚫 You are not authorized to use this command.")
	v.SetDefault("messages.general_error", "❌ An error occurred. Please try again later.")
	v.SetDefault("messages.no_flagged", "✅ No flagged conversations.")
	v.SetDefault("messages.flag_usage", "Usage: /flag <log_id> <reason>")
	v.SetDefault("messages.unflag_usage", "Usage: /unflag <log_id>")
	v.SetDefault("messages.turn_not_found", "Conversation log not found.")
	v.SetDefault("messages.flag_updated", "Flag updated.")
}
