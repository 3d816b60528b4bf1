// Package config provides the configuration schema, loader, and file watcher
// for the voxscribe transcription service.
package config

import "log/slog"

// LogLevel controls log verbosity for the voxscribe process.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l onto the corresponding slog level. Unset or unknown levels
// map to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure for voxscribe.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Discord  DiscordConfig  `yaml:"discord"`
	STT      STTConfig      `yaml:"stt"`
	Pool     PoolConfig     `yaml:"pool"`
	Database DatabaseConfig `yaml:"database"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	// MetricsAddr is the TCP address the Prometheus metrics endpoint listens
	// on (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// DiscordConfig holds the gateway and delivery credentials.
type DiscordConfig struct {
	// Token is the bot token used to authenticate with the gateway.
	Token string `yaml:"token"`

	// GuildID is the guild whose voice channel is captured.
	GuildID string `yaml:"guild_id"`

	// VoiceChannelID is the voice channel to join on startup.
	VoiceChannelID string `yaml:"voice_channel_id"`

	// WebhookID and WebhookToken identify the webhook transcripts are
	// delivered through, impersonating the speaker.
	WebhookID    string `yaml:"webhook_id"`
	WebhookToken string `yaml:"webhook_token"`

	// AdminRoleID restricts the policy-changing slash commands (verbose,
	// tier) to members holding this role. Empty allows everyone.
	AdminRoleID string `yaml:"admin_role_id"`
}

// STTConfig selects the transcription model.
type STTConfig struct {
	// ModelPath is the filesystem path to the whisper model file.
	ModelPath string `yaml:"model_path"`

	// Language is the transcription language code (e.g., "en").
	// Defaults to "en".
	Language string `yaml:"language"`
}

// PoolConfig sizes the inference worker pool.
type PoolConfig struct {
	// Workers is the number of concurrent inference workers. Zero selects
	// the default of half the host's logical CPUs.
	Workers int `yaml:"workers"`
}

// DatabaseConfig holds the PostgreSQL connection settings used for guild
// settings and voice ingest archival.
type DatabaseConfig struct {
	// DSN is the PostgreSQL connection string. Empty disables persistence:
	// guild settings fall back to defaults and ingest is off.
	DSN string `yaml:"dsn"`
}
