package config_test

import (
	"strings"
	"testing"

	"github.com/voxscribe/voxscribe/internal/config"
)

const validYAML = `
server:
  metrics_addr: ":9090"
  log_level: info
discord:
  token: "bot-token"
  guild_id: "123"
  voice_channel_id: "456"
  webhook_id: "789"
  webhook_token: "hook-token"
  admin_role_id: "555"
stt:
  model_path: /models/ggml-base.en.bin
  language: en
pool:
  workers: 4
database:
  dsn: "postgres://localhost/voxscribe"
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Discord.GuildID != "123" {
		t.Errorf("guild_id: got %q, want %q", cfg.Discord.GuildID, "123")
	}
	if cfg.Discord.AdminRoleID != "555" {
		t.Errorf("admin_role_id: got %q, want %q", cfg.Discord.AdminRoleID, "555")
	}
	if cfg.STT.ModelPath != "/models/ggml-base.en.bin" {
		t.Errorf("model_path: got %q", cfg.STT.ModelPath)
	}
	if cfg.Pool.Workers != 4 {
		t.Errorf("workers: got %d, want 4", cfg.Pool.Workers)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := validYAML + `
bogus_section:
  value: 1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: info
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing required fields, got nil")
	}
	for _, want := range []string{"discord.token", "discord.guild_id", "discord.voice_channel_id", "stt.model_path"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := strings.Replace(validYAML, "log_level: info", "log_level: bananas", 1)
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_WebhookFieldsMustPair(t *testing.T) {
	t.Parallel()
	yaml := strings.Replace(validYAML, `webhook_token: "hook-token"`, `webhook_token: ""`, 1)
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for webhook id without token, got nil")
	}
	if !strings.Contains(err.Error(), "webhook") {
		t.Errorf("error should mention webhook, got: %v", err)
	}
}

func TestValidate_NegativeWorkers(t *testing.T) {
	t.Parallel()
	yaml := strings.Replace(validYAML, "workers: 4", "workers: -1", 1)
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative workers, got nil")
	}
	if !strings.Contains(err.Error(), "pool.workers") {
		t.Errorf("error should mention pool.workers, got: %v", err)
	}
}
