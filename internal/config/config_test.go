package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "")
	t.Setenv("CREWVOICE_JWT_SECRET", "")
	path := writeConfig(t, `
channels:
  - name: Ranked 1
    voice_id: "100"
    text_id: "101"
  - name: Ranked 2
    voice_id: "200"
    text_id: "201"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.EventPort != 5000 {
		t.Errorf("EventPort = %d, want 5000", cfg.Server.EventPort)
	}
	if cfg.Automute.Ratio != 80 {
		t.Errorf("Ratio = %d, want 80", cfg.Automute.Ratio)
	}
	if cfg.Automute.MeetingEndDelay != 6*time.Second {
		t.Errorf("MeetingEndDelay = %v, want 6s", cfg.Automute.MeetingEndDelay)
	}
	if !cfg.Automute.IsEnabled() {
		t.Error("automute should default to enabled")
	}
	if cfg.Matches.PollAttempts != 10 || cfg.Matches.PollInterval != time.Second {
		t.Errorf("poll = %d/%v, want 10/1s", cfg.Matches.PollAttempts, cfg.Matches.PollInterval)
	}
	if cfg.Narrative.MaxBlockLength != 1024 {
		t.Errorf("MaxBlockLength = %d, want 1024", cfg.Narrative.MaxBlockLength)
	}
	if len(cfg.Ranks.Tiers) != 8 || cfg.Ranks.RolePrefix != "Ranked | " {
		t.Errorf("ranks defaults not applied: %+v", cfg.Ranks)
	}
	if len(cfg.Channels) != 2 || cfg.Channels[0].Name != "Ranked 1" {
		t.Errorf("channel order not preserved: %+v", cfg.Channels)
	}
}

func TestLoadEnvOverridesSecrets(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "from-env")
	t.Setenv("CREWVOICE_JWT_SECRET", "env-secret")
	path := writeConfig(t, `
discord:
  token: from-file
auth:
  jwt_secret: file-secret
automute:
  enabled: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Discord.Token != "from-env" {
		t.Errorf("Token = %q, want from-env", cfg.Discord.Token)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("JWTSecret = %q, want env-secret", cfg.Auth.JWTSecret)
	}
	if cfg.Automute.IsEnabled() {
		t.Error("automute.enabled: false was ignored")
	}
}

func TestLoadRejectsBadChannels(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing name", "channels:\n  - voice_id: \"1\"\n", "name is required"},
		{"missing voice", "channels:\n  - name: a\n", "voice_id is required"},
		{"duplicate", "channels:\n  - {name: a, voice_id: \"1\"}\n  - {name: a, voice_id: \"2\"}\n", "declared twice"},
		{"ratio", "automute:\n  ratio: 150\n", "ratio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}
