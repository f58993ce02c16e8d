package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Discord   DiscordConfig   `yaml:"discord"`
	Channels  []ChannelConfig `yaml:"channels"`
	Automute  AutomuteConfig  `yaml:"automute"`
	Matches   MatchesConfig   `yaml:"matches"`
	Database  DatabaseConfig  `yaml:"database"`
	Narrative NarrativeConfig `yaml:"narrative"`
	Ranks     RanksConfig     `yaml:"ranks"`
	NATS      NATSConfig      `yaml:"nats"`
	Auth      AuthConfig      `yaml:"auth"`
}

// ServerConfig holds listener settings
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	EventPort  int    `yaml:"event_port"`
	HTTPPort   int    `yaml:"http_port"`
	MaxEvent   int64  `yaml:"max_event_bytes"`
	// Deadline for reading one event from an accepted connection
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// DiscordConfig holds bot settings. The token is usually supplied via
// DISCORD_BOT_TOKEN rather than the file.
type DiscordConfig struct {
	Token            string `yaml:"token"`
	GuildID          string `yaml:"guild_id"`
	MatchLogsChannel string `yaml:"match_logs_channel"`
}

// ChannelConfig pairs a voice channel with the text channel used for its
// announcements. Declaration order is the resolver's tie-break order.
type ChannelConfig struct {
	Name    string `yaml:"name"`
	VoiceID string `yaml:"voice_id"`
	TextID  string `yaml:"text_id"`
}

// AutomuteConfig holds reconciliation settings
type AutomuteConfig struct {
	Enabled            *bool         `yaml:"enabled"`
	Ratio              int           `yaml:"ratio"`
	MeetingEndDelay    time.Duration `yaml:"meeting_end_delay"`
	NotifyUnmatched    bool          `yaml:"notify_unmatched"`
	MaxConcurrentEdits int           `yaml:"max_concurrent_edits"`
}

// IsEnabled reports the configured initial automute state (default on)
func (a AutomuteConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// MatchesConfig locates the match record files written by the game server
type MatchesConfig struct {
	Dir          string        `yaml:"dir"`
	PollAttempts int           `yaml:"poll_attempts"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// NarrativeConfig holds rendering settings for match narratives
type NarrativeConfig struct {
	MaxBlockLength int            `yaml:"max_block_length"`
	MaxTasks       int            `yaml:"max_tasks"`
	Glyphs         map[int]string `yaml:"glyphs"` // color+offset -> glyph
	Kill           string         `yaml:"kill"`
	Report         string         `yaml:"report"`
	Emergency      string         `yaml:"emergency"`
	Done           string         `yaml:"done"`
}

// RanksConfig holds tier role settings
type RanksConfig struct {
	RolePrefix string       `yaml:"role_prefix"`
	Tiers      []TierConfig `yaml:"tiers"`
}

// TierConfig is one rating tier. Max is the inclusive upper bound; the
// last tier's Max is ignored.
type TierConfig struct {
	Name string  `yaml:"name"`
	Max  float64 `yaml:"max"`
}

// NATSConfig enables the optional NATS ingress when URL is set
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// AuthConfig holds admin API settings
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenDuration time.Duration `yaml:"token_duration"`
	AdminUsername string        `yaml:"admin_username"`
	AdminPassword string        `yaml:"admin_password_hash"` // bcrypt hash
}

// DefaultTiers mirrors the ranked server's role ladder
var DefaultTiers = []TierConfig{
	{Name: "Iron", Max: 850},
	{Name: "Bronze", Max: 950},
	{Name: "Silver", Max: 1050},
	{Name: "Gold", Max: 1150},
	{Name: "Platinum", Max: 1250},
	{Name: "Diamond", Max: 1350},
	{Name: "Master", Max: 1450},
	{Name: "Warrior"},
}

// Load reads configuration from a YAML file. Secrets from the environment
// (or a .env file next to the process) override the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	_ = godotenv.Load()
	if token := os.Getenv("DISCORD_BOT_TOKEN"); token != "" {
		cfg.Discord.Token = token
	}
	if secret := os.Getenv("CREWVOICE_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "127.0.0.1"
	}
	if cfg.Server.EventPort == 0 {
		cfg.Server.EventPort = 5000
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.MaxEvent == 0 {
		cfg.Server.MaxEvent = 64 << 10
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}

	if cfg.Automute.Ratio == 0 {
		cfg.Automute.Ratio = 80
	}
	if cfg.Automute.MeetingEndDelay == 0 {
		cfg.Automute.MeetingEndDelay = 6 * time.Second
	}
	if cfg.Automute.MaxConcurrentEdits == 0 {
		cfg.Automute.MaxConcurrentEdits = 8
	}

	if cfg.Matches.Dir == "" {
		cfg.Matches.Dir = "matches"
	}
	if cfg.Matches.PollAttempts == 0 {
		cfg.Matches.PollAttempts = 10
	}
	if cfg.Matches.PollInterval == 0 {
		cfg.Matches.PollInterval = time.Second
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/crewvoice/crewvoice.db"
	}

	if cfg.Narrative.MaxBlockLength == 0 {
		cfg.Narrative.MaxBlockLength = 1024
	}
	if cfg.Narrative.MaxTasks == 0 {
		cfg.Narrative.MaxTasks = 10
	}

	if cfg.Ranks.RolePrefix == "" {
		cfg.Ranks.RolePrefix = "Ranked | "
	}
	if len(cfg.Ranks.Tiers) == 0 {
		cfg.Ranks.Tiers = DefaultTiers
	}

	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = "crewvoice.events"
	}

	if cfg.Auth.TokenDuration == 0 {
		cfg.Auth.TokenDuration = 24 * time.Hour
	}
	if cfg.Auth.AdminUsername == "" {
		cfg.Auth.AdminUsername = "admin"
	}
}

func (cfg *Config) validate() error {
	seen := make(map[string]bool, len(cfg.Channels))
	for i, ch := range cfg.Channels {
		if ch.Name == "" {
			return fmt.Errorf("channels[%d]: name is required", i)
		}
		if ch.VoiceID == "" {
			return fmt.Errorf("channel %q: voice_id is required", ch.Name)
		}
		if seen[ch.Name] {
			return fmt.Errorf("channel %q declared twice", ch.Name)
		}
		seen[ch.Name] = true
	}
	if cfg.Automute.Ratio < 0 || cfg.Automute.Ratio > 100 {
		return errors.New("automute.ratio must be between 0 and 100")
	}
	return nil
}
