package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything the bot reads at startup. It comes from a JSON
// file when one exists, otherwise from environment variables (a .env
// file is honoured).
type Config struct {
	Token                  string           `json:"token"`
	GuildID                string           `json:"guild_id"`
	StaffRoleID            string           `json:"staff_role_id"`
	UnlimitedTicketsRoleID string           `json:"unlimited_tickets_role_id"`
	TicketChannelID        string           `json:"ticket_channel_id"`
	TranscriptsChannelID   string           `json:"transcripts_channel_id"`
	Categories             CategoriesConfig `json:"categories"`
	Settings               SettingsConfig   `json:"settings"`
	Database               DatabaseConfig   `json:"database"`
	Events                 EventsConfig     `json:"events"`
	LangFile               string           `json:"lang_file"`
}

// CategoriesConfig maps ticket types to Discord category channel IDs.
type CategoriesConfig struct {
	Support     string `json:"support"`
	Partnership string `json:"partnership"`
	Transfer    string `json:"transfer"`
}

type SettingsConfig struct {
	RateLimitSeconds  int    `json:"rate_limit_seconds"`
	MaxTicketsPerUser int    `json:"max_tickets_per_user"`
	DataFile          string `json:"data_file"`
}

// DatabaseConfig selects the audit-event backend.
type DatabaseConfig struct {
	Driver  string        `json:"driver"`
	SQLite  SQLiteConfig  `json:"sqlite"`
	MongoDB MongoDBConfig `json:"mongodb"`
}

type SQLiteConfig struct {
	Path string `json:"path"`
}

type MongoDBConfig struct {
	URI      string `json:"uri"`
	Database string `json:"database"`
}

// EventsConfig configures the optional RabbitMQ lifecycle-event
// publisher.
type EventsConfig struct {
	Enabled  bool   `json:"enabled"`
	URL      string `json:"url"`
	Exchange string `json:"exchange"`
}

// LoadConfig reads the config file at path, or falls back to environment
// variables when the file does not exist.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fromEnv()
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func fromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Token:                  os.Getenv("DISCORD_BOT_TOKEN"),
		GuildID:                os.Getenv("GUILD_ID"),
		StaffRoleID:            os.Getenv("STAFF_ROLE_ID"),
		UnlimitedTicketsRoleID: os.Getenv("UNLIMITED_TICKETS_ROLE_ID"),
		TicketChannelID:        os.Getenv("TICKET_CHANNEL_ID"),
		TranscriptsChannelID:   os.Getenv("TRANSCRIPTS_CHANNEL_ID"),
		Categories: CategoriesConfig{
			Support:     os.Getenv("SUPPORT_CATEGORY_ID"),
			Partnership: os.Getenv("PARTNERSHIP_CATEGORY_ID"),
			Transfer:    os.Getenv("TRANSFER_CATEGORY_ID"),
		},
		Settings: SettingsConfig{
			RateLimitSeconds:  getEnvAsInt("RATE_LIMIT_SECONDS", 0),
			MaxTicketsPerUser: getEnvAsInt("MAX_TICKETS_PER_USER", 0),
			DataFile:          os.Getenv("DATA_FILE"),
		},
		Database: DatabaseConfig{
			Driver: os.Getenv("AUDIT_DB_DRIVER"),
			SQLite: SQLiteConfig{Path: os.Getenv("AUDIT_SQLITE_PATH")},
			MongoDB: MongoDBConfig{
				URI:      os.Getenv("AUDIT_MONGODB_URI"),
				Database: os.Getenv("AUDIT_MONGODB_DATABASE"),
			},
		},
		Events: EventsConfig{
			Enabled:  getEnvAsBool("EVENTS_ENABLED", false),
			URL:      os.Getenv("EVENTS_AMQP_URL"),
			Exchange: os.Getenv("EVENTS_EXCHANGE"),
		},
		LangFile: os.Getenv("LANG_FILE"),
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Settings.RateLimitSeconds <= 0 {
		cfg.Settings.RateLimitSeconds = 10
	}
	if cfg.Settings.MaxTicketsPerUser <= 0 {
		cfg.Settings.MaxTicketsPerUser = 1
	}
	if cfg.Settings.DataFile == "" {
		cfg.Settings.DataFile = "data/tickets.json"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = "data/audit.db"
	}
	if cfg.Events.Exchange == "" {
		cfg.Events.Exchange = "tickets"
	}
	if cfg.LangFile == "" {
		cfg.LangFile = "lang.yml"
	}
}

func getEnvAsInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvAsBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
