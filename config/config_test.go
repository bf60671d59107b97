package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"token": "tok",
		"guild_id": "g1",
		"staff_role_id": "r1",
		"transcripts_channel_id": "tc1",
		"categories": {"support": "c1", "partnership": "c2", "transfer": "c3"},
		"settings": {"rate_limit_seconds": 30, "max_tickets_per_user": 2, "data_file": "state.json"},
		"database": {"driver": "mongodb", "mongodb": {"uri": "mongodb://localhost", "database": "tickets"}},
		"events": {"enabled": true, "url": "amqp://localhost", "exchange": "ev"}
	}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Token != "tok" || cfg.GuildID != "g1" || cfg.StaffRoleID != "r1" {
		t.Fatalf("identity fields: %+v", cfg)
	}
	if cfg.Categories.Support != "c1" || cfg.Categories.Partnership != "c2" || cfg.Categories.Transfer != "c3" {
		t.Fatalf("categories: %+v", cfg.Categories)
	}
	if cfg.Settings.RateLimitSeconds != 30 || cfg.Settings.MaxTicketsPerUser != 2 || cfg.Settings.DataFile != "state.json" {
		t.Fatalf("settings: %+v", cfg.Settings)
	}
	if cfg.Database.Driver != "mongodb" || cfg.Database.MongoDB.URI != "mongodb://localhost" {
		t.Fatalf("database: %+v", cfg.Database)
	}
	if !cfg.Events.Enabled || cfg.Events.Exchange != "ev" {
		t.Fatalf("events: %+v", cfg.Events)
	}
	// Defaults still fill untouched fields.
	if cfg.LangFile != "lang.yml" {
		t.Fatalf("lang_file default: %q", cfg.LangFile)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"token": "tok"}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Settings.RateLimitSeconds != 10 {
		t.Fatalf("rate limit default: %d", cfg.Settings.RateLimitSeconds)
	}
	if cfg.Settings.MaxTicketsPerUser != 1 {
		t.Fatalf("max tickets default: %d", cfg.Settings.MaxTicketsPerUser)
	}
	if cfg.Settings.DataFile != "data/tickets.json" {
		t.Fatalf("data file default: %q", cfg.Settings.DataFile)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.SQLite.Path != "data/audit.db" {
		t.Fatalf("database defaults: %+v", cfg.Database)
	}
	if cfg.Events.Exchange != "tickets" {
		t.Fatalf("exchange default: %q", cfg.Events.Exchange)
	}
}

func TestLoadConfig_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{nope"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestLoadConfig_EnvFallback(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "env-tok")
	t.Setenv("GUILD_ID", "env-guild")
	t.Setenv("STAFF_ROLE_ID", "env-staff")
	t.Setenv("SUPPORT_CATEGORY_ID", "env-support")
	t.Setenv("RATE_LIMIT_SECONDS", "45")
	t.Setenv("MAX_TICKETS_PER_USER", "3")
	t.Setenv("EVENTS_ENABLED", "true")
	t.Setenv("EVENTS_AMQP_URL", "amqp://envhost")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("env fallback: %v", err)
	}
	if cfg.Token != "env-tok" || cfg.GuildID != "env-guild" || cfg.StaffRoleID != "env-staff" {
		t.Fatalf("identity fields: %+v", cfg)
	}
	if cfg.Categories.Support != "env-support" {
		t.Fatalf("categories: %+v", cfg.Categories)
	}
	if cfg.Settings.RateLimitSeconds != 45 || cfg.Settings.MaxTicketsPerUser != 3 {
		t.Fatalf("settings: %+v", cfg.Settings)
	}
	if !cfg.Events.Enabled || cfg.Events.URL != "amqp://envhost" {
		t.Fatalf("events: %+v", cfg.Events)
	}
}

func TestLoadConfig_EnvInvalidNumbersUseDefaults(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "env-tok")
	t.Setenv("RATE_LIMIT_SECONDS", "not-a-number")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("env fallback: %v", err)
	}
	if cfg.Settings.RateLimitSeconds != 10 {
		t.Fatalf("bad env int should fall back to default, got %d", cfg.Settings.RateLimitSeconds)
	}
}
