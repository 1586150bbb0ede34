package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadInlinesCoreConfig(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
  username: "@catch_bot"
  admin_ids: [1, 2]
session:
  backend: memory
database:
  host: localhost
  port: "5432"
  name: catch
bot:
  timezone: Asia/Yekaterinburg
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	core := cfg.CoreConfig()
	if core.Telegram.Username != "catch_bot" || len(core.Telegram.AdminIDs) != 2 {
		t.Fatalf("telegram = %+v", core.Telegram)
	}
	if core.Session.Backend != "memory" {
		t.Fatalf("session backend = %q", core.Session.Backend)
	}
	if cfg.Database.Name != "catch" || cfg.Database.MigrationsDir != "migrations" {
		t.Fatalf("database = %+v", cfg.Database)
	}
	if cfg.Location().String() != "Asia/Yekaterinburg" {
		t.Fatalf("location = %s", cfg.Location())
	}
}

func TestLoadDefaultsTimezone(t *testing.T) {
	cfg, err := Load(writeConfig(t, "telegram:\n  token: t\n  username: bot\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Bot.Timezone != DefaultTimezone {
		t.Fatalf("timezone = %q", cfg.Bot.Timezone)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"no username":  "telegram:\n  token: t\n",
		"bad timezone": "telegram:\n  token: t\n  username: bot\nbot:\n  timezone: Mars/Base\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
