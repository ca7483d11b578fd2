package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lowtide/hexplore/internal/config"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "service.ini")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp ini: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Service.BindIP != "0.0.0.0" {
		t.Errorf("Service.BindIP = %q, want %q", cfg.Service.BindIP, "0.0.0.0")
	}
	if cfg.Service.BindPort != 7000 {
		t.Errorf("Service.BindPort = %d, want 7000", cfg.Service.BindPort)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}

	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromINI(t *testing.T) {
	t.Parallel()

	iniContent := `
; service.ini
bind_ip = 10.0.0.5
bind_port = 7777
channel_port = 7778
bind_web_port = 8081
explore_channel_ip = 10.0.0.5
explore_channel_port = 7778
explore_server_ip = 10.0.0.9
explore_server_port = 7779
player_db = /var/lib/hexplore/player.db
server_id = 3
config_dir = /etc/hexplore
log_trace = true
`
	path := writeTemp(t, iniContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Service.BindIP != "10.0.0.5" {
		t.Errorf("BindIP = %q, want 10.0.0.5", cfg.Service.BindIP)
	}
	if cfg.Service.BindPort != 7777 {
		t.Errorf("BindPort = %d, want 7777", cfg.Service.BindPort)
	}
	if cfg.Service.ChannelPort != 7778 {
		t.Errorf("ChannelPort = %d, want 7778", cfg.Service.ChannelPort)
	}
	if cfg.Service.ServerID != 3 {
		t.Errorf("ServerID = %d, want 3", cfg.Service.ServerID)
	}
	if cfg.Service.PlayerDB != "/var/lib/hexplore/player.db" {
		t.Errorf("PlayerDB = %q, want /var/lib/hexplore/player.db", cfg.Service.PlayerDB)
	}
	if !cfg.Service.LogTrace {
		t.Error("LogTrace = false, want true")
	}

	// Keys absent from the file must still inherit their defaults.
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want default %q", cfg.Log.Level, "info")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.ini")); err == nil {
		t.Fatal("Load on a missing file: want error, got nil")
	}
}

func TestValidateRejectsEmptyBindIP(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Service.BindIP = ""
	if err := config.Validate(cfg); err != config.ErrEmptyBindIP {
		t.Fatalf("Validate() = %v, want ErrEmptyBindIP", err)
	}
}

func TestValidateRejectsZeroServerID(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Service.ServerID = 0
	if err := config.Validate(cfg); err != config.ErrInvalidServerID {
		t.Fatalf("Validate() = %v, want ErrInvalidServerID", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		level string
		trace bool
		want  string
	}{
		{"debug", false, "DEBUG"},
		{"warn", false, "WARN"},
		{"nonsense", false, "INFO"},
		{"error", true, "DEBUG"}, // trace always wins
	}
	for _, c := range cases {
		got := config.ParseLogLevel(c.level, c.trace)
		if got.String() != c.want {
			t.Errorf("ParseLogLevel(%q, %v) = %v, want %v", c.level, c.trace, got, c.want)
		}
	}
}
