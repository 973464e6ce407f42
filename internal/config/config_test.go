package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// isolate points os.UserConfigDir at a fresh directory for the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	for _, key := range []string{"SPARKVIBE_API_URL", "SPARKVIBE_TIMEOUT", "SPARKVIBE_DATA_DIR", "SPARKVIBE_SERVER__DSN"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return dir
}

func TestConfig_Path(t *testing.T) {
	dir := isolate(t)

	path, err := Path()
	if err != nil {
		t.Fatalf("Path() returned error: %v", err)
	}
	if filepath.Base(path) != fileName {
		t.Errorf("expected filename %s, got %s", fileName, filepath.Base(path))
	}
	if filepath.Dir(path) != filepath.Join(dir, dirName) {
		t.Errorf("expected path dir %s, got %s", filepath.Join(dir, dirName), filepath.Dir(path))
	}
}

func TestConfig_Load(t *testing.T) {
	t.Run("returns defaults when nothing is configured", func(t *testing.T) {
		isolate(t)

		cfg, err := Load(nil)
		if err != nil {
			t.Fatalf("Load() returned error: %v", err)
		}
		if cfg.APIURL != DefaultURL {
			t.Errorf("expected APIURL %s, got %s", DefaultURL, cfg.APIURL)
		}
		if cfg.Timeout != 5*time.Second {
			t.Errorf("expected 5s timeout, got %v", cfg.Timeout)
		}
	})

	t.Run("reads the YAML file", func(t *testing.T) {
		isolate(t)
		path, _ := Path()
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			t.Fatalf("failed to create config dir: %v", err)
		}
		data := "api_url: https://cards.example.com\ntimeout: 2s\nserver:\n  dsn: file:test.db\n"
		if err := os.WriteFile(path, []byte(data), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cfg, err := Load(nil)
		if err != nil {
			t.Fatalf("Load() returned error: %v", err)
		}
		if cfg.APIURL != "https://cards.example.com" {
			t.Errorf("expected file APIURL, got %s", cfg.APIURL)
		}
		if cfg.Timeout != 2*time.Second {
			t.Errorf("expected 2s timeout, got %v", cfg.Timeout)
		}
		if cfg.Server.DSN != "file:test.db" {
			t.Errorf("expected nested dsn, got %q", cfg.Server.DSN)
		}
		if cfg.ProbeInterval != 10*time.Second {
			t.Errorf("expected default probe interval to survive, got %v", cfg.ProbeInterval)
		}
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		isolate(t)
		if err := Save(&Config{APIURL: "https://file.example.com", Timeout: time.Second}); err != nil {
			t.Fatalf("Save() returned error: %v", err)
		}
		t.Setenv("SPARKVIBE_API_URL", "https://env.example.com")

		cfg, err := Load(nil)
		if err != nil {
			t.Fatalf("Load() returned error: %v", err)
		}
		if cfg.APIURL != "https://env.example.com" {
			t.Errorf("expected env APIURL, got %s", cfg.APIURL)
		}
	})

	t.Run("explicit flags override the environment", func(t *testing.T) {
		isolate(t)
		t.Setenv("SPARKVIBE_API_URL", "https://env.example.com")

		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("api-url", "", "")
		flags.String("data-dir", "", "")
		if err := flags.Parse([]string{"--api-url", "https://flag.example.com"}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := Load(flags)
		if err != nil {
			t.Fatalf("Load() returned error: %v", err)
		}
		if cfg.APIURL != "https://flag.example.com" {
			t.Errorf("expected flag APIURL, got %s", cfg.APIURL)
		}
		if cfg.DataDir == "" {
			t.Error("an unset flag must not blank the default data dir")
		}
	})

	t.Run("empty api_url falls back to default", func(t *testing.T) {
		isolate(t)
		path, _ := Path()
		_ = os.MkdirAll(filepath.Dir(path), 0700)
		if err := os.WriteFile(path, []byte("api_url: \"\"\n"), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cfg, err := Load(nil)
		if err != nil {
			t.Fatalf("Load() returned error: %v", err)
		}
		if cfg.APIURL != DefaultURL {
			t.Errorf("expected APIURL to default to %s, got %s", DefaultURL, cfg.APIURL)
		}
	})
}

func TestConfig_Save(t *testing.T) {
	t.Run("creates directory and writes restrictive permissions", func(t *testing.T) {
		isolate(t)

		if err := Save(Default()); err != nil {
			t.Fatalf("Save() returned error: %v", err)
		}
		path, _ := Path()
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("failed to stat config file: %v", err)
		}
		if info.Mode().Perm() != os.FileMode(filePerms) {
			t.Errorf("expected file permissions %o, got %o", filePerms, info.Mode().Perm())
		}
	})

	t.Run("round trips through Load", func(t *testing.T) {
		isolate(t)
		want := &Config{
			APIURL:        "https://api.example.com",
			Timeout:       3 * time.Second,
			ProbeInterval: time.Minute,
			DataDir:       "/tmp/sparkvibe",
			Server:        ServerConfig{Addr: ":4000", DSN: "postgres://localhost/cards"},
		}
		if err := Save(want); err != nil {
			t.Fatalf("Save() returned error: %v", err)
		}

		got, err := Load(nil)
		if err != nil {
			t.Fatalf("Load() returned error: %v", err)
		}
		if *got != *want {
			t.Errorf("expected %+v, got %+v", want, got)
		}
	})
}

func TestConfig_Clear(t *testing.T) {
	isolate(t)

	if err := Save(Default()); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}
	if err := Clear(); err != nil {
		t.Fatalf("Clear() returned error: %v", err)
	}
	path, _ := Path()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected config file to be deleted")
	}
	if err := Clear(); err != nil {
		t.Errorf("expected Clear() to return nil for missing file, got %v", err)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"SPARKVIBE_API_URL":     "api_url",
		"SPARKVIBE_SERVER__DSN": "server.dsn",
		"SPARKVIBE_TIMEOUT":     "timeout",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadDurations(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		yaml    string
		timeout time.Duration
	}{
		{"env milliseconds", "5000", "", 5 * time.Second},
		{"env with unit", "750ms", "", 750 * time.Millisecond},
		{"yaml milliseconds", "", "timeout: 2500\n", 2500 * time.Millisecond},
		{"yaml with unit", "", "timeout: 3s\n", 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			if tt.yaml != "" {
				path, _ := Path()
				if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
					t.Fatalf("failed to create config dir: %v", err)
				}
				if err := os.WriteFile(path, []byte(tt.yaml), 0600); err != nil {
					t.Fatalf("failed to write config: %v", err)
				}
			}
			if tt.env != "" {
				t.Setenv("SPARKVIBE_TIMEOUT", tt.env)
			}

			cfg, err := Load(nil)
			if err != nil {
				t.Fatalf("Load() returned error: %v", err)
			}
			if cfg.Timeout != tt.timeout {
				t.Errorf("expected timeout %v, got %v", tt.timeout, cfg.Timeout)
			}
		})
	}

	t.Run("flag durations are not rescaled", func(t *testing.T) {
		isolate(t)
		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.Duration("timeout", 0, "")
		if err := flags.Parse([]string{"--timeout", "2s"}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		cfg, err := Load(flags)
		if err != nil {
			t.Fatalf("Load() returned error: %v", err)
		}
		if cfg.Timeout != 2*time.Second {
			t.Errorf("expected 2s, got %v", cfg.Timeout)
		}
	})
}
