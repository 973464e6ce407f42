package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	dirName    = "sparkvibe"
	fileName   = "config.yaml"
	dirPerms   = 0700
	filePerms  = 0600
	envPrefix  = "SPARKVIBE_"
	DefaultURL = "http://localhost:3001"
)

// Config holds the layered client and dev-server configuration.
type Config struct {
	APIURL        string        `koanf:"api_url" json:"apiUrl"`
	Timeout       time.Duration `koanf:"timeout" json:"timeout"`
	ProbeInterval time.Duration `koanf:"probe_interval" json:"probeInterval"`
	DataDir       string        `koanf:"data_dir" json:"dataDir"`
	Server        ServerConfig  `koanf:"server" json:"server"`
}

type ServerConfig struct {
	Addr string `koanf:"addr" json:"addr"`
	DSN  string `koanf:"dsn" json:"dsn"`
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"api-url":        "api_url",
	"timeout":        "timeout",
	"probe-interval": "probe_interval",
	"data-dir":       "data_dir",
	"addr":           "server.addr",
	"dsn":            "server.dsn",
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	dataDir := "."
	if dir, err := os.UserConfigDir(); err == nil {
		dataDir = filepath.Join(dir, dirName)
	}
	return &Config{
		APIURL:        DefaultURL,
		Timeout:       5 * time.Second,
		ProbeInterval: 10 * time.Second,
		DataDir:       dataDir,
		Server: ServerConfig{
			Addr: ":3001",
		},
	}
}

// Path returns the full path to the config file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, dirName, fileName), nil
}

// MirrorPath is where the local mirror database lives.
func (c *Config) MirrorPath() string {
	return filepath.Join(c.DataDir, "mirror.db")
}

// LoadDotEnv reads a .env file from the working directory if there is one.
func LoadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Load layers defaults, the YAML file, SPARKVIBE_* environment variables and
// explicitly set flags, in that order. A missing config file is not an error.
// flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if p, err := Path(); err == nil {
		if _, statErr := os.Stat(p); statErr == nil {
			if err := k.Load(file.Provider(p), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading %s: %w", p, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("reading flags: %w", err)
		}
	}

	cfg := Default()
	err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.DecodeHookFuncType(millisecondsHook),
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           cfg,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultURL
	}
	return cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// millisecondsHook decodes a bare number into a duration in milliseconds, so
// SPARKVIBE_TIMEOUT=5000 and "timeout: 5000" both mean five seconds. Values
// with a unit ("5s") are left to the standard duration parser.
func millisecondsHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != durationType || from == durationType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return data, nil
		}
		return time.Duration(n) * time.Millisecond, nil
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case uint64:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), nil
	}
	return data, nil
}

// envKey turns SPARKVIBE_API_URL into api_url and SPARKVIBE_SERVER__DSN into server.dsn.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// Save writes the config to disk, creating the directory if needed.
func Save(cfg *Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), dirPerms); err != nil {
		return err
	}
	data, err := yaml.Parser().Marshal(map[string]interface{}{
		"api_url":        cfg.APIURL,
		"timeout":        cfg.Timeout.String(),
		"probe_interval": cfg.ProbeInterval.String(),
		"data_dir":       cfg.DataDir,
		"server": map[string]interface{}{
			"addr": cfg.Server.Addr,
			"dsn":  cfg.Server.DSN,
		},
	})
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, filePerms)
}

// Clear removes the config file.
func Clear() error {
	p, err := Path()
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
