// Package config loads lens settings from defaults, lens.yaml, LENS_*
// environment variables and command-line flags, in rising precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Default values.
const (
	DefaultConfigFile = "lens.yaml"
	DefaultDataPath   = "data/customer_shopping_data.csv"
	DefaultVariant    = "retail"
	DefaultAddr       = ":8080"
	DefaultOutput     = "table"
	EnvPrefix         = "LENS_"
)

// Config is the full lens configuration.
type Config struct {
	Data      DataConfig      `koanf:"data"`
	Dashboard DashboardConfig `koanf:"dashboard"`
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Output    string          `koanf:"output" validate:"oneof=table json csv"`

	// File is the config file that was read, empty when none was found.
	File string `koanf:"-"`
}

// DataConfig selects the dataset and how it is prepared.
type DataConfig struct {
	Path    string `koanf:"path" validate:"required"`
	Variant string `koanf:"variant" validate:"oneof=retail general"`
}

// DashboardConfig holds report presentation settings.
type DashboardConfig struct {
	TopCustomers int    `koanf:"top_customers" validate:"gte=1,lte=1000"`
	PreviewRows  int    `koanf:"preview_rows" validate:"gte=1,lte=1000"`
	Currency     string `koanf:"currency" validate:"max=8"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	MaxUploadMB     int64         `koanf:"max_upload_mb" validate:"gte=1"`
	SessionKey      string        `koanf:"session_key" validate:"omitempty,min=32"`
	MaxSessions     int           `koanf:"max_sessions" validate:"gte=1"`
	SessionTTL      time.Duration `koanf:"session_ttl" validate:"gt=0"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	// SecureCookies sets the Secure attribute; enable only behind HTTPS.
	SecureCookies bool `koanf:"secure_cookies"`
	// LoadRate caps table loads per second across all clients; 0 disables it.
	LoadRate  float64 `koanf:"load_rate" validate:"gte=0"`
	LoadBurst int     `koanf:"load_burst" validate:"gte=1"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

func defaults() map[string]any {
	return map[string]any{
		"data.path":               DefaultDataPath,
		"data.variant":            DefaultVariant,
		"dashboard.top_customers": 10,
		"dashboard.preview_rows":  5,
		"dashboard.currency":      "",
		"server.addr":             DefaultAddr,
		"server.max_upload_mb":    32,
		"server.session_key":      "",
		"server.max_sessions":     64,
		"server.session_ttl":      "30m",
		"server.read_timeout":     "15s",
		"server.write_timeout":    "30s",
		"server.shutdown_timeout": "10s",
		"server.secure_cookies":   false,
		"server.load_rate":        2.0,
		"server.load_burst":       5,
		"log.level":               "info",
		"log.format":              "text",
		"output":                  DefaultOutput,
	}
}

// flagKeys maps command-line flag names onto config keys. Flags not listed
// here are command options, not configuration.
var flagKeys = map[string]string{
	"data":          "data.path",
	"variant":       "data.variant",
	"currency":      "dashboard.currency",
	"top-customers": "dashboard.top_customers",
	"preview-rows":  "dashboard.preview_rows",
	"addr":          "server.addr",
	"max-upload-mb": "server.max_upload_mb",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"output":        "output",
}

// Load reads the configuration. cfgFile names an explicit config file; when
// empty, lens.yaml in the working directory is used if present. flags may be
// nil; only flags the user set override other sources.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. config file
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. environment: LENS_SERVER_MAX_UPLOAD_MB -> server.max_upload_mb
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// sections are the top-level config groups; the first underscore of an
// environment variable after one of them separates group from key.
var sections = []string{"data", "dashboard", "server", "log"}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, sec := range sections {
		if rest, ok := strings.CutPrefix(key, sec+"_"); ok {
			return sec + "." + rest
		}
	}
	return key
}

// findConfigFile returns the explicit path, or lens.yaml if it exists.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	if _, err := os.Stat("lens.yml"); err == nil {
		return "lens.yml"
	}
	return ""
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every field against its constraints and reports all
// failures at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (got %v)", configKey(fe.Namespace()), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// configKey turns a validator namespace ("Config.server.addr") into the
// config key ("server.addr").
func configKey(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// SlogLevel returns the slog level named by Log.Level.
func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
