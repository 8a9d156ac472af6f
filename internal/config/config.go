package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment override, e.g. FDTRACE_LOG_LEVEL.
const EnvPrefix = "FDTRACE"

// Config is the root of fdtrace's configuration.
type Config struct {
	Cwd     string       `mapstructure:"cwd"`     // Base for relative paths in the trace
	Color   bool         `mapstructure:"color"`   // Colourise reports
	Verbose bool         `mapstructure:"verbose"` // Detailed reports
	Output  string       `mapstructure:"output"`  // Report file, stdout if empty
	Log     LoggerConfig `mapstructure:"log"`
	Strace  StraceConfig `mapstructure:"strace"`
	Web     WebConfig    `mapstructure:"web"`
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console, json
	File   string `mapstructure:"file"`   // stderr if empty
}

// StraceConfig configures live tracing with --run.
type StraceConfig struct {
	Path        string `mapstructure:"path"`
	StringLimit int    `mapstructure:"string_limit"`
}

// WebConfig configures --web.
type WebConfig struct {
	Addr string `mapstructure:"addr"`
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"cwd":       "cwd",
	"verbose":   "verbose",
	"output":    "output",
	"log-level": "log.level",
	"log-file":  "log.file",
	"strace":    "strace.path",
	"addr":      "web.addr",
}

// Load merges defaults, the config file, FDTRACE_* environment variables
// and flags, in increasing priority. A missing file is not an error unless
// path names one explicitly.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fdtrace")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "fdtrace"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
		if f := flags.Lookup("no-color"); f != nil && f.Changed {
			v.Set("color", f.Value.String() != "true")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cwd", "/")
	v.SetDefault("color", true)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("strace.path", "strace")
	v.SetDefault("strace.string_limit", 4096)
	v.SetDefault("web.addr", "localhost:8080")
}

// NewLogger builds the process logger. Diagnostics are logged at warn, so
// the default level shows them and hides per-event debug output.
func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = level
	zcfg.Sampling = nil
	zcfg.DisableStacktrace = true

	switch cfg.Format {
	case "", "console":
		zcfg.Encoding = "console"
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
		zcfg.Encoding = "json"
	default:
		return nil, fmt.Errorf("log format %q: want console or json", cfg.Format)
	}

	out := "stderr"
	if cfg.File != "" {
		out = cfg.File
	}
	zcfg.OutputPaths = []string{out}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	return zcfg.Build()
}
