package main

import (
	"io"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// envPrefix is the prefix of every environment variable read by dynamicd.
const envPrefix = "dynamic"

// Options holds the daemon configuration.
type Options struct {
	Addr           string        `envconfig:"ADDR"`
	HandlerTimeout time.Duration `envconfig:"HANDLER_TIMEOUT"`
	ForwardErrors  bool          `envconfig:"FORWARD_ERRORS"`
	LogLevel       string        `envconfig:"LOG_LEVEL"`
	LogFormat      string        `envconfig:"LOG_FORMAT"`
	AdminKey       string        `envconfig:"ADMIN_KEY"`
	AdminOpen      bool          `envconfig:"ADMIN_OPEN"`
	Features       []string      `envconfig:"FEATURES"`
}

// NewOptions initializes Options with default values.
func NewOptions() *Options {
	return &Options{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		Features:  []string{"request-id"},
	}
}

// Update overrides options from DYNAMIC_* environment variables.
func (o *Options) Update() error {
	if err := envconfig.Process(envPrefix, o); err != nil {
		return errors.Wrap(err, "load env variables")
	}
	return nil
}

// Verify checks that the options are usable.
func (o *Options) Verify() error {
	if o.Addr == "" {
		return errors.New("listen address is empty")
	}
	if o.HandlerTimeout < 0 {
		return errors.Errorf("negative handler timeout %s", o.HandlerTimeout)
	}
	switch o.LogFormat {
	case "text", "json":
	default:
		return errors.Errorf("unknown log format %q", o.LogFormat)
	}
	if o.AdminOpen && o.AdminKey != "" {
		return errors.New("admin key is set but the admin API is configured as open")
	}
	for _, name := range o.Features {
		if _, ok := features[name]; !ok {
			return errors.Errorf("unknown feature %q", name)
		}
	}
	return nil
}

// newLogger creates the daemon logger from the configured level and format.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if formatStr == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}
	return slog.New(handler)
}
