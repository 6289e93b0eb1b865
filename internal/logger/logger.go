package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days

	DefaultFileName = "focuspilot.log"
)

// Level names accepted in configuration.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// SlogConfig controls the structured logger.
type SlogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	Color      bool   `mapstructure:"color" yaml:"color"`
	TimeStamps bool   `mapstructure:"timestamps" yaml:"timestamps"`
	Source     bool   `mapstructure:"source" yaml:"source"`
}

// FileConfig describes an optional rotating log file.
// Path wins over Dir; with only Dir set the file is Dir/focuspilot.log.
type FileConfig struct {
	Dir        string `mapstructure:"dir" yaml:"dir,omitempty"`
	Path       string `mapstructure:"path" yaml:"path,omitempty"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// Config is the daemon logging configuration.
type Config struct {
	Slog SlogConfig `mapstructure:"slog" yaml:"slog"`
	File FileConfig `mapstructure:"file" yaml:"file"`
}

// ParseLevel maps a level name to slog.Level. Unknown names are an error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", LevelInfo:
		return slog.LevelInfo, nil
	case LevelDebug:
		return slog.LevelDebug, nil
	case LevelWarn, "warning":
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// FilePath returns the resolved log file path, or "" when file logging is off.
func (c Config) FilePath() string {
	if c.File.Path != "" {
		return c.File.Path
	}
	if c.File.Dir != "" {
		return filepath.Join(c.File.Dir, DefaultFileName)
	}
	return ""
}

// FileWriter returns a rotating writer for the configured file, or nil.
func (c Config) FileWriter() io.WriteCloser {
	p := c.FilePath()
	if p == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   p,
		MaxSize:    valOr(c.File.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.File.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.File.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.File.Compress,
	}
}

// NewSlogger builds a logger writing to stderr, or to the rotating file when
// one is configured.
func (c Config) NewSlogger() *slog.Logger {
	l, _ := c.newSlogger(nil)
	return l
}

// NewSloggerTo builds a logger writing to w. The returned closer releases the
// log file when one was opened and is never nil.
func (c Config) NewSloggerTo(w io.Writer) (*slog.Logger, io.Closer) {
	return c.newSlogger(w)
}

func (c Config) newSlogger(w io.Writer) (*slog.Logger, io.Closer) {
	var closer io.Closer = nopCloser{}
	color := c.Slog.Color
	if w == nil {
		if fw := c.FileWriter(); fw != nil {
			w = fw
			closer = fw
			color = false
		} else {
			w = os.Stderr
		}
	}
	return slog.New(c.handler(w, color)), closer
}

func (c Config) handler(w io.Writer, color bool) slog.Handler {
	lvl, _ := ParseLevel(c.Slog.Level)
	opts := &slog.HandlerOptions{Level: lvl, AddSource: c.Slog.Source}
	if !c.Slog.TimeStamps {
		opts.ReplaceAttr = dropTime
	}
	if strings.EqualFold(c.Slog.Format, FormatJSON) {
		return slog.NewJSONHandler(w, opts)
	}
	if color {
		return NewColorTextHandler(w, opts, c.Slog.TimeStamps)
	}
	return slog.NewTextHandler(w, opts)
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
