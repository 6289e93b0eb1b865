package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

func TestFilePath(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"none", Config{}, ""},
		{"dir", Config{File: FileConfig{Dir: "/var/log/fp"}}, filepath.Join("/var/log/fp", DefaultFileName)},
		{"path wins", Config{File: FileConfig{Dir: "/a", Path: "/b/x.log"}}, "/b/x.log"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.FilePath(); got != tc.want {
				t.Fatalf("FilePath() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFileWriter_Defaults(t *testing.T) {
	if w := (Config{}).FileWriter(); w != nil {
		t.Fatalf("expected nil writer without Dir/Path")
	}
	cfg := Config{File: FileConfig{Path: filepath.Join(t.TempDir(), "x.log")}}
	w := cfg.FileWriter()
	l, ok := w.(*lj.Logger)
	if !ok {
		t.Fatalf("writer is not lumberjack.Logger")
	}
	defer func() { _ = l.Close() }()
	if l.MaxSize != 10 || l.MaxBackups != 3 || l.MaxAge != 7 {
		t.Fatalf("unexpected defaults: size=%d backups=%d age=%d", l.MaxSize, l.MaxBackups, l.MaxAge)
	}
}

func TestFileWriter_Overrides(t *testing.T) {
	cfg := Config{File: FileConfig{Path: filepath.Join(t.TempDir(), "y.log"), MaxSizeMB: 1, MaxBackups: 9, MaxAgeDays: 11, Compress: true}}
	l := cfg.FileWriter().(*lj.Logger)
	defer func() { _ = l.Close() }()
	if l.MaxSize != 1 || l.MaxBackups != 9 || l.MaxAge != 11 || !l.Compress {
		t.Fatalf("unexpected overrides: size=%d backups=%d age=%d compress=%t", l.MaxSize, l.MaxBackups, l.MaxAge, l.Compress)
	}
}

func TestNewSlogger_WritesToFile(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Slog: SlogConfig{Level: LevelInfo, Color: true}, File: FileConfig{Dir: dir}}
	l, closer := cfg.newSlogger(nil)
	l.Info("tab switched", "tab", 7)
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, DefaultFileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "tab switched") || !strings.Contains(s, "tab=7") {
		t.Fatalf("unexpected log content: %q", s)
	}
	if strings.Contains(s, "\033[") || strings.Contains(s, `\x1b`) {
		t.Fatalf("file output must not carry ANSI codes: %q", s)
	}
}

func TestNewSloggerTo_JSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{Slog: SlogConfig{Level: LevelDebug, Format: FormatJSON}}
	l, _ := cfg.NewSloggerTo(&buf)
	l.Debug("assess", "score", 3)

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("not json: %v (%q)", err, buf.String())
	}
	if m["msg"] != "assess" || m["score"] != float64(3) {
		t.Fatalf("unexpected record: %v", m)
	}
	if _, ok := m["time"]; ok {
		t.Fatalf("time should be dropped without TimeStamps: %v", m)
	}
}

func TestNewSloggerTo_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l, _ := Config{Slog: SlogConfig{Level: LevelWarn}}.NewSloggerTo(&buf)
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("level filter not applied: %q", buf.String())
	}
}

func TestColorTextHandler_WithAttrsKeepsColor(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)
	slog.New(h).With("component", "tracker").Error("boom")
	out := buf.String()
	if !strings.Contains(out, "31m") || !strings.Contains(out, "ERROR") {
		t.Fatalf("expected red ERROR prefix, got %q", out)
	}
	if !strings.Contains(out, "component=tracker") {
		t.Fatalf("expected attr in output, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
