package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/loykin/focuspilot/internal/config"
)

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("15:04:05")
}

// showConfig prints the configuration serve would run with.
func showConfig(w io.Writer, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	b, err := cfg.YAML()
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
