// Package surface opens the user-facing dashboard and settings pages.
package surface

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

type Launcher interface {
	Open(ctx context.Context, target string) error
}

// OSLauncher hands the target to the desktop's default URL handler.
type OSLauncher struct{}

func (OSLauncher) Open(_ context.Context, target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		return fmt.Errorf("external open is not supported on %s", runtime.GOOS)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open external target: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Noop ignores every request; used for headless daemons.
type Noop struct{}

func (Noop) Open(context.Context, string) error { return nil }

// Pages holds the URLs of the dashboard and settings surfaces.
type Pages struct {
	Dashboard string
	Settings  string
}

// SettingsURL returns the settings page, optionally with a tab hint
// appended as the "tab" query parameter.
func (p Pages) SettingsURL(hint string) string {
	if hint == "" {
		return p.Settings
	}
	u, err := url.Parse(p.Settings)
	if err != nil {
		return p.Settings
	}
	q := u.Query()
	q.Set("tab", hint)
	u.RawQuery = q.Encode()
	return u.String()
}
