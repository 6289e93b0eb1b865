package surface

import (
	"context"
	"testing"
)

func TestSettingsURL(t *testing.T) {
	p := Pages{Dashboard: "http://127.0.0.1:8787/ui/", Settings: "http://127.0.0.1:8787/ui/options"}
	if got := p.SettingsURL(""); got != p.Settings {
		t.Fatalf("no hint: %s", got)
	}
	if got := p.SettingsURL("sites"); got != "http://127.0.0.1:8787/ui/options?tab=sites" {
		t.Fatalf("hint: %s", got)
	}
	p.Settings = "http://127.0.0.1:8787/ui/options?lang=en"
	if got := p.SettingsURL("sites"); got != "http://127.0.0.1:8787/ui/options?lang=en&tab=sites" {
		t.Fatalf("existing query: %s", got)
	}
}

func TestNoop(t *testing.T) {
	var l Launcher = Noop{}
	if err := l.Open(context.Background(), "http://x"); err != nil {
		t.Fatal(err)
	}
}
