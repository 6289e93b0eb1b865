package classify

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	c := New([]string{"github.com", "wikipedia.org"})
	cases := []struct {
		name string
		url  string
		want Result
	}{
		{"productive", "https://github.com/loykin/focuspilot", Result{Productive: true}},
		{"productive subdomain", "https://en.wikipedia.org/wiki/Go", Result{Productive: true}},
		{"distraction", "https://www.reddit.com/r/golang", Result{Distraction: true}},
		{"distraction upper case", "https://WWW.YOUTUBE.COM/watch?v=1", Result{Distraction: true}},
		{"neutral", "https://example.com/", Result{}},
		{"empty", "", Result{}},
		{"garbage", "::not a url::", Result{}},
		{"no host", "about:blank", Result{}},
		{"relative", "/just/a/path", Result{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.Classify(tc.url); got != tc.want {
				t.Fatalf("Classify(%q) = %+v, want %+v", tc.url, got, tc.want)
			}
		})
	}
}

func TestProductiveOverridesDistraction(t *testing.T) {
	c := New([]string{"youtube.com"})
	got := c.Classify("https://youtube.com/watch?v=lecture")
	if !got.Productive || got.Distraction {
		t.Fatalf("expected productive override, got %+v", got)
	}
}

func TestNeverBothTrue(t *testing.T) {
	c := New([]string{"reddit.com", "github.com", ""})
	urls := []string{
		"https://reddit.com", "https://github.com", "https://netflix.com",
		"http://[::1]:80/", "mailto:someone@example.com", "https://%zz", "",
	}
	for _, u := range urls {
		r := c.Classify(u)
		if r.Productive && r.Distraction {
			t.Fatalf("Classify(%q) returned both flags", u)
		}
	}
}

func TestSetProductiveDomains(t *testing.T) {
	c := New(nil)
	if !c.IsDistraction("https://reddit.com") {
		t.Fatalf("reddit should be a distraction by default")
	}
	c.SetProductiveDomains([]string{" Reddit.com ", ""})
	if !c.IsProductive("https://reddit.com") {
		t.Fatalf("reddit should be productive after update")
	}
	if got := c.ProductiveDomains(); len(got) != 1 || got[0] != "reddit.com" {
		t.Fatalf("unexpected domains: %v", got)
	}
}

func TestHostnameParseError(t *testing.T) {
	_, err := Hostname("about:blank")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	h, err := Hostname("https://Sub.Example.com:8443/x")
	if err != nil || h != "sub.example.com" {
		t.Fatalf("Hostname = %q, %v", h, err)
	}
}
