package classify

import (
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
)

// DistractionDomains is the built-in list of hostname substrings treated as
// distracting unless the hostname also matches a productive domain.
var DistractionDomains = []string{
	"facebook.com",
	"twitter.com",
	"instagram.com",
	"youtube.com",
	"reddit.com",
	"tiktok.com",
	"netflix.com",
	"discord.com",
	"pinterest.com",
	"roblox.com",
	"primevideo.com",
}

// Result is the classification of a single URL. Productive and Distraction
// are never both true.
type Result struct {
	Productive  bool `json:"productive"`
	Distraction bool `json:"distraction"`
}

// ParseError reports a URL that could not be classified. Classify recovers
// from it and returns the neutral Result.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("classify %q: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Classifier maps URLs to productive/distraction using a swappable list of
// productive hostname substrings.
type Classifier struct {
	productive atomic.Pointer[[]string]
}

func New(productiveDomains []string) *Classifier {
	c := &Classifier{}
	c.SetProductiveDomains(productiveDomains)
	return c
}

// SetProductiveDomains replaces the productive list. Empty entries are dropped.
func (c *Classifier) SetProductiveDomains(domains []string) {
	list := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			list = append(list, d)
		}
	}
	c.productive.Store(&list)
}

// ProductiveDomains returns a copy of the current productive list.
func (c *Classifier) ProductiveDomains() []string {
	p := c.productive.Load()
	if p == nil {
		return nil
	}
	return append([]string(nil), (*p)...)
}

// Classify never fails: unknown or malformed URLs are neutral.
func (c *Classifier) Classify(raw string) Result {
	host, err := Hostname(raw)
	if err != nil {
		return Result{}
	}
	var productive []string
	if p := c.productive.Load(); p != nil {
		productive = *p
	}
	if containsAny(host, productive) {
		return Result{Productive: true}
	}
	return Result{Distraction: containsAny(host, DistractionDomains)}
}

// IsProductive is shorthand for Classify(raw).Productive.
func (c *Classifier) IsProductive(raw string) bool { return c.Classify(raw).Productive }

// IsDistraction is shorthand for Classify(raw).Distraction.
func (c *Classifier) IsDistraction(raw string) bool { return c.Classify(raw).Distraction }

// Hostname extracts the lower-cased hostname of an absolute URL.
func Hostname(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &ParseError{URL: raw, Err: fmt.Errorf("empty url")}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", &ParseError{URL: raw, Err: err}
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", &ParseError{URL: raw, Err: fmt.Errorf("no hostname")}
	}
	return host, nil
}

func containsAny(host string, subs []string) bool {
	for _, s := range subs {
		if s != "" && strings.Contains(host, s) {
			return true
		}
	}
	return false
}
