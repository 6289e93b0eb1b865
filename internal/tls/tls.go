// Package tls builds the HTTPS configuration of the API server.
package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/focuspilot/internal/config"
)

// File names used inside TLSConfig.Dir.
const (
	CACertFile = "tls_ca.crt"
	CertFile   = "tls.crt"
	KeyFile    = "tls.key"
)

const defaultValidDays = 365

// parseVersion maps a configured version name to its constant.
func parseVersion(ver string) (uint16, bool, error) {
	switch strings.ToLower(strings.TrimSpace(ver)) {
	case "", "default":
		return 0, false, nil
	case "1.2", "tls1.2":
		return tls.VersionTLS12, true, nil
	case "1.3", "tls1.3":
		return tls.VersionTLS13, true, nil
	default:
		return 0, false, fmt.Errorf("unsupported TLS version %q", ver)
	}
}

// versions resolves the accepted range. Loopback browser bridges are
// modern, so the floor defaults to TLS 1.2 and the ceiling to 1.3.
func versions(cfg config.TLSConfig) (uint16, uint16, error) {
	minV, maxV := uint16(tls.VersionTLS12), uint16(tls.VersionTLS13)
	if v, ok, err := parseVersion(cfg.MinVersion); err != nil {
		return 0, 0, fmt.Errorf("min_version: %w", err)
	} else if ok {
		minV = v
	}
	if v, ok, err := parseVersion(cfg.MaxVersion); err != nil {
		return 0, 0, fmt.Errorf("max_version: %w", err)
	} else if ok {
		maxV = v
	}
	if minV > maxV {
		return 0, 0, errors.New("min_version is above max_version")
	}
	return minV, maxV, nil
}

// Paths returns the certificate and key files Setup will load.
func Paths(cfg config.TLSConfig) (certPath, keyPath string) {
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		return cfg.CertFile, cfg.KeyFile
	}
	return filepath.Join(cfg.Dir, CertFile), filepath.Join(cfg.Dir, KeyFile)
}

// Setup returns the server TLS configuration, or nil when TLS is disabled.
// With Dir and AutoGenerate set, a missing pair is generated first.
// Certificates are re-read on every handshake so a renewed pair is picked up
// without a restart.
func Setup(cfg config.TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	minV, maxV, err := versions(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.CertFile == "" && cfg.Dir == "" {
		return nil, errors.New("TLS enabled but no certificate configured")
	}

	certPath, keyPath := Paths(cfg)
	if cfg.CertFile == "" && cfg.AutoGenerate && !exists(certPath, keyPath) {
		if err := generate(cfg); err != nil {
			return nil, fmt.Errorf("certificate generation failed: %w", err)
		}
	}
	// fail at startup rather than on the first handshake
	if _, err := tls.LoadX509KeyPair(certPath, keyPath); err != nil {
		return nil, fmt.Errorf("load certificate: %w", err)
	}

	// #nosec G402 min version is configurable down to TLS 1.2
	return &tls.Config{
		GetCertificate: loader(certPath, keyPath),
		MinVersion:     minV,
		MaxVersion:     maxV,
	}, nil
}

func loader(certPath, keyPath string) func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return nil, err
		}
		return &cert, nil
	}
}

func exists(paths ...string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

func generate(cfg config.TLSConfig) error {
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", cfg.Dir, err)
	}
	days := cfg.ValidDays
	if days <= 0 {
		days = defaultValidDays
	}
	return GenerateSelfSigned(CertRequest{
		CommonName:  orDefault(cfg.CommonName, "localhost"),
		DNSNames:    orDefaultSlice(cfg.DNSNames, []string{"localhost"}),
		IPAddresses: orDefaultSlice(cfg.IPAddresses, []string{"127.0.0.1", "::1"}),
		NotAfter:    time.Now().AddDate(0, 0, days),
		CertPath:    filepath.Join(cfg.Dir, CertFile),
		KeyPath:     filepath.Join(cfg.Dir, KeyFile),
		CACertPath:  filepath.Join(cfg.Dir, CACertFile),
	})
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultSlice(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
