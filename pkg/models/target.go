package models

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Target is one monitored endpoint as loaded from the target list.
type Target struct {
	Host       string `json:"host" yaml:"host"`
	FallbackIP string `json:"fallback_ip" yaml:"fallback_ip"`
	TrustCert  bool   `json:"trust_cert" yaml:"trust_cert"`
	Port       uint16 `json:"port" yaml:"port"`
}

// URL parses Host and sets the configured port on it. It fails when Host is
// not an absolute URI with a hostname.
func (t Target) URL() (*url.URL, error) {
	u, err := url.Parse(t.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid host %q: %w", t.Host, err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return nil, fmt.Errorf("invalid host %q: missing scheme or hostname", t.Host)
	}

	u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(int(t.Port)))
	return u, nil
}

// Hostname returns the bare hostname of the target, or "" when Host does not
// parse.
func (t Target) Hostname() string {
	u, err := t.URL()
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// IsHTTP reports whether the scheme belongs to the http family.
func (t Target) IsHTTP() bool {
	u, err := t.URL()
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(u.Scheme), "http")
}
