package targets

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"certwatch/pkg/models"
)

// ErrInvalidTargets is returned for any target list that cannot be used.
var ErrInvalidTargets = errors.New("invalid target list")

// entry mirrors models.Target with pointer fields so absent keys can be
// told apart from zero values.
type entry struct {
	Host       *string `json:"host" yaml:"host"`
	FallbackIP *string `json:"fallback_ip" yaml:"fallback_ip"`
	TrustCert  *bool   `json:"trust_cert" yaml:"trust_cert"`
	Port       *int    `json:"port" yaml:"port"`
}

// Load reads the target list at path. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON.
func Load(path string) ([]models.Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read target list: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON decodes a JSON array of targets. Unknown keys are rejected.
func ParseJSON(data []byte) ([]models.Target, error) {
	var entries []entry

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTargets, err)
	}

	return build(entries)
}

// ParseYAML decodes a YAML sequence of targets. Unknown keys are rejected.
func ParseYAML(data []byte) ([]models.Target, error) {
	var entries []entry

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTargets, err)
	}

	return build(entries)
}

func build(entries []entry) ([]models.Target, error) {
	targets := make([]models.Target, 0, len(entries))
	for i, e := range entries {
		t, err := e.target()
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidTargets, i, err)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func (e entry) target() (models.Target, error) {
	var missing []string
	if e.Host == nil {
		missing = append(missing, "host")
	}
	if e.FallbackIP == nil {
		missing = append(missing, "fallback_ip")
	}
	if e.TrustCert == nil {
		missing = append(missing, "trust_cert")
	}
	if e.Port == nil {
		missing = append(missing, "port")
	}
	if len(missing) > 0 {
		return models.Target{}, fmt.Errorf("missing field(s): %s", strings.Join(missing, ", "))
	}

	if *e.Port < 0 || *e.Port > 65535 {
		return models.Target{}, fmt.Errorf("port %d out of range 0-65535", *e.Port)
	}

	if *e.FallbackIP != "" && net.ParseIP(*e.FallbackIP) == nil {
		return models.Target{}, fmt.Errorf("fallback_ip %q is not an IP address", *e.FallbackIP)
	}

	t := models.Target{
		Host:       *e.Host,
		FallbackIP: *e.FallbackIP,
		TrustCert:  *e.TrustCert,
		Port:       uint16(*e.Port),
	}

	if _, err := t.URL(); err != nil {
		return models.Target{}, err
	}

	return t, nil
}
