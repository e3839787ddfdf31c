package registration

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	"golang.org/x/net/publicsuffix"

	"certwatch/internal/logger"
	"certwatch/pkg/models"
)

// DefaultTimeout bounds one WHOIS query.
const DefaultTimeout = 5 * time.Second

// Checker looks up when a target's registered domain expires.
type Checker struct {
	timeout time.Duration
	lookup  func(domain string) (string, error)
}

func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Checker{
		timeout: timeout,
		lookup: func(domain string) (string, error) {
			return whois.Whois(domain)
		},
	}
}

// Check resolves hostname to its registrable domain and reports how many
// days of registration are left as of now.
func (c *Checker) Check(ctx context.Context, hostname string, now time.Time) models.RegistrationInfo {
	domain, err := RegistrableDomain(hostname)
	if err != nil {
		return models.RegistrationInfo{Domain: hostname, Err: err}
	}

	done := make(chan models.RegistrationInfo, 1)

	go func() {
		rawData, err := c.lookup(domain)
		if err != nil {
			done <- models.RegistrationInfo{Domain: domain, Err: fmt.Errorf("WHOIS fetch failed: %w", err)}
			return
		}
		done <- parse(domain, rawData, now)
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return models.RegistrationInfo{Domain: domain, Err: fmt.Errorf("WHOIS query cancelled: %w", ctx.Err())}
	case info := <-done:
		if info.Err != nil {
			logger.GetFromContext(ctx, logger.Get()).Debug("registration lookup failed",
				slog.String("domain", domain),
				slog.String("error", info.Err.Error()))
		}
		return info
	case <-timer.C:
		return models.RegistrationInfo{Domain: domain, Err: fmt.Errorf("WHOIS query timeout after %v", c.timeout)}
	}
}

func parse(domain, rawData string, now time.Time) models.RegistrationInfo {
	info := models.RegistrationInfo{Domain: domain}

	parsed, err := whoisparser.Parse(rawData)
	if err != nil {
		info.Err = fmt.Errorf("WHOIS parse failed: %w", err)
		return info
	}

	if parsed.Registrar != nil {
		info.Registrar = parsed.Registrar.Name
	}

	if parsed.Domain == nil || parsed.Domain.ExpirationDate == "" {
		info.Err = fmt.Errorf("WHOIS record has no expiration date")
		return info
	}

	expiresAt, err := parseDate(parsed.Domain.ExpirationDate)
	if err != nil {
		info.Err = err
		return info
	}

	info.ExpiresAt = expiresAt
	info.Days, _ = models.CalendarDiff(now, expiresAt)
	return info
}

// RegistrableDomain returns the eTLD+1 of hostname, e.g. example.co.uk for
// www.example.co.uk.
func RegistrableDomain(hostname string) (string, error) {
	hostname = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(hostname)), ".")
	if net.ParseIP(hostname) != nil {
		return "", fmt.Errorf("%s is an IP address, not a domain", hostname)
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(hostname)
	if err != nil {
		return "", fmt.Errorf("cannot determine registrable domain of %s: %w", hostname, err)
	}
	return domain, nil
}

// parseDate attempts to parse various date formats commonly found in WHOIS data
func parseDate(dateStr string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"02-Jan-2006",
		"2006.01.02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}
