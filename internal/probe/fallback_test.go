package probe

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"certwatch/internal/testutil"
	"certwatch/pkg/models"
)

// scriptedProber returns a canned result per dialled host.
type scriptedProber struct {
	results  map[string]error
	requests []Request
}

func (p *scriptedProber) Probe(ctx context.Context, req Request) (models.CertificateExpiry, error) {
	p.requests = append(p.requests, req)
	if err := p.results[req.Host]; err != nil {
		return models.CertificateExpiry{}, err
	}
	return models.CertificateExpiry{RemainingSeconds: 10 * 86400}, nil
}

func TestCoordinator_Probe(t *testing.T) {
	dnsErr := newError(ErrResolution, "example.test", errors.New("no such host"))
	connErr := newError(ErrConnect, "203.0.113.5", errors.New("connection refused"))

	target := models.Target{Host: "https://example.test", FallbackIP: "203.0.113.5", Port: 443}

	tests := []struct {
		name         string
		target       models.Target
		results      map[string]error
		wantAttempts int
		wantFallback bool
		wantErr      error
	}{
		{
			name:         "primary succeeds",
			target:       target,
			results:      map[string]error{},
			wantAttempts: 1,
		},
		{
			name:         "primary fails, fallback succeeds",
			target:       target,
			results:      map[string]error{"example.test": dnsErr},
			wantAttempts: 2,
			wantFallback: true,
		},
		{
			name:         "both fail",
			target:       target,
			results:      map[string]error{"example.test": dnsErr, "203.0.113.5": connErr},
			wantAttempts: 2,
			wantFallback: true,
			wantErr:      ErrConnect,
		},
		{
			name:         "no fallback configured",
			target:       models.Target{Host: "https://example.test", Port: 443},
			results:      map[string]error{"example.test": dnsErr},
			wantAttempts: 1,
			wantErr:      ErrResolution,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := &scriptedProber{results: tt.results}
			coordinator := NewCoordinator(prober, 250*time.Millisecond)
			at := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

			outcome := coordinator.Probe(context.Background(), tt.target, at)

			if len(prober.requests) != tt.wantAttempts {
				t.Fatalf("expected %d attempts, got %d", tt.wantAttempts, len(prober.requests))
			}
			if outcome.UsedFallback != tt.wantFallback {
				t.Errorf("UsedFallback = %v, want %v", outcome.UsedFallback, tt.wantFallback)
			}

			for _, req := range prober.requests {
				if req.ServerName != "example.test" {
					t.Errorf("ServerName = %q, want example.test", req.ServerName)
				}
				if req.Port != 443 || req.Timeout != 250*time.Millisecond || !req.At.Equal(at) {
					t.Errorf("attempt did not reuse port/timeout/time: %+v", req)
				}
			}
			if tt.wantFallback && prober.requests[1].Host != "203.0.113.5" {
				t.Errorf("fallback dialled %q, want 203.0.113.5", prober.requests[1].Host)
			}

			if tt.wantErr != nil {
				if outcome.Expiry != nil {
					t.Error("expected no expiry on failure")
				}
				if !errors.Is(outcome.Err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, outcome.Err)
				}
				return
			}

			if outcome.Err != nil {
				t.Fatalf("unexpected error: %v", outcome.Err)
			}
			if outcome.Expiry == nil || outcome.Expiry.Days() != 10 {
				t.Errorf("expected 10 day expiry, got %+v", outcome.Expiry)
			}
		})
	}
}

func TestCoordinator_InvalidHost(t *testing.T) {
	prober := &scriptedProber{}
	outcome := NewCoordinator(prober, 0).Probe(context.Background(), models.Target{Host: "not a uri"}, time.Now())

	if outcome.Err == nil {
		t.Fatal("expected error for invalid host")
	}
	if len(prober.requests) != 0 {
		t.Errorf("no probe should be attempted, got %d", len(prober.requests))
	}
}

func TestCoordinator_FallbackAgainstLiveServer(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	server := testutil.StartTLSServer(t, testutil.SelfSignedCert(t, now.Add(15*24*time.Hour), "unresolvable.test"))

	// The primary name is unknown to the resolver, the fallback IP is live.
	prober := NewProber(staticResolver{})
	coordinator := NewCoordinator(prober, 2*time.Second)

	outcome := coordinator.Probe(context.Background(), models.Target{
		Host:       "https://unresolvable.test",
		FallbackIP: "127.0.0.1",
		Port:       server.Port(),
	}, now)

	if outcome.Err != nil {
		t.Fatalf("expected fallback to succeed, got: %v", outcome.Err)
	}
	if !outcome.UsedFallback {
		t.Error("expected fallback to be used")
	}
	if !errors.Is(outcome.PrimaryErr, ErrResolution) {
		t.Errorf("expected primary resolution failure, got %v", outcome.PrimaryErr)
	}
	if outcome.Expiry.Days() != 15 {
		t.Errorf("Days() = %d, want 15", outcome.Expiry.Days())
	}
	if names := server.ServerNames(); len(names) != 1 || names[0] != "unresolvable.test" {
		t.Errorf("fallback should keep hostname SNI, server saw %v", names)
	}
}

func TestSystemResolver_IPLiteral(t *testing.T) {
	ips, err := NewSystemResolver().Resolve(context.Background(), "203.0.113.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ips) != 1 || !ips[0].Equal(net.ParseIP("203.0.113.5")) {
		t.Errorf("expected literal to resolve to itself, got %v", ips)
	}
}

func TestPreferIPv4(t *testing.T) {
	ips := []net.IP{net.ParseIP("2001:db8::1"), net.ParseIP("192.0.2.1"), net.ParseIP("2001:db8::2"), net.ParseIP("192.0.2.2")}
	got := preferIPv4(ips)
	want := []string{"192.0.2.1", "192.0.2.2", "2001:db8::1", "2001:db8::2"}

	for i, ip := range got {
		if ip.String() != want[i] {
			t.Errorf("position %d: got %s, want %s", i, ip, want[i])
		}
	}
}
