package monitor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"certwatch/internal/probe"
	"certwatch/internal/renderer"
	"certwatch/pkg/models"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	fail     bool
}

func (n *recordingNotifier) Notify(ctx context.Context, recipient, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("webhook unavailable")
	}
	n.messages = append(n.messages, recipient+": "+message)
	return nil
}

type countingObserver struct {
	mu      sync.Mutex
	reports int
}

func (o *countingObserver) Observe(report *models.Report) {
	o.mu.Lock()
	o.reports++
	o.mu.Unlock()
}

func (o *countingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reports
}

type fakeHistory struct {
	err     error
	records int
}

func (h *fakeHistory) Record(ctx context.Context, report *models.Report) error {
	h.records++
	return h.err
}

func alertingMonitor() *Monitor {
	return New(&fakeProber{outcomes: map[string]probe.Outcome{
		"https://five.test": {Expiry: expiryIn(5)},
	}}, nil, Options{})
}

func TestRunner_Run(t *testing.T) {
	targets := []models.Target{{Host: "https://five.test", Port: 443}}

	notifier := &recordingNotifier{}
	observer := &countingObserver{}
	history := &fakeHistory{}
	var delivered int
	var out bytes.Buffer

	r := &Runner{
		Monitor:   alertingMonitor(),
		Renderer:  renderer.NewTextRenderer(),
		Out:       &out,
		Notifier:  notifier,
		Recipient: "ops",
		Observers: []Observer{observer},
		History:   history,
		Delivered: func(n int) { delivered += n },
		Now:       func() time.Time { return scanTime },
	}

	report, err := r.Run(context.Background(), targets)
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if len(report.Alerts) != 1 {
		t.Fatalf("expected one alert, got %+v", report.Alerts)
	}
	if len(notifier.messages) != 1 || !strings.HasPrefix(notifier.messages[0], "ops: ") {
		t.Errorf("unexpected deliveries: %v", notifier.messages)
	}
	if delivered != 1 {
		t.Errorf("delivered = %d, want 1", delivered)
	}
	if observer.count() != 1 {
		t.Errorf("observer saw %d reports, want 1", observer.count())
	}
	if history.records != 1 {
		t.Errorf("history recorded %d reports, want 1", history.records)
	}
	if !strings.Contains(out.String(), "https://five.test\n - certificate expires in 5 days") {
		t.Errorf("unexpected report output:\n%s", out.String())
	}
}

func TestRunner_Run_FailuresAreNotFatal(t *testing.T) {
	targets := []models.Target{{Host: "https://five.test", Port: 443}}
	var delivered int

	r := &Runner{
		Monitor:   alertingMonitor(),
		Notifier:  &recordingNotifier{fail: true},
		History:   &fakeHistory{err: errors.New("disk full")},
		Delivered: func(n int) { delivered += n },
	}

	if _, err := r.Run(context.Background(), targets); err != nil {
		t.Fatalf("delivery and history failures should not fail the run: %v", err)
	}
	if delivered != 0 {
		t.Errorf("delivered = %d, want 0", delivered)
	}
}

func TestRunner_Run_MalformedTarget(t *testing.T) {
	r := &Runner{Monitor: alertingMonitor()}
	if _, err := r.Run(context.Background(), []models.Target{{Host: "::", Port: 1}}); err == nil {
		t.Error("expected error for malformed target")
	}
}

func TestRunner_Loop(t *testing.T) {
	targets := []models.Target{{Host: "https://five.test", Port: 443}}
	observer := &countingObserver{}

	r := &Runner{Monitor: alertingMonitor(), Observers: []Observer{observer}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Loop(ctx, targets, 20*time.Millisecond) }()

	deadline := time.Now().Add(2 * time.Second)
	for observer.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Loop() returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Loop() did not stop after cancel")
	}

	if observer.count() < 3 {
		t.Errorf("expected at least 3 scans, got %d", observer.count())
	}
}

func TestRunner_Loop_InvalidInterval(t *testing.T) {
	r := &Runner{Monitor: alertingMonitor()}
	if err := r.Loop(context.Background(), nil, 0); err == nil {
		t.Error("expected error for zero interval")
	}
}
