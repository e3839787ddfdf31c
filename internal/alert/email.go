package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
)

// EmailNotifier sends alerts over SMTP. The recipient is a comma separated
// list of addresses.
type EmailNotifier struct {
	dialer  *gomail.Dialer
	from    string
	subject string
	timeout time.Duration
}

// NewEmailNotifier returns nil when host or from is empty. timeout bounds a
// whole delivery, SMTP exchange included; DefaultTimeout applies when it is
// not positive.
func NewEmailNotifier(host string, port int, username, password, from string, timeout time.Duration) *EmailNotifier {
	if host == "" || from == "" {
		return nil
	}
	return &EmailNotifier{
		dialer:  gomail.NewDialer(host, port, username, password),
		from:    from,
		subject: "certwatch alert",
		timeout: timeout,
	}
}

func (en *EmailNotifier) Notify(ctx context.Context, recipient, message string) error {
	to := splitAddresses(recipient)
	if len(to) == 0 {
		return fmt.Errorf("%w: no email recipient", ErrDelivery)
	}

	timeout := en.timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m := gomail.NewMessage()
	m.SetHeader("From", en.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", en.subject)
	m.SetBody("text/plain", message)

	// gomail only bounds the dial. A server that goes silent mid-exchange
	// leaves the send goroutine blocked until the connection drops.
	done := make(chan error, 1)
	go func() {
		done <- en.dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrDelivery, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: smtp send failed: %v", ErrDelivery, err)
		}
		return nil
	}
}

func splitAddresses(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
