// Package notify delivers time-lock notifications to interested parties.
// Grounded on original_source's goldengate/notifications.py (a Notification
// object carrying recipients and a rendered message, handed to a broker's
// send method) and the teacher's internal/cdn/providers pluggable-backend
// pattern (one interface, several concrete transports selected by config).
package notify

import (
	"fmt"
	"net/http"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Notification is one rendered message bound for a set of recipients.
type Notification struct {
	Recipients []string
	Message    string
}

// Broker delivers a Notification. Send is called fire-and-forget by the
// time-lock coordinator: a delivery failure is logged but never blocks or
// fails the grant itself, matching original_source's unchecked
// self.notification_broker.send(...) call.
type Broker interface {
	Send(n Notification) error
}

// LogBroker writes notifications to a structured logger. Useful in
// development or as a fallback broker.
type LogBroker struct {
	Logger *zap.Logger
}

func (b *LogBroker) Send(n Notification) error {
	b.Logger.Info("time-lock notification",
		zap.Strings("recipients", n.Recipients),
		zap.String("message", n.Message))
	return nil
}

// SMTPBroker delivers notifications by mail; Addr is host:port of the
// relay it dials.
type SMTPBroker struct {
	Addr string
	From string
	Auth smtp.Auth
}

func (b *SMTPBroker) Send(n Notification) error {
	if len(n.Recipients) == 0 {
		return nil
	}
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: goldengate time-lock request\r\n\r\n%s",
		b.From, strings.Join(n.Recipients, ", "), n.Message)
	return smtp.SendMail(b.Addr, b.Auth, b.From, n.Recipients, []byte(body))
}

// WebhookBroker POSTs the rendered message to a single HTTP endpoint,
// e.g. a chat integration. Recipients become a header for the receiving
// side to route on.
type WebhookBroker struct {
	URL    string
	Client *http.Client
}

func (b *WebhookBroker) Send(n Notification) error {
	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequest(http.MethodPost, b.URL, strings.NewReader(n.Message))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("X-Goldengate-Recipients", strings.Join(n.Recipients, ","))
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook notification rejected: %s", resp.Status)
	}
	return nil
}
