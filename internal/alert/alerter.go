// Package alert delivers operator notifications over plain SMTP. Alerts
// ride a separate relay, not the dispatch pipeline: a paused warm-up or an
// unhealthy region must not gate its own alarm.
package alert

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/ignite/dispatch-engine/internal/config"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
)

// Alerter sends plain-text operator mail. Unconfigured (no host or no
// recipients) it logs the alert instead of sending.
type Alerter struct {
	host string
	port int
	from string
	to   []string
}

// NewAlerter creates an alerter from config.
func NewAlerter(cfg config.AlertConfig) *Alerter {
	return &Alerter{
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
		from: cfg.From,
		to:   cfg.To,
	}
}

// Notify sends one alert. Delivery errors are returned so callers can log
// them, but no alert is ever retried.
func (a *Alerter) Notify(ctx context.Context, subject, body string) error {
	if a.host == "" || len(a.to) == 0 {
		logger.Info("alert (no SMTP configured)", "subject", subject)
		return nil
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		a.from, strings.Join(a.to, ","), subject, body)

	addr := fmt.Sprintf("%s:%d", a.host, a.port)
	if err := smtp.SendMail(addr, nil, a.from, a.to, []byte(msg)); err != nil {
		return fmt.Errorf("sending alert %q: %w", subject, err)
	}
	logger.Info("alert sent", "subject", subject, "recipients", len(a.to))
	return nil
}
