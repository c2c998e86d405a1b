package alert

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/talkincode/netpulse/config"
	"github.com/talkincode/netpulse/internal/monitor"
)

// MailNotifier sends a best-effort email when the health level
// transitions. It stays inert unless an SMTP host is configured and
// never blocks or fails the monitoring cycle.
type MailNotifier struct {
	cfg config.AlertConfig
}

func NewMailNotifier(cfg config.AlertConfig) *MailNotifier {
	return &MailNotifier{cfg: cfg}
}

// Enabled reports whether the notifier has enough configuration to send.
func (n *MailNotifier) Enabled() bool {
	return n.cfg.SmtpHost != "" && n.cfg.MailTo != ""
}

// NotifyChange delivers the transition asynchronously.
func (n *MailNotifier) NotifyChange(current monitor.Status, previous *monitor.Status) {
	if !n.Enabled() {
		return
	}
	go n.send(current, previous)
}

func (n *MailNotifier) send(current monitor.Status, previous *monitor.Status) {
	prevLabel := "none"
	if previous != nil {
		prevLabel = previous.Health.String()
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.MailFrom)
	m.SetHeader("To", n.cfg.MailTo)
	m.SetHeader("Subject", fmt.Sprintf("netpulse: health %s -> %s", prevLabel, current.Health.String()))
	m.SetBody("text/plain", fmt.Sprintf("%s\n\nat %s",
		current.Message, current.Timestamp.Format("2006-01-02 15:04:05 MST")))

	d := gomail.NewDialer(n.cfg.SmtpHost, n.cfg.SmtpPort, n.cfg.SmtpUser, n.cfg.SmtpPassword)
	if err := d.DialAndSend(m); err != nil {
		zap.L().Warn("alert mail delivery failed", zap.Error(err))
	}
}
