package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/bankcards/card-service/internal/config"
)

// Sender handles sending emails via SMTP. Card numbers only ever appear in
// outgoing mail in masked form.
type Sender struct {
	cfg *config.Config
	log *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, log *logrus.Logger) *Sender {
	return &Sender{cfg: cfg, log: log}
}

// SendTransferNotification notifies a user that a transfer between their
// cards completed.
func (s *Sender) SendTransferNotification(to, username string, amount decimal.Decimal, fromMasked, toMasked string) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = "Transfer Notification"

	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"A transfer of %s has been completed.\n"+
			"From card: %s\n"+
			"To card: %s\n"+
			"Transaction time: %s\n",
		username, amount.StringFixed(2), fromMasked, toMasked,
		time.Now().Format("2006-01-02 15:04:05"),
	)
	body += "\nBest regards,\nCard Service"
	e.Text = []byte(body)

	return s.send(e)
}

// SendExpiryReminder warns a user that one of their cards is about to
// expire.
func (s *Sender) SendExpiryReminder(to, username, maskedNumber string, expiration time.Time) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = "Card Expiration Reminder"

	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"Your card %s expires on %s.\n"+
			"Please contact the bank to have it reissued.\n",
		username, maskedNumber, expiration.Format("2006-01-02"),
	)
	body += "\nBest regards,\nCard Service"
	e.Text = []byte(body)

	return s.send(e)
}

func (s *Sender) send(e *email.Email) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.log.Errorf("Failed to send email to %v: %v", e.To, err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.log.Infof("Email sent to %v: %s", e.To, e.Subject)
	return nil
}
