package mailSender

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	sl "auth_gateway/internal/lib/logger"
	"auth_gateway/internal/models"
)

var ErrEmptyRecipient = errors.New("message has no recipient")

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	log    *slog.Logger
	from   string
	dialer dialer
}

func New(log *slog.Logger, host string, port int, username, password, from string) *Mailer {
	if from == "" {
		from = username
	}

	return &Mailer{
		log:    log,
		from:   from,
		dialer: gomail.NewDialer(host, port, username, password),
	}
}

// Handle decodes one queued notification and mails it.
func (m *Mailer) Handle(body []byte) error {
	const op = "mailSender.Handle"

	var msg models.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		m.log.Error("failed to unmarshal message", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := m.Send(msg); err != nil {
		m.log.Error("failed to send message",
			sl.Err(err),
			slog.String("purpose", msg.Purpose),
		)
		return fmt.Errorf("%s: %w", op, err)
	}

	m.log.Info("message sent successfully", slog.String("purpose", msg.Purpose))

	return nil
}

func (m *Mailer) Send(msg models.Message) error {
	if msg.Email == "" {
		return ErrEmptyRecipient
	}

	return m.dialer.DialAndSend(m.build(msg))
}

func (m *Mailer) build(msg models.Message) *gomail.Message {
	out := gomail.NewMessage()
	out.SetHeader("From", m.from)
	out.SetHeader("To", out.FormatAddress(msg.Email, msg.Username))
	out.SetHeader("Subject", msg.Subject)
	out.SetBody("text/plain", msg.Body)

	return out
}
