package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	mail "github.com/go-mail/mail"

	"github.com/wenex-org/platform-sub000/internal/observability/logger"
)

// SMTPConfig configura el Mailer SMTP.
type SMTPConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	From               string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
}

// SMTPMailer implementa Mailer con go-mail.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer valida la configuración mínima.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, errors.New("smtp: host and port are required")
	}
	if cfg.TLSMode == "" {
		cfg.TLSMode = "auto"
	}
	return &SMTPMailer{cfg: cfg}, nil
}

func (s *SMTPMailer) message(m Mail) (*mail.Message, error) {
	from := m.From
	if from == "" {
		from = s.cfg.From
	}
	if from == "" || len(m.To) == 0 {
		return nil, errors.New("smtp: from and to are required")
	}
	msg := mail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", m.To...)
	if len(m.Cc) > 0 {
		msg.SetHeader("Cc", m.Cc...)
	}
	msg.SetHeader("Subject", m.Subject)

	// multipart/alternative cuando hay texto y html
	switch {
	case m.Text != "" && m.HTML != "":
		msg.SetBody("text/plain", m.Text)
		msg.AddAlternative("text/html", m.HTML)
	case m.HTML != "":
		msg.SetBody("text/html", m.HTML)
	default:
		msg.SetBody("text/plain", m.Text)
	}
	return msg, nil
}

func (s *SMTPMailer) dialer(ctx context.Context) *mail.Dialer {
	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify, // solo dev
	}
	switch s.cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	case "starttls":
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left > 0 {
			d.Timeout = left
		}
	}
	return d
}

// Send arma el mensaje y lo entrega en una conexión nueva.
func (s *SMTPMailer) Send(ctx context.Context, m Mail) error {
	log := logger.From(ctx).With(
		logger.Component("smtp"),
		logger.String("host", s.cfg.Host),
		logger.Int("port", s.cfg.Port),
	)
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := s.message(m)
	if err != nil {
		return err
	}
	if err := s.dialer(ctx).DialAndSend(msg); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Info("email sent", logger.Int("recipients", len(m.To)+len(m.Cc)))
	return nil
}
