package smtp

import (
	"errors"
	"fmt"
	smtpPkg "net/smtp"
	"strings"
)

type ItfSmtp interface {
	SendAlert(subject string, body string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

type smtp struct {
	auth smtpPkg.Auth
	addr string
	from string
	to   []string
	send func(addr string, a smtpPkg.Auth, from string, to []string, msg []byte) error
}

func New(cfg Config) (ItfSmtp, error) {
	if cfg.Host == "" || len(cfg.To) == 0 {
		return nil, errors.New("smtp host and at least one recipient are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}

	var auth smtpPkg.Auth
	if cfg.Username != "" {
		auth = smtpPkg.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &smtp{
		auth: auth,
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		from: cfg.From,
		to:   cfg.To,
		send: smtpPkg.SendMail,
	}, nil
}

func (s *smtp) SendAlert(subject string, body string) error {
	return s.send(s.addr, s.auth, s.from, s.to, buildMessage(s.from, s.to, subject, body))
}

func buildMessage(from string, to []string, subject, body string) []byte {
	subject = strings.NewReplacer("\r", " ", "\n", " ").Replace(subject)
	return []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		from, strings.Join(to, ", "), subject, body))
}
