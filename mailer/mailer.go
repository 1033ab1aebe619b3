// Package mailer delivers verification codes by email.
package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Mailer sends a verification code to an address.
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, code string, ttl time.Duration) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends plain-text mail through an authenticated SMTP relay.
type SMTPMailer struct {
	host     string
	port     int
	account  string
	password string
	appName  string
	send     sendFunc
}

func NewSMTPMailer(host string, port int, account, password, appName string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		account:  account,
		password: password,
		appName:  appName,
		send:     smtp.SendMail,
	}
}

func (m *SMTPMailer) SendVerificationCode(ctx context.Context, to, code string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	auth := smtp.PlainAuth("", m.account, m.password, m.host)
	msg := verificationMessage(m.appName, m.account, to, code, ttl)

	if err := m.send(addr, auth, m.account, []string{to}, msg); err != nil {
		return fmt.Errorf("[SendVerificationCode] smtp %s: %w", addr, err)
	}
	log.Info().Str("to", MaskEmail(to)).Msg("verification code sent")
	return nil
}

// LogMailer writes the code to the log instead of sending it. Meant for DEV.
type LogMailer struct{}

func (LogMailer) SendVerificationCode(ctx context.Context, to, code string, ttl time.Duration) error {
	log.Info().
		Str("to", MaskEmail(to)).
		Str("code", code).
		Dur("ttl", ttl).
		Msg("verification code (log mailer)")
	return nil
}

func verificationMessage(appName, from, to, code string, ttl time.Duration) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", appName, from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: Your %s verification code\r\n", appName)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Your verification code is %s.\r\n", code)
	fmt.Fprintf(&b, "It expires in %d minutes.\r\n", int(ttl.Minutes()))
	return []byte(b.String())
}

var emailRegex = regexp.MustCompile(`^([^@]{1,3})[^@]*(@.+)$`)

// MaskEmail keeps the first three characters and the domain.
// Example: john.doe@example.com -> joh***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	if m := emailRegex.FindStringSubmatch(email); len(m) == 3 {
		return m[1] + "***" + m[2]
	}
	return "***"
}
