package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSMTPMailer(t *testing.T) {
	m := NewSMTPMailer("smtp.example.com", 587, "noreply@example.com", "secret", "Threads")

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := m.SendVerificationCode(context.Background(), "alice@example.com", "123456", 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, "smtp.example.com:587", gotAddr)
	require.Equal(t, "noreply@example.com", gotFrom)
	require.Equal(t, []string{"alice@example.com"}, gotTo)
	require.Contains(t, string(gotMsg), "Subject: Your Threads verification code\r\n")
	require.Contains(t, string(gotMsg), "Your verification code is 123456.")
	require.Contains(t, string(gotMsg), "expires in 5 minutes")
}

func TestSMTPMailerError(t *testing.T) {
	m := NewSMTPMailer("smtp.example.com", 587, "noreply@example.com", "secret", "Threads")
	boom := errors.New("relay refused")
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	err := m.SendVerificationCode(context.Background(), "alice@example.com", "123456", time.Minute)
	require.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, m.SendVerificationCode(ctx, "alice@example.com", "1", time.Minute), context.Canceled)
}

func TestLogMailer(t *testing.T) {
	require.NoError(t, LogMailer{}.SendVerificationCode(context.Background(), "a@b.io", "000000", time.Minute))
}

func TestMaskEmail(t *testing.T) {
	require.Equal(t, "joh***@example.com", MaskEmail("john.doe@example.com"))
	require.Equal(t, "a***@b.io", MaskEmail("a@b.io"))
	require.Equal(t, "", MaskEmail(""))
	require.Equal(t, "***", MaskEmail("no-at-sign"))
}
