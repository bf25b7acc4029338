package sender

import (
	"context"
	"errors"
	"net"
	"net/textproto"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/herald/internal/config"
	"github.com/jwalitptl/herald/internal/model"
)

// EmailSender delivers over SMTP. SMTP 5xx replies (rejected recipient,
// bad mailbox) are permanent; dial failures and timeouts are transient.
type EmailSender struct {
	cfg    *config.SenderConfig
	dialer *gomail.Dialer
}

func NewEmailSender(cfg *config.SenderConfig) *EmailSender {
	return &EmailSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
	}
}

func (s *EmailSender) Deliver(ctx context.Context, notification *model.Notification) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.cfg.SMTPFrom)
	msg.SetHeader("To", recipientAddress(notification.UserID))
	msg.SetHeader("Subject", subjectFor(notification))
	msg.SetBody("text/plain", notification.Message)

	// gomail has no context support, so the dial-and-send runs in its
	// own goroutine and the attempt deadline is enforced here.
	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(msg)
	}()

	select {
	case <-ctx.Done():
		return Transient("smtp send timed out", ctx.Err())
	case err := <-done:
		if err == nil {
			return nil
		}
		return classifySMTPError(err)
	}
}

func classifySMTPError(err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		if protoErr.Code >= 500 {
			return Permanent("recipient rejected by server", err)
		}
		return Transient("server busy", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient("smtp connection timed out", err)
	}

	return Transient("smtp delivery failed", err)
}

func subjectFor(notification *model.Notification) string {
	if notification.Title.Valid && notification.Title.String != "" {
		return notification.Title.String
	}
	return "Notification"
}

// recipientAddress resolves the delivery address for a user. Address
// book lookup lives with the transport, not the queue; until a profile
// store exists the user id doubles as the local part.
func recipientAddress(userID uuid.UUID) string {
	return userID.String() + "@users.herald.local"
}
