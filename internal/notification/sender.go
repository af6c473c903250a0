// Package notification delivers sales desk alerts and lead follow-ups in
// reaction to lead and callback events.
package notification

import (
	"context"
	"errors"
	"html"
	"strings"

	"voice_sales_backend/internal/email"
	"voice_sales_backend/internal/whatsapp"
)

// ErrChannelUnavailable is returned when no configured channel can reach a recipient.
var ErrChannelUnavailable = errors.New("no notification channel for recipient")

// Payload is one message. Channels that cannot render HTML use Text.
type Payload struct {
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a payload and returns the channel's delivery id.
type Sender interface {
	Send(ctx context.Context, recipient string, payload Payload) (string, error)
}

// WhatsAppSender sends the text body through the WhatsApp gateway.
type WhatsAppSender struct {
	client *whatsapp.Client
}

func NewWhatsAppSender(client *whatsapp.Client) *WhatsAppSender {
	return &WhatsAppSender{client: client}
}

func (s *WhatsAppSender) Send(ctx context.Context, recipient string, payload Payload) (string, error) {
	return s.client.SendMessage(ctx, recipient, payload.Text)
}

// EmailSender sends the HTML body over SMTP, falling back to escaped text.
type EmailSender struct {
	smtp *email.SMTPSender
}

func NewEmailSender(smtp *email.SMTPSender) *EmailSender {
	return &EmailSender{smtp: smtp}
}

func (s *EmailSender) Send(ctx context.Context, recipient string, payload Payload) (string, error) {
	body := payload.HTML
	if body == "" {
		body = "<p>" + strings.ReplaceAll(html.EscapeString(payload.Text), "\n", "<br>") + "</p>"
	}
	return s.smtp.Send(ctx, recipient, payload.Subject, body)
}

// Router picks the channel from the recipient: addresses containing '@' go
// by email, everything else is treated as a phone number.
type Router struct {
	whatsapp Sender
	email    Sender
}

// NewRouter accepts nil for channels that are not configured.
func NewRouter(whatsapp, email Sender) *Router {
	return &Router{whatsapp: whatsapp, email: email}
}

func (r *Router) Send(ctx context.Context, recipient string, payload Payload) (string, error) {
	recipient = strings.TrimSpace(recipient)
	target := r.whatsapp
	if strings.Contains(recipient, "@") {
		target = r.email
	}
	if recipient == "" || target == nil {
		return "", ErrChannelUnavailable
	}
	return target.Send(ctx, recipient, payload)
}
