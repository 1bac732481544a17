// Package email delivers staff notifications over SMTP.
package email

import (
	"context"

	"caddie_backend/platform/config"
)

const (
	subjectBookingRequestedFmt = "New booking request %s"
	subjectBookingStatusFmt    = "Booking %s: %s"
	subjectSupportHandoffFmt   = "Support request from %s"
)

// BookingRequested describes a freshly submitted booking for the staff
// notification email.
type BookingRequested struct {
	Reference   string
	MemberName  string
	VenueName   string
	BayLabel    string
	StartTime   string
	PlayerCount int
}

// BookingStatusAlert describes a status transition for the staff alert.
type BookingStatusAlert struct {
	Reference  string
	MemberName string
	Previous   string
	Next       string
	Reason     string
}

// SupportHandoff describes a member escalation for the staff inbox.
type SupportHandoff struct {
	MemberName string
	Phone      string
	Topic      string
}

// Sender delivers staff notification emails.
type Sender interface {
	SendBookingRequested(ctx context.Context, toEmail string, data BookingRequested) error
	SendBookingStatusAlert(ctx context.Context, toEmail string, data BookingStatusAlert) error
	SendSupportHandoff(ctx context.Context, toEmail string, data SupportHandoff) error
}

// NewSender builds the configured sender. When email is disabled a no-op
// sender is returned so notification handlers need no special casing.
func NewSender(cfg config.EmailConfig) Sender {
	if !cfg.IsEmailEnabled() {
		return noopSender{}
	}
	return NewSMTPSender(cfg)
}

type noopSender struct{}

func (noopSender) SendBookingRequested(context.Context, string, BookingRequested) error {
	return nil
}

func (noopSender) SendBookingStatusAlert(context.Context, string, BookingStatusAlert) error {
	return nil
}

func (noopSender) SendSupportHandoff(context.Context, string, SupportHandoff) error {
	return nil
}
