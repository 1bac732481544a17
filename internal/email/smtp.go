package email

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"caddie_backend/platform/config"
)

// SMTPSender delivers notification emails over a direct SMTP connection
// via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
}

// NewSMTPSender creates an SMTPSender from the email configuration.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat("Caddie", s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

// SendBookingRequested emails staff about a new pending booking.
func (s *SMTPSender) SendBookingRequested(ctx context.Context, toEmail string, data BookingRequested) error {
	content, err := renderEmailTemplate("booking_requested.html", bookingRequestedEmailData{
		baseEmailData: baseEmailData{
			Title:   "New booking request",
			Heading: "New booking request",
		},
		Reference:   data.Reference,
		MemberName:  data.MemberName,
		VenueName:   data.VenueName,
		BayLabel:    data.BayLabel,
		StartTime:   data.StartTime,
		PlayerCount: data.PlayerCount,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectBookingRequestedFmt, data.Reference), content)
}

// SendBookingStatusAlert emails staff about a status transition that needs
// follow-up, such as a member change request.
func (s *SMTPSender) SendBookingStatusAlert(ctx context.Context, toEmail string, data BookingStatusAlert) error {
	content, err := renderEmailTemplate("booking_status.html", bookingStatusEmailData{
		baseEmailData: baseEmailData{
			Title:   "Booking status changed",
			Heading: "Booking status changed",
		},
		Reference:  data.Reference,
		MemberName: data.MemberName,
		Previous:   data.Previous,
		Next:       data.Next,
		Reason:     data.Reason,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectBookingStatusFmt, data.Reference, data.Next), content)
}

// SendSupportHandoff emails staff a member escalation so someone can pick
// up the conversation.
func (s *SMTPSender) SendSupportHandoff(ctx context.Context, toEmail string, data SupportHandoff) error {
	content, err := renderEmailTemplate("support_handoff.html", supportHandoffEmailData{
		baseEmailData: baseEmailData{
			Title:   "Support request",
			Heading: "Support request",
		},
		MemberName: data.MemberName,
		Phone:      data.Phone,
		Topic:      data.Topic,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectSupportHandoffFmt, data.MemberName), content)
}
