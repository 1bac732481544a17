// Package notification turns domain events into outbound messages. It
// subscribes to booking events, schedules sends through the outbox, and
// delivers due sends over WhatsApp and email. Domain modules never talk
// to a gateway directly.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"caddie_backend/internal/bookings"
	"caddie_backend/internal/email"
	"caddie_backend/internal/events"
	"caddie_backend/internal/notification/outbox"
	"caddie_backend/platform/config"
	"caddie_backend/platform/logger"
)

const (
	maxSendAttempts = 5
	retryBaseDelay  = time.Minute
	retryMaxDelay   = 30 * time.Minute

	startTimeLayout = "Monday 2 January at 3:04pm"

	reminderTemplate  = "Reminder: your bay at %s is booked for %s (ref %s). See you there!"
	followUpTemplate  = "Hope you enjoyed your session at %s! Reply here any time to book your next one."
	confirmedTemplate = "Good news! Your booking %s at %s on %s is confirmed."
	declinedTemplate  = "Unfortunately we could not confirm booking %s at %s. Reply here and I'll help you find another slot."
)

// Outbox payload shapes. WhatsApp messages are rendered at enqueue time;
// email rows carry the structured data and render at send time.
type whatsAppOutboxPayload struct {
	Reference string `json:"reference"`
	Phone     string `json:"phone"`
	Message   string `json:"message"`
}

type emailOutboxPayload struct {
	Reference string                    `json:"reference,omitempty"`
	To        string                    `json:"to"`
	Requested *email.BookingRequested   `json:"requested,omitempty"`
	Status    *email.BookingStatusAlert `json:"status,omitempty"`
	Support   *email.SupportHandoff     `json:"support,omitempty"`
}

// Outbox templates.
const (
	templateBookingReminder = "booking_reminder"
	templateBookingFollowUp = "booking_followup"
	templateMemberStatus    = "member_status_update"
	templateStaffRequested  = "staff_booking_requested"
	templateStaffStatus     = "staff_status_alert"
	templateStaffHandoff    = "staff_support_handoff"
)

// WhatsAppSender delivers one text message to a phone number.
type WhatsAppSender interface {
	SendMessage(ctx context.Context, phoneNumber string, message string) error
}

// Module handles booking event subscriptions and outbox delivery.
type Module struct {
	pool     *pgxpool.Pool
	sender   email.Sender
	whatsapp WhatsAppSender
	outbox   *outbox.Repository
	cfg      config.NotificationConfig
	emailCfg config.EmailConfig
	log      *logger.Logger
	now      func() time.Time
}

// New creates the notification module.
func New(pool *pgxpool.Pool, sender email.Sender, cfg config.NotificationConfig, emailCfg config.EmailConfig, log *logger.Logger) *Module {
	return &Module{
		pool:     pool,
		sender:   sender,
		outbox:   outbox.New(pool),
		cfg:      cfg,
		emailCfg: emailCfg,
		log:      log,
		now:      time.Now,
	}
}

// SetWhatsAppSender injects the WhatsApp gateway client.
func (m *Module) SetWhatsAppSender(sender WhatsAppSender) { m.whatsapp = sender }

// SetClock overrides the time source. Intended for tests.
func (m *Module) SetClock(now func() time.Time) { m.now = now }

// RegisterHandlers subscribes to the booking domain events.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.BookingCreated{}.EventName(), m)
	bus.Subscribe(events.BookingStatusChanged{}.EventName(), m)
	bus.Subscribe(events.SupportHandoffRequested{}.EventName(), m)
	bus.Subscribe(events.NotificationDue{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.BookingCreated:
		return m.handleBookingCreated(ctx, e)
	case events.BookingStatusChanged:
		return m.handleBookingStatusChanged(ctx, e)
	case events.SupportHandoffRequested:
		return m.handleSupportHandoff(ctx, e)
	case events.NotificationDue:
		return m.handleNotificationDue(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleBookingCreated(ctx context.Context, e events.BookingCreated) error {
	phone := m.resolveMemberPhone(ctx, e.MemberID)
	now := m.now()
	start := e.StartTime.Format(startTimeLayout)

	if staff := m.emailCfg.GetStaffEmailAddress(); staff != "" {
		payload := emailOutboxPayload{
			Reference: e.Reference,
			To:        staff,
			Requested: &email.BookingRequested{
				Reference:   e.Reference,
				MemberName:  e.MemberName,
				VenueName:   e.VenueName,
				BayLabel:    e.BayLabel,
				StartTime:   start,
				PlayerCount: e.PlayerCount,
			},
		}
		m.enqueue(ctx, outbox.KindEmail, templateStaffRequested, payload, now)
	}

	if phone == "" {
		m.log.Warn("member has no phone; skipping booking messages", "reference", e.Reference)
		return nil
	}

	// Reminders for bookings closer than the offset would fire in the
	// past, so they are simply not scheduled.
	reminderAt := e.StartTime.Add(-m.cfg.GetReminderOffset())
	if reminderAt.After(now) {
		m.enqueue(ctx, outbox.KindWhatsApp, templateBookingReminder, whatsAppOutboxPayload{
			Reference: e.Reference,
			Phone:     phone,
			Message:   fmt.Sprintf(reminderTemplate, e.VenueName, start, e.Reference),
		}, reminderAt)
	}

	m.enqueue(ctx, outbox.KindWhatsApp, templateBookingFollowUp, whatsAppOutboxPayload{
		Reference: e.Reference,
		Phone:     phone,
		Message:   fmt.Sprintf(followUpTemplate, e.VenueName),
	}, e.StartTime.Add(m.cfg.GetFollowUpOffset()))

	return nil
}

func (m *Module) handleBookingStatusChanged(ctx context.Context, e events.BookingStatusChanged) error {
	now := m.now()

	switch e.Next {
	case string(bookings.StatusConfirmed), string(bookings.StatusNotAvailable):
		details := m.resolveBookingDetails(ctx, e.Reference)
		if details == nil || details.Phone == "" {
			return nil
		}
		message := fmt.Sprintf(confirmedTemplate, e.Reference, details.VenueName, details.StartTime.Format(startTimeLayout))
		if e.Next == string(bookings.StatusNotAvailable) {
			message = fmt.Sprintf(declinedTemplate, e.Reference, details.VenueName)
		}
		m.enqueue(ctx, outbox.KindWhatsApp, templateMemberStatus, whatsAppOutboxPayload{
			Reference: e.Reference,
			Phone:     details.Phone,
			Message:   message,
		}, now)
		if e.Next == string(bookings.StatusNotAvailable) {
			if err := m.outbox.CancelForBooking(ctx, e.Reference); err != nil {
				m.log.DatabaseError("cancel outbox for booking", err)
			}
		}

	case string(bookings.StatusCancelled):
		// The member already got the cancellation reply in conversation;
		// only the scheduled sends need withdrawing.
		if err := m.outbox.CancelForBooking(ctx, e.Reference); err != nil {
			m.log.DatabaseError("cancel outbox for booking", err)
		}
		m.enqueueStaffStatusAlert(ctx, e, now)

	case string(bookings.StatusFollowUpRequired):
		m.enqueueStaffStatusAlert(ctx, e, now)
	}

	return nil
}

func (m *Module) enqueueStaffStatusAlert(ctx context.Context, e events.BookingStatusChanged, runAt time.Time) {
	staff := m.emailCfg.GetStaffEmailAddress()
	if staff == "" {
		return
	}

	reason := ""
	if e.Reason != nil {
		reason = *e.Reason
	}
	memberName := ""
	if details := m.resolveBookingDetails(ctx, e.Reference); details != nil {
		memberName = details.MemberName
	}

	m.enqueue(ctx, outbox.KindEmail, templateStaffStatus, emailOutboxPayload{
		Reference: e.Reference,
		To:        staff,
		Status: &email.BookingStatusAlert{
			Reference:  e.Reference,
			MemberName: memberName,
			Previous:   e.Previous,
			Next:       e.Next,
			Reason:     reason,
		},
	}, runAt)
}

// handleSupportHandoff queues the staff email for a confirmed escalation.
// The member already has the in-conversation acknowledgement; this is the
// half that must not evaporate.
func (m *Module) handleSupportHandoff(ctx context.Context, e events.SupportHandoffRequested) error {
	staff := m.emailCfg.GetStaffEmailAddress()
	if staff == "" {
		m.log.Warn("no staff email configured; support handoff not forwarded", "member_id", e.MemberID.String())
		return nil
	}
	m.enqueue(ctx, outbox.KindEmail, templateStaffHandoff, emailOutboxPayload{
		To: staff,
		Support: &email.SupportHandoff{
			MemberName: e.MemberName,
			Phone:      e.Phone,
			Topic:      e.Topic,
		},
	}, m.now())
	return nil
}

func (m *Module) enqueue(ctx context.Context, kind, template string, payload any, runAt time.Time) {
	id, err := m.outbox.Insert(ctx, outbox.InsertParams{
		Kind:     kind,
		Template: template,
		Payload:  payload,
		RunAt:    runAt,
	})
	if err != nil {
		m.log.DatabaseError("enqueue outbox notification", err)
		return
	}
	m.log.Info("notification enqueued", "outbox_id", id.String(), "kind", kind, "template", template, "run_at", runAt)
}

// handleNotificationDue delivers one claimed outbox row. A row that is not
// in the enqueued state was already picked up elsewhere and is skipped.
func (m *Module) handleNotificationDue(ctx context.Context, e events.NotificationDue) error {
	rec, err := m.outbox.GetByID(ctx, e.OutboxID)
	if err != nil {
		return err
	}
	if rec.Status != outbox.StatusEnqueued {
		m.log.Info("outbox record not enqueued; skipping", "outbox_id", rec.ID.String(), "status", string(rec.Status))
		return nil
	}

	if err := m.outbox.MarkProcessing(ctx, rec.ID); err != nil {
		return err
	}
	rec.Attempts++

	if err := m.deliver(ctx, rec); err != nil {
		return m.recordFailure(ctx, rec, err)
	}

	if err := m.outbox.MarkSucceeded(ctx, rec.ID); err != nil {
		return err
	}
	m.log.Info("notification sent", "outbox_id", rec.ID.String(), "kind", rec.Kind, "template", rec.Template)
	return nil
}

func (m *Module) deliver(ctx context.Context, rec outbox.Record) error {
	switch rec.Kind {
	case outbox.KindWhatsApp:
		var payload whatsAppOutboxPayload
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		if m.whatsapp == nil {
			return fmt.Errorf("whatsapp gateway not configured")
		}
		return m.whatsapp.SendMessage(ctx, payload.Phone, payload.Message)

	case outbox.KindEmail:
		var payload emailOutboxPayload
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		switch {
		case payload.Requested != nil:
			return m.sender.SendBookingRequested(ctx, payload.To, *payload.Requested)
		case payload.Status != nil:
			return m.sender.SendBookingStatusAlert(ctx, payload.To, *payload.Status)
		case payload.Support != nil:
			return m.sender.SendSupportHandoff(ctx, payload.To, *payload.Support)
		default:
			return fmt.Errorf("invalid payload: no email content")
		}

	default:
		return fmt.Errorf("unsupported outbox kind %q", rec.Kind)
	}
}

// recordFailure retries with quadratic backoff until the attempts run out,
// then parks the row as failed.
func (m *Module) recordFailure(ctx context.Context, rec outbox.Record, sendErr error) error {
	m.log.Warn("notification send failed",
		"outbox_id", rec.ID.String(),
		"kind", rec.Kind,
		"template", rec.Template,
		"attempt", rec.Attempts,
		"error", sendErr,
	)

	if rec.Attempts >= maxSendAttempts {
		return m.outbox.MarkFailed(ctx, rec.ID, sendErr.Error())
	}

	delay := time.Duration(rec.Attempts*rec.Attempts) * retryBaseDelay
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	msg := sendErr.Error()
	return m.outbox.MarkPending(ctx, rec.ID, m.now().Add(delay), &msg)
}

type bookingDetails struct {
	MemberName string
	Phone      string
	VenueName  string
	StartTime  time.Time
}

func (m *Module) resolveBookingDetails(ctx context.Context, reference string) *bookingDetails {
	var d bookingDetails
	err := m.pool.QueryRow(ctx, `
		SELECT m.display_name, m.phone, v.name, bk.start_time
		FROM bookings bk
		JOIN members m ON m.id = bk.member_id
		JOIN venues v ON v.id = bk.venue_id
		WHERE bk.reference = $1
	`, reference).Scan(&d.MemberName, &d.Phone, &d.VenueName, &d.StartTime)
	if err != nil {
		m.log.DatabaseError("resolve booking details", err)
		return nil
	}
	return &d
}

func (m *Module) resolveMemberPhone(ctx context.Context, memberID uuid.UUID) string {
	var phone string
	if err := m.pool.QueryRow(ctx, `SELECT phone FROM members WHERE id = $1`, memberID).Scan(&phone); err != nil {
		m.log.DatabaseError("resolve member phone", err)
		return ""
	}
	return phone
}
