package service

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/iliyamo/studio-booking/internal/config"
	"github.com/iliyamo/studio-booking/internal/queue"
)

//go:embed templates/reservation_email.html
var templateFS embed.FS

var reservationEmail = template.Must(template.ParseFS(templateFS, "templates/reservation_email.html"))

const emailTimeLayout = "Mon 02 Jan 2006 15:04 MST"

// Message is a rendered email.
type Message struct {
	ToName  string
	ToEmail string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers a rendered message.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// SendGridMailer sends through the SendGrid v3 API.
type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewSendGridMailer returns nil when cfg has no API key.
func NewSendGridMailer(cfg config.MailConfig) *SendGridMailer {
	if !cfg.Enabled() {
		return nil
	}
	return &SendGridMailer{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.FromEmail),
	}
}

// Send implements Mailer.
func (s *SendGridMailer) Send(ctx context.Context, m Message) error {
	msg := mail.NewSingleEmail(s.from, m.Subject, mail.NewEmail(m.ToName, m.ToEmail), m.Text, m.HTML)
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

type emailData struct {
	Heading       string
	Lead          string
	UserName      string
	Title         string
	Location      string
	Starts        string
	Ends          string
	ReservationID string
	Year          int
}

// BuildEmail renders the message sent for ev.  Times are shown in loc.
// Kinds that do not notify the booker return ok=false.
func BuildEmail(ev queue.ReservationChanged, loc *time.Location) (msg Message, ok bool, err error) {
	if loc == nil {
		loc = time.UTC
	}
	d := emailData{
		UserName:      ev.UserName,
		Title:         ev.Title,
		Location:      ev.Location,
		Starts:        ev.StartsAt.In(loc).Format(emailTimeLayout),
		Ends:          ev.EndsAt.In(loc).Format(emailTimeLayout),
		ReservationID: ev.ReservationID,
		Year:          ev.OccurredAt.In(loc).Year(),
	}
	switch ev.Kind {
	case queue.ReservationCreated:
		d.Heading = "Your booking is confirmed"
		d.Lead = "Thanks for booking with us. Here are the details."
		msg.Subject = "Booking confirmed: " + ev.Title
	case queue.ReservationCancelled:
		d.Heading = "Your booking was cancelled"
		d.Lead = "The following booking has been cancelled."
		msg.Subject = "Booking cancelled: " + ev.Title
	case queue.ReservationReminder:
		d.Heading = "Upcoming booking"
		d.Lead = "This is a reminder of your upcoming booking."
		msg.Subject = "Reminder: " + ev.Title + " on " + ev.StartsAt.In(loc).Format("Mon 02 Jan 15:04")
	default:
		return Message{}, false, nil
	}

	var html bytes.Buffer
	if err := reservationEmail.Execute(&html, d); err != nil {
		return Message{}, false, fmt.Errorf("render email: %w", err)
	}
	msg.ToName = ev.UserName
	msg.ToEmail = ev.UserEmail
	msg.HTML = html.String()
	msg.Text = fmt.Sprintf("Hello %s,\n\n%s\n\nWhat: %s\n", d.UserName, d.Lead, d.Title)
	if d.Location != "" {
		msg.Text += "Where: " + d.Location + "\n"
	}
	msg.Text += fmt.Sprintf("Starts: %s\nEnds: %s\nReference: %s\n", d.Starts, d.Ends, d.ReservationID)
	return msg, true, nil
}

// Notifier emails bookers when their reservations change.  Delivery is
// asynchronous and never blocks the publisher.  Events that arrived from
// another instance are ignored since the originating instance mails them.
type Notifier struct {
	mailer  Mailer
	loc     *time.Location
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewNotifier returns a notifier.  A nil mailer turns Handle into a no-op.
func NewNotifier(mailer Mailer, loc *time.Location, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{mailer: mailer, loc: loc, logger: logger, timeout: 15 * time.Second}
}

// Handle is a queue.Handler.
func (n *Notifier) Handle(ctx context.Context, ev queue.ReservationChanged) {
	if n.mailer == nil || ev.Remote || ev.UserEmail == "" {
		return
	}
	msg, ok, err := BuildEmail(ev, n.loc)
	if err != nil {
		n.logger.Error("build email failed", zap.String("reservation_id", ev.ReservationID), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()
		if err := n.mailer.Send(sendCtx, msg); err != nil {
			n.logger.Warn("email delivery failed",
				zap.String("reservation_id", ev.ReservationID),
				zap.String("kind", string(ev.Kind)),
				zap.Error(err))
			return
		}
		n.logger.Info("email sent",
			zap.String("reservation_id", ev.ReservationID),
			zap.String("kind", string(ev.Kind)))
	}()
}

// Wait blocks until in-flight sends finish.
func (n *Notifier) Wait() { n.wg.Wait() }
