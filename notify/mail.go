package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strconv"

	"github.com/hidenkeys/innkeeper/models"
	"github.com/sirupsen/logrus"
)

// GuestFinder resolves the recipient of a guest email.
type GuestFinder interface {
	GetGuest(ctx context.Context, id uint) (*models.Guest, error)
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer emails the guest on booking confirmation, cancellation and settled
// payments.
// Other events are ignored. Delivery happens off the request path.
type Mailer struct {
	cfg    SMTPConfig
	guests GuestFinder
	log    *logrus.Logger
	send   SendFunc
	async  bool
}

func NewMailer(cfg SMTPConfig, guests GuestFinder, log *logrus.Logger) *Mailer {
	return &Mailer{cfg: cfg, guests: guests, log: log, send: smtp.SendMail, async: true}
}

var mailTemplates = map[string]struct {
	subject string
	body    *template.Template
}{
	BookingCreated: {
		subject: "Your booking is confirmed",
		body: template.Must(template.New("booking").Parse(`<p>Dear {{.Name}},</p>
<p>Your booking #{{.BookingID}} is confirmed from {{.Data.checkIn}} to {{.Data.checkOut}}.</p>
<p>Total: {{.Data.totalAmount}}</p>`)),
	},
	BookingCancelled: {
		subject: "Your booking was cancelled",
		body: template.Must(template.New("cancel").Parse(`<p>Dear {{.Name}},</p>
<p>Your booking #{{.BookingID}} has been cancelled.{{with .Data.reason}} Reason: {{.}}{{end}}</p>`)),
	},
	PaymentCompleted: {
		subject: "Payment receipt",
		body: template.Must(template.New("receipt").Parse(`<p>Dear {{.Name}},</p>
<p>We received your payment {{.Data.reference}} of {{.Data.amount}} {{.Data.currency}} for booking #{{.BookingID}}.</p>`)),
	},
	PaymentRefunded: {
		subject: "Refund issued",
		body: template.Must(template.New("refund").Parse(`<p>Dear {{.Name}},</p>
<p>A refund {{.Data.reference}} of {{.Data.amount}} was issued for booking #{{.BookingID}}.</p>`)),
	},
}

func (m *Mailer) Notify(ctx context.Context, e Event) error {
	tpl, ok := mailTemplates[e.Name]
	if !ok || e.GuestID == 0 {
		return nil
	}
	g, err := m.guests.GetGuest(ctx, e.GuestID)
	if err != nil {
		return fmt.Errorf("mail recipient: %w", err)
	}
	if g.Email == "" {
		return nil
	}

	var body bytes.Buffer
	err = tpl.body.Execute(&body, map[string]any{
		"Name":      g.FirstName + " " + g.LastName,
		"BookingID": e.BookingID,
		"Data":      e.Data,
	})
	if err != nil {
		return fmt.Errorf("render %s: %w", e.Name, err)
	}

	msg := "From: " + m.cfg.From + "\n" +
		"To: " + g.Email + "\n" +
		"Subject: " + tpl.subject + "\n" +
		"MIME-version: 1.0;\n" +
		"Content-Type: text/html; charset=\"UTF-8\";\n\n" +
		body.String()

	deliver := func() error {
		var auth smtp.Auth
		if m.cfg.Username != "" {
			auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		}
		addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
		return m.send(addr, auth, m.cfg.From, []string{g.Email}, []byte(msg))
	}
	if !m.async {
		return deliver()
	}
	go func() {
		if err := deliver(); err != nil {
			m.log.WithFields(logrus.Fields{"event": e.Name, "to": g.Email}).WithError(err).Warn("email not sent")
		}
	}()
	return nil
}
