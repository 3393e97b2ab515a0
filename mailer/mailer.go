package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/miragespace/subpay/notifier"

	"go.uber.org/zap"
)

// Options contains the configuration for the Mailer
type Options struct {
	Logger *zap.Logger

	SMTPAuth smtp.Auth
	// Hostname is the smtp host:port to deliver through
	Hostname string
	From     string
	// Name is shown as the product name in the emails
	Name string
}

// Mailer turns billing events into customer emails. Only event kinds with a
// template produce mail; everything else is skipped silently.
type Mailer struct {
	Options
}

// New returns a new Mailer
func New(option Options) (*Mailer, error) {
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.SMTPAuth == nil {
		return nil, fmt.Errorf("nil SMTPAuth is invalid")
	}
	if option.Hostname == "" {
		return nil, fmt.Errorf("Empty hostname is invalid")
	}
	if option.From == "" {
		return nil, fmt.Errorf("Empty from is invalid")
	}
	if option.Name == "" {
		option.Name = "SubPay"
	}
	return &Mailer{
		Options: option,
	}, nil
}

// Handle delivers the email for one billing event, if the event kind has a
// template
func (m *Mailer) Handle(event notifier.Event) error {
	subject, body := m.compose(event)
	if subject == "" {
		return nil
	}
	if event.UserEmail == "" {
		m.Logger.Warn("Event has no recipient",
			zap.String("Kind", string(event.Kind)),
			zap.String("UserID", event.UserID),
		)
		return nil
	}

	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + event.UserEmail,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(m.Hostname, m.SMTPAuth, m.From, []string{event.UserEmail}, []byte(msg)); err != nil {
		m.Logger.Error("Unable to deliver email",
			zap.String("Kind", string(event.Kind)),
			zap.String("Recipient", event.UserEmail),
			zap.Error(err),
		)
		return err
	}

	m.Logger.Info("Email delivered",
		zap.String("Kind", string(event.Kind)),
		zap.String("Recipient", event.UserEmail),
	)
	return nil
}

func (m *Mailer) compose(event notifier.Event) (subject, body string) {
	p := event.Payload
	switch event.Kind {
	case notifier.KindSubscriptionCreated:
		subject = fmt.Sprintf("Welcome to %s", m.Name)
		body = fmt.Sprintf(
			"Your subscription to the %s plan is now %s.\n\n"+
				"Current period ends on %s.\n\n"+
				"Thank you for subscribing to %s.",
			p["planName"], strings.ToLower(p["status"]), p["endDate"], m.Name)
	case notifier.KindSubscriptionCancelled:
		subject = fmt.Sprintf("Your %s subscription has been cancelled", m.Name)
		body = fmt.Sprintf(
			"Your subscription to the %s plan has been cancelled.\n\n"+
				"We are sorry to see you go. You can subscribe again at any time.",
			p["planName"])
	case notifier.KindInvoiceCreated:
		subject = fmt.Sprintf("Invoice %s from %s", p["invoiceNumber"], m.Name)
		body = fmt.Sprintf(
			"A new invoice has been issued for your %s plan.\n\n"+
				"Invoice number: %s\n"+
				"Amount due: %s %s\n"+
				"Due date: %s",
			p["planName"], p["invoiceNumber"], p["totalAmount"], p["currency"], p["dueDate"])
	case notifier.KindPaymentSucceeded:
		subject = fmt.Sprintf("Payment received, %s", m.Name)
		body = fmt.Sprintf(
			"We received your payment of %s %s for invoice %s.\n\n"+
				"Transaction reference: %s\n\n"+
				"Thank you.",
			p["amount"], p["currency"], p["invoiceNumber"], p["transactionId"])
	}
	return subject, body
}
