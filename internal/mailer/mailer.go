// Package mailer sends plain-text notification mail over SMTP. Delivery is
// best-effort: callers log failures and move on.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/ariefcatur/go-farm-market/internal/events"
)

type Mailer struct {
	Addr string // host:port of the SMTP relay
	From string
}

func (m *Mailer) Send(to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")
	return smtp.SendMail(m.Addr, nil, m.From, []string{to}, []byte(msg))
}

// Compose renders the subject and body for an email event. Kept pure so the
// templates are testable without a relay.
func Compose(recipientName string, p events.EmailPayload) (subject, body string) {
	if recipientName == "" {
		recipientName = "there"
	}
	switch p.Kind {
	case events.EmailKindStatusUpdate:
		subject = fmt.Sprintf("Your order is now %s", p.Status)
		body = fmt.Sprintf(
			"Hello %s,\n\nYour order for %d %s of %s is now %s.\n\nOrder ID: %s\n",
			recipientName, p.Quantity, p.Unit, p.ProduceName, p.Status, p.OrderID)
	default:
		subject = fmt.Sprintf("Order confirmed: %s", p.ProduceName)
		body = fmt.Sprintf(
			"Hello %s,\n\nAn order for %d %s of %s has been placed.\nTotal: %s\n\nOrder ID: %s\n",
			recipientName, p.Quantity, p.Unit, p.ProduceName, p.TotalPrice, p.OrderID)
	}
	return subject, body
}
