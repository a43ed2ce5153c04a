package mail

import (
	"fmt"

	"github.com/keighl/postmark"
	"github.com/rs/zerolog/log"
	"github.com/sunvolt/solarshop/internal/config"
	"github.com/sunvolt/solarshop/internal/order"
)

// Mailer sends transactional mail through Postmark. With no API token
// configured it degrades to a logged no-op so local runs work without
// credentials.
type Mailer struct {
	client *postmark.Client
	sender string
}

func NewMailer(cfg config.MailConfig) *Mailer {
	m := &Mailer{sender: cfg.Sender}
	if cfg.PostmarkToken == "" {
		log.Warn().Msg("mail: no postmark token configured, outgoing mail disabled")
		return m
	}
	m.client = postmark.NewClient(cfg.PostmarkToken, "")
	return m
}

func (m *Mailer) SendOrderConfirmation(recipient string, o *order.Order) error {
	if m.client == nil {
		log.Info().Str("recipient", recipient).Stringer("order_id", o.ID).Msg("mail: skipping order confirmation, mail disabled")
		return nil
	}

	subject := "Your order confirmation"
	htmlBody := fmt.Sprintf(
		"<strong>Thank you for your purchase!</strong><br><br>Your order (ID: %s) has been paid successfully.<br>Total: <strong>%s %s</strong><br><br>We will notify you when it ships.",
		o.ID,
		formatAmount(o.Amount),
		o.Currency,
	)

	_, err := m.client.SendEmail(postmark.Email{
		From:     m.sender,
		To:       recipient,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: fmt.Sprintf("Thank you for your purchase! Order %s has been paid. Total: %s %s.", o.ID, formatAmount(o.Amount), o.Currency),
	})
	if err != nil {
		return fmt.Errorf("mail: failed to send order confirmation: %w", err)
	}

	return nil
}

// formatAmount renders minor currency units as a decimal string.
func formatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
