package services

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"praxis-billing/config"
	"praxis-billing/models"
	"praxis-billing/utils"

	"github.com/jordan-wright/email"
)

var ErrMailDisabled = errors.New("smtp not configured")

// Mail is one outgoing message; AttachmentPath is optional.
type Mail struct {
	To             string `json:"to"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	AttachmentPath string `json:"attachment_path,omitempty"`
}

// Sender delivers mail. SMTPMailer is the production implementation.
type Sender interface {
	Send(ctx context.Context, m Mail) error
}

// SMTPMailer wraps SMTP configuration for sending invoices with PDF attachments.
type SMTPMailer struct {
	host     string
	user     string
	password string
	from     string
	addr     string
}

func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	from := cfg.SMTPFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     from,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Mail) error {
	if m.host == "" {
		return ErrMailDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("mailer: recipient missing")
	}

	e := email.NewEmail()
	e.From = m.from
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.Text = []byte(msg.Body)

	if msg.AttachmentPath != "" {
		if _, err := e.AttachFile(msg.AttachmentPath); err != nil {
			return fmt.Errorf("mailer: attach PDF: %w", err)
		}
	}

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	if err := e.Send(m.addr, auth); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}

// InvoiceMail composes the patient notification for a rendered invoice.
func InvoiceMail(inv models.Invoice, clinicName, pdfPath string) Mail {
	currency := inv.Currency
	if currency == "" {
		currency = "CHF"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Guten Tag %s\n\n", inv.Patient.FullName())
	fmt.Fprintf(&b, "Im Anhang erhalten Sie die Rechnung %s über %s %s.\n", inv.InvoiceNumber, currency, utils.FormatAmount(inv.Total))
	if inv.InstallmentMode && len(inv.Installments) > 0 {
		fmt.Fprintf(&b, "Der Betrag ist in %d Raten zahlbar, siehe Ratenplan.\n", len(inv.Installments))
	}
	fmt.Fprintf(&b, "\nFreundliche Grüsse\n%s\n", clinicName)

	return Mail{
		To:             inv.Patient.Email,
		Subject:        fmt.Sprintf("Rechnung %s - %s", inv.InvoiceNumber, clinicName),
		Body:           b.String(),
		AttachmentPath: pdfPath,
	}
}
