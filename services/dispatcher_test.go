package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"praxis-billing/config"
	"praxis-billing/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	mu   sync.Mutex
	sent []Mail
	err  error
}

func (s *stubSender) Send(_ context.Context, m Mail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, m)
	return nil
}

func TestDispatcher_SendsInlineWithoutRedis(t *testing.T) {
	sender := &stubSender{}
	d := NewDispatcher(nil, sender)
	var stamped []uint
	d.AfterSend = func(_ context.Context, job EmailJob) error {
		stamped = append(stamped, job.InvoiceID)
		return nil
	}

	require.False(t, d.Async())
	err := d.EnqueueEmail(context.Background(), EmailJob{
		Schema: "praxis_muster", InvoiceID: 7,
		Mail: Mail{To: "anna@example.ch", Subject: "Rechnung"},
	})

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "anna@example.ch", sender.sent[0].To)
	assert.Equal(t, []uint{7}, stamped)
}

func TestDispatcher_InlineSendFailure(t *testing.T) {
	boom := errors.New("smtp down")
	d := NewDispatcher(nil, &stubSender{err: boom})
	called := false
	d.AfterSend = func(context.Context, EmailJob) error { called = true; return nil }

	err := d.EnqueueEmail(context.Background(), EmailJob{Mail: Mail{To: "x@example.ch"}})
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}

func TestDispatcher_Process(t *testing.T) {
	payload, err := json.Marshal(EmailJob{Schema: "s", InvoiceID: 3, Mail: Mail{To: "p@example.ch"}})
	require.NoError(t, err)
	raw, err := json.Marshal(Job{Type: "invoice_email", Payload: payload})
	require.NoError(t, err)

	sender := &stubSender{}
	d := NewDispatcher(nil, sender)
	require.NoError(t, d.process(context.Background(), QueueInvoiceEmail, string(raw)))
	require.Len(t, sender.sent, 1)

	assert.Error(t, d.process(context.Background(), QueueInvoiceEmail, "{not json"))

	other, _ := json.Marshal(Job{Type: "sms", Payload: payload})
	assert.ErrorContains(t, d.process(context.Background(), QueueInvoiceEmail, string(other)), "unknown job type")
}

func TestSMTPMailer_Disabled(t *testing.T) {
	m := NewSMTPMailer(&config.Config{})
	assert.ErrorIs(t, m.Send(context.Background(), Mail{To: "a@b.ch"}), ErrMailDisabled)
}

func TestInvoiceMail(t *testing.T) {
	inv := models.Invoice{
		InvoiceNumber:   "RE-1",
		Total:           1234.5,
		Patient:         models.Patient{FirstName: "Anna", LastName: "Muster", Email: "anna@example.ch"},
		InstallmentMode: true,
		Installments:    []models.Installment{{Position: 1}, {Position: 2}},
	}

	m := InvoiceMail(inv, "Praxis Muster", "/tmp/invoice_RE-1.pdf")

	assert.Equal(t, "anna@example.ch", m.To)
	assert.Equal(t, "Rechnung RE-1 - Praxis Muster", m.Subject)
	assert.Contains(t, m.Body, "CHF 1'234.50")
	assert.Contains(t, m.Body, "2 Raten")
	assert.Equal(t, "/tmp/invoice_RE-1.pdf", m.AttachmentPath)
}
