package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent  []*gomail.Message
	err   error
	delay time.Duration
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	time.Sleep(d.delay)
	d.sent = append(d.sent, m...)
	return d.err
}

func newTestSender(d *fakeDialer) *GomailSender {
	s := NewGomailSender(SMTPConfig{Host: "smtp.example.com", Port: 587, FromEmail: "billing@example.com", FromName: "MovieStream"})
	s.dialer = d
	return s
}

func TestGomailSender_SendReceipt(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSender(d)
	until := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	err := s.SendReceipt(context.Background(), Receipt{
		To:         "user@example.com",
		Name:       "Dara",
		PaymentRef: "TXN-1",
		Kind:       "subscription",
		Item:       "Monthly plan",
		Amount:     decimal.NewFromInt(5),
		Currency:   "USD",
		PaidAt:     time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		ValidUntil: &until,
	})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	m := d.sent[0]
	assert.Equal(t, []string{"user@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Your subscription receipt"}, m.GetHeader("Subject"))
}

func TestGomailSender_Errors(t *testing.T) {
	s := newTestSender(&fakeDialer{err: errors.New("connection refused")})
	err := s.Send(context.Background(), &Email{To: []string{"a@example.com"}, Body: "hi"})
	assert.ErrorContains(t, err, "connection refused")

	err = s.Send(context.Background(), &Email{Body: "hi"})
	assert.Error(t, err)

	s = NewGomailSender(SMTPConfig{})
	assert.Error(t, s.Validate())
}

func TestGomailSender_Timeout(t *testing.T) {
	s := newTestSender(&fakeDialer{delay: 200 * time.Millisecond})
	s.config.Timeout = 10 * time.Millisecond

	err := s.Send(context.Background(), &Email{To: []string{"a@example.com"}, Body: "hi"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTemplateManager_Receipt(t *testing.T) {
	html, err := NewTemplateManager().Render(receiptTemplate, receiptData(Receipt{
		Amount:     decimal.RequireFromString("1"),
		Currency:   "USD",
		Item:       "Movie <Night>",
		PaymentRef: "TXN-2",
	}))
	require.NoError(t, err)
	assert.Contains(t, html, "1.00 USD")
	assert.Contains(t, html, "Movie &lt;Night&gt;")
	assert.NotContains(t, html, "Valid until")

	_, err = NewTemplateManager().Render("missing", nil)
	assert.Error(t, err)
}

func TestMockSender(t *testing.T) {
	m := NewMockSender()
	require.NoError(t, m.SendReceipt(context.Background(), Receipt{To: "a@example.com"}))
	assert.Equal(t, 1, m.ReceiptCount())

	m.Err = errors.New("down")
	assert.Error(t, m.SendReceipt(context.Background(), Receipt{}))
}
