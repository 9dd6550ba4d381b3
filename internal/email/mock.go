package email

import (
	"context"
	"sync"

	"moviestream_backend/internal/logger"
)

// MockSender ничего не отправляет, только запоминает письма.
// Используется в разработке и тестах.
type MockSender struct {
	mu       sync.Mutex
	Sent     []*Email
	Receipts []Receipt
	Err      error
}

func NewMockSender() *MockSender {
	return &MockSender{}
}

func (m *MockSender) Send(ctx context.Context, email *Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, email)
	logger.CtxDebug(ctx, "Mock email sent", "to", email.To, "subject", email.Subject)
	return nil
}

func (m *MockSender) SendReceipt(ctx context.Context, r Receipt) error {
	m.mu.Lock()
	if m.Err != nil {
		m.mu.Unlock()
		return m.Err
	}
	m.Receipts = append(m.Receipts, r)
	m.mu.Unlock()
	return nil
}

// ReceiptCount - потокобезопасное число квитанций.
func (m *MockSender) ReceiptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Receipts)
}
