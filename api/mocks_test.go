package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kickzcaviar/seller-registration/onboarding"
)

var noopLogger = slog.New(slog.DiscardHandler)

var _ onboarding.Notifier = &mockNotifier{}

type mockNotifier struct {
	NotifySellerFunc func(ctx context.Context, userID string, message string) error

	mu   sync.Mutex
	sent map[string][]string
}

func (m *mockNotifier) NotifySeller(ctx context.Context, userID string, message string) error {
	if m.NotifySellerFunc != nil {
		return m.NotifySellerFunc(ctx, userID, message)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent == nil {
		m.sent = map[string][]string{}
	}
	m.sent[userID] = append(m.sent[userID], message)
	return nil
}

var _ onboarding.UsernameLookup = &mockUsernameLookup{}

type mockUsernameLookup struct{}

func (m *mockUsernameLookup) Username(ctx context.Context, userID string) (string, error) {
	if userID == "missing" {
		return "", errors.New("unknown user")
	}
	return "jan", nil
}
