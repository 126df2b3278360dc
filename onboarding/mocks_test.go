package onboarding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

var noopLogger = slog.New(slog.DiscardHandler)

var _ Repository = &mockRepository{}

// mockRepository behaves like a store with a uniqueness constraint on the Discord ID.
// Any XxxFunc that is set replaces the in-memory behaviour for that call.
type mockRepository struct {
	GetSellerByDiscordIDFunc func(ctx context.Context, discordID string) (Seller, error)
	FindSellerByContactFunc  func(ctx context.Context, candidates []string) (Seller, error)
	CreateSellerFunc         func(ctx context.Context, seller Seller) (Seller, error)

	mu          sync.Mutex
	sellers     []Seller
	seq         int
	createCalls int
}

func (m *mockRepository) GetSellerByDiscordID(ctx context.Context, discordID string) (Seller, error) {
	if m.GetSellerByDiscordIDFunc != nil {
		return m.GetSellerByDiscordIDFunc(ctx, discordID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sellers {
		if s.DiscordID == discordID {
			return s, nil
		}
	}
	return Seller{}, NewSellerDoesNotExistError(fmt.Sprintf("Seller with Discord ID %q not found", discordID), nil)
}

func (m *mockRepository) FindSellerByContact(ctx context.Context, candidates []string) (Seller, error) {
	if m.FindSellerByContactFunc != nil {
		return m.FindSellerByContactFunc(ctx, candidates)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sellers {
		for _, c := range candidates {
			if strings.Contains(s.DiscordHandle, c) {
				return s, nil
			}
		}
	}
	return Seller{}, NewSellerDoesNotExistError("No seller matched the contact candidates", nil)
}

func (m *mockRepository) CreateSeller(ctx context.Context, seller Seller) (Seller, error) {
	m.mu.Lock()
	m.createCalls++
	m.mu.Unlock()

	if m.CreateSellerFunc != nil {
		return m.CreateSellerFunc(ctx, seller)
	}
	return m.insert(seller)
}

func (m *mockRepository) insert(seller Seller) (Seller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sellers {
		if s.DiscordID != "" && s.DiscordID == seller.DiscordID {
			return Seller{}, NewSellerAlreadyExistsError(fmt.Sprintf("Seller with Discord ID %q already exists", seller.DiscordID), nil)
		}
	}
	m.seq++
	seller.SellerNumber = 100 + m.seq
	seller.SellerID = fmt.Sprintf("S-%d", seller.SellerNumber)
	m.sellers = append(m.sellers, seller)
	return seller, nil
}

func (m *mockRepository) seed(t *testing.T, seller Seller) Seller {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sellers = append(m.sellers, seller)
	return seller
}

func (m *mockRepository) all() []Seller {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Seller, len(m.sellers))
	copy(out, m.sellers)
	return out
}

func (m *mockRepository) creates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

type sentMessage struct {
	UserID  string
	Message string
}

type mockNotifier struct {
	NotifySellerFunc func(ctx context.Context, userID string, message string) error

	mu   sync.Mutex
	sent []sentMessage
}

func (m *mockNotifier) NotifySeller(ctx context.Context, userID string, message string) error {
	m.mu.Lock()
	m.sent = append(m.sent, sentMessage{UserID: userID, Message: message})
	m.mu.Unlock()

	if m.NotifySellerFunc != nil {
		return m.NotifySellerFunc(ctx, userID, message)
	}
	return nil
}

func (m *mockNotifier) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

type mockForwarder struct {
	ForwardSellerFunc func(ctx context.Context, seller Seller) error

	mu        sync.Mutex
	forwarded []Seller
}

func (m *mockForwarder) ForwardSeller(ctx context.Context, seller Seller) error {
	m.mu.Lock()
	m.forwarded = append(m.forwarded, seller)
	m.mu.Unlock()

	if m.ForwardSellerFunc != nil {
		return m.ForwardSellerFunc(ctx, seller)
	}
	return nil
}

func (m *mockForwarder) sellers() []Seller {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Seller, len(m.forwarded))
	copy(out, m.forwarded)
	return out
}

type mockUsernameLookup struct {
	UsernameFunc func(ctx context.Context, userID string) (string, error)
}

func (m *mockUsernameLookup) Username(ctx context.Context, userID string) (string, error) {
	return m.UsernameFunc(ctx, userID)
}
