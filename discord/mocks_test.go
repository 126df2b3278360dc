package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/kickzcaviar/seller-registration/onboarding"
)

var noopLogger = slog.New(slog.DiscardHandler)

var _ Session = &mockSession{}

type mockSession struct {
	InteractionRespondFunc       func(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse) error
	ApplicationCommandCreateFunc func(appID string, guildID string, cmd *discordgo.ApplicationCommand) (*discordgo.ApplicationCommand, error)

	mu        sync.Mutex
	responses []*discordgo.InteractionResponse
	edits     []*discordgo.WebhookEdit
	commands  []string
}

func (m *mockSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	m.mu.Lock()
	m.responses = append(m.responses, resp)
	m.mu.Unlock()

	if m.InteractionRespondFunc != nil {
		return m.InteractionRespondFunc(interaction, resp)
	}
	return nil
}

func (m *mockSession) InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, newresp)
	return &discordgo.Message{}, nil
}

func (m *mockSession) ApplicationCommandCreate(appID string, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error) {
	m.mu.Lock()
	m.commands = append(m.commands, fmt.Sprintf("%s/%s/%s", appID, guildID, cmd.Name))
	m.mu.Unlock()

	if m.ApplicationCommandCreateFunc != nil {
		return m.ApplicationCommandCreateFunc(appID, guildID, cmd)
	}
	return cmd, nil
}

func (m *mockSession) lastResponse() *discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 {
		return nil
	}
	return m.responses[len(m.responses)-1]
}

func (m *mockSession) lastEdit() *discordgo.WebhookEdit {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.edits) == 0 {
		return nil
	}
	return m.edits[len(m.edits)-1]
}

var _ Flow = &mockFlow{}

type mockFlow struct {
	BeginFunc           func(ctx context.Context, user onboarding.UserIdentity) (onboarding.Outcome, error)
	SelectCountryFunc   func(ctx context.Context, user onboarding.UserIdentity, value string) (onboarding.Outcome, error)
	ConsentFunc         func(ctx context.Context, user onboarding.UserIdentity) (onboarding.Outcome, error)
	SubmitContactFunc   func(ctx context.Context, user onboarding.UserIdentity, contact onboarding.ContactInfo) (onboarding.Outcome, error)
	OpenAddressFormFunc func(ctx context.Context, user onboarding.UserIdentity) (onboarding.Outcome, error)
	SubmitAddressFunc   func(ctx context.Context, user onboarding.UserIdentity, address onboarding.AddressInfo) (onboarding.Outcome, error)
	CancelFunc          func(ctx context.Context, user onboarding.UserIdentity) (onboarding.Outcome, error)
}

func (m *mockFlow) Begin(ctx context.Context, user onboarding.UserIdentity) (onboarding.Outcome, error) {
	return m.BeginFunc(ctx, user)
}

func (m *mockFlow) SelectCountry(ctx context.Context, user onboarding.UserIdentity, value string) (onboarding.Outcome, error) {
	return m.SelectCountryFunc(ctx, user, value)
}

func (m *mockFlow) Consent(ctx context.Context, user onboarding.UserIdentity) (onboarding.Outcome, error) {
	return m.ConsentFunc(ctx, user)
}

func (m *mockFlow) SubmitContact(ctx context.Context, user onboarding.UserIdentity, contact onboarding.ContactInfo) (onboarding.Outcome, error) {
	return m.SubmitContactFunc(ctx, user, contact)
}

func (m *mockFlow) OpenAddressForm(ctx context.Context, user onboarding.UserIdentity) (onboarding.Outcome, error) {
	return m.OpenAddressFormFunc(ctx, user)
}

func (m *mockFlow) SubmitAddress(ctx context.Context, user onboarding.UserIdentity, address onboarding.AddressInfo) (onboarding.Outcome, error) {
	return m.SubmitAddressFunc(ctx, user, address)
}

func (m *mockFlow) Cancel(ctx context.Context, user onboarding.UserIdentity) (onboarding.Outcome, error) {
	return m.CancelFunc(ctx, user)
}

var _ onboarding.Repository = &memoryRepository{}

type memoryRepository struct {
	mu      sync.Mutex
	sellers map[string]onboarding.Seller
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{sellers: map[string]onboarding.Seller{}}
}

func (m *memoryRepository) GetSellerByDiscordID(ctx context.Context, discordID string) (onboarding.Seller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sellers[discordID]
	if !ok {
		return onboarding.Seller{}, onboarding.NewSellerDoesNotExistError("not found", nil)
	}
	return s, nil
}

func (m *memoryRepository) FindSellerByContact(ctx context.Context, candidates []string) (onboarding.Seller, error) {
	return onboarding.Seller{}, onboarding.NewSellerDoesNotExistError("not found", nil)
}

func (m *memoryRepository) CreateSeller(ctx context.Context, seller onboarding.Seller) (onboarding.Seller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sellers[seller.DiscordID]; ok {
		return onboarding.Seller{}, onboarding.NewSellerAlreadyExistsError("exists", nil)
	}
	seller.SellerNumber = len(m.sellers) + 1
	seller.SellerID = fmt.Sprintf("S-%d", seller.SellerNumber)
	m.sellers[seller.DiscordID] = seller
	return seller, nil
}

var _ DirectMessenger = &mockMessenger{}

type mockMessenger struct {
	UserChannelCreateFunc func(recipientID string) (*discordgo.Channel, error)

	mu       sync.Mutex
	messages map[string][]string
}

func (m *mockMessenger) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if m.UserChannelCreateFunc != nil {
		return m.UserChannelCreateFunc(recipientID)
	}
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (m *mockMessenger) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.messages == nil {
		m.messages = map[string][]string{}
	}
	m.messages[channelID] = append(m.messages[channelID], content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func (m *mockMessenger) User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error) {
	if userID == "unknown" {
		return nil, errors.New("HTTP 404 Not Found")
	}
	return &discordgo.User{ID: userID, Username: "user" + userID}, nil
}
