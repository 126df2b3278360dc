package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/kickzcaviar/seller-registration/onboarding"
)

// DirectMessenger is the subset of *discordgo.Session used to DM users.
type DirectMessenger interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
}

var _ DirectMessenger = &discordgo.Session{}

var (
	_ onboarding.Notifier       = &DMNotifier{}
	_ onboarding.UsernameLookup = &DMNotifier{}
)

type DMNotifier struct {
	session DirectMessenger
}

func NewDMNotifier(session DirectMessenger) *DMNotifier {
	return &DMNotifier{session: session}
}

func (n *DMNotifier) NotifySeller(ctx context.Context, userID string, message string) error {
	channel, err := n.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to open DM channel: %w", err)
	}

	_, err = n.session.ChannelMessageSend(channel.ID, message, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send DM: %w", err)
	}
	return nil
}

func (n *DMNotifier) Username(ctx context.Context, userID string) (string, error) {
	user, err := n.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to fetch user: %w", err)
	}
	return user.Username, nil
}
