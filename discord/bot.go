// Package discord connects the registration flow to Discord interactions.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/kickzcaviar/seller-registration/onboarding"
)

// Flow is the part of the registration state machine the bot drives.
type Flow interface {
	Begin(ctx context.Context, user onboarding.UserIdentity) (onboarding.Outcome, error)
	SelectCountry(ctx context.Context, user onboarding.UserIdentity, value string) (onboarding.Outcome, error)
	Consent(ctx context.Context, user onboarding.UserIdentity) (onboarding.Outcome, error)
	SubmitContact(ctx context.Context, user onboarding.UserIdentity, contact onboarding.ContactInfo) (onboarding.Outcome, error)
	OpenAddressForm(ctx context.Context, user onboarding.UserIdentity) (onboarding.Outcome, error)
	SubmitAddress(ctx context.Context, user onboarding.UserIdentity, address onboarding.AddressInfo) (onboarding.Outcome, error)
	Cancel(ctx context.Context, user onboarding.UserIdentity) (onboarding.Outcome, error)
}

// Session is the subset of *discordgo.Session the bot uses.
type Session interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ApplicationCommandCreate(appID string, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
}

var _ Session = &discordgo.Session{}

const defaultInteractionTimeout = 15 * time.Second

type Bot struct {
	session Session
	flow    Flow
	appID   string
	guildID string
	logger  *slog.Logger
	timeout time.Duration
}

func NewBot(session Session, flow Flow, appID string, guildID string, logger *slog.Logger) *Bot {
	return &Bot{
		session: session,
		flow:    flow,
		appID:   appID,
		guildID: guildID,
		logger:  logger,
		timeout: defaultInteractionTimeout,
	}
}

// RegisterCommands creates the setup command, scoped to the guild when one is configured.
func (b *Bot) RegisterCommands(ctx context.Context) error {
	_, err := b.session.ApplicationCommandCreate(b.appID, b.guildID, setupCommand, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to register /%s: %w", setupCommandName, err)
	}

	b.logger.Info("registered slash command", slog.String("command", setupCommandName), slog.String("guildId", b.guildID))
	return nil
}

// OnInteractionCreate is the discordgo handler for interaction events.
func (b *Bot) OnInteractionCreate(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	b.HandleInteraction(ctx, i.Interaction)
}

func (b *Bot) HandleInteraction(ctx context.Context, i *discordgo.Interaction) {
	user, ok := userFromInteraction(i)
	if !ok {
		b.logger.Warn("interaction without a user", slog.String("interactionId", i.ID))
		return
	}

	logger := b.logger.With(slog.String("interactionId", i.ID), slog.String("userId", user.ID))

	var err error
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if i.ApplicationCommandData().Name == setupCommandName {
			err = b.handleSetup(ctx, i)
		}
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		switch data.CustomID {
		case signUpButtonID:
			err = b.handleSignUp(ctx, i, user)
		case countrySelectID:
			err = b.handleCountry(ctx, i, user, data.Values)
		case agreeButtonID:
			err = b.handleAgree(ctx, i, user)
		case step2OpenButtonID:
			err = b.handleOpenAddress(ctx, i, user)
		case cancelButtonID:
			err = b.handleCancel(ctx, i, user)
		default:
			logger.Debug("ignoring unknown component", slog.String("customId", data.CustomID))
		}
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		switch data.CustomID {
		case contactModalID:
			err = b.handleContactSubmit(ctx, i, user, data)
		case addressModalID:
			err = b.handleAddressSubmit(ctx, i, user, data)
		default:
			logger.Debug("ignoring unknown modal", slog.String("customId", data.CustomID))
		}
	}

	if err != nil {
		logger.Error("failed to respond to interaction", slog.String("error", err.Error()))
	}
}

func userFromInteraction(i *discordgo.Interaction) (onboarding.UserIdentity, bool) {
	if i.Member != nil && i.Member.User != nil {
		return identity(i.Member.User, i.Member.Nick), true
	}
	if i.User != nil {
		return identity(i.User, ""), true
	}
	return onboarding.UserIdentity{}, false
}

func identity(u *discordgo.User, nick string) onboarding.UserIdentity {
	return onboarding.UserIdentity{
		ID:            u.ID,
		Username:      u.Username,
		GlobalName:    u.GlobalName,
		Discriminator: u.Discriminator,
		Nickname:      nick,
	}
}

func (b *Bot) handleSetup(ctx context.Context, i *discordgo.Interaction) error {
	return b.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{registrationEmbed()},
			Components: signUpComponents(),
		},
	}, discordgo.WithContext(ctx))
}

// handleSignUp defers first since the duplicate pre-check talks to the store.
func (b *Bot) handleSignUp(ctx context.Context, i *discordgo.Interaction, user onboarding.UserIdentity) error {
	if err := b.deferEphemeral(ctx, i); err != nil {
		return err
	}

	out, err := b.flow.Begin(ctx, user)
	if err != nil {
		return b.editText(ctx, i, errorText(err), nil)
	}

	switch out.Kind {
	case onboarding.ALREADY_REGISTERED:
		return b.editText(ctx, i, alreadyRegisteredText(out), nil)
	default:
		return b.editText(ctx, i, countryPromptText(), countryPromptComponents())
	}
}

func (b *Bot) handleCountry(ctx context.Context, i *discordgo.Interaction, user onboarding.UserIdentity, values []string) error {
	if len(values) != 1 {
		return b.replyError(ctx, i, onboarding.NewInvalidInputError("Select exactly one country"))
	}

	out, err := b.flow.SelectCountry(ctx, user, values[0])
	if err != nil {
		return b.replyError(ctx, i, err)
	}

	return b.updateMessage(ctx, i, consentPromptText(out.Country), consentPromptComponents(out.Country))
}

func (b *Bot) handleAgree(ctx context.Context, i *discordgo.Interaction, user onboarding.UserIdentity) error {
	if _, err := b.flow.Consent(ctx, user); err != nil {
		return b.replyError(ctx, i, err)
	}

	return b.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: contactModal(),
	}, discordgo.WithContext(ctx))
}

func (b *Bot) handleContactSubmit(ctx context.Context, i *discordgo.Interaction, user onboarding.UserIdentity, data discordgo.ModalSubmitInteractionData) error {
	if _, err := b.flow.SubmitContact(ctx, user, contactFromModal(data)); err != nil {
		return b.replyError(ctx, i, err)
	}

	return b.reply(ctx, i, addressPromptText(), addressPromptComponents())
}

func (b *Bot) handleOpenAddress(ctx context.Context, i *discordgo.Interaction, user onboarding.UserIdentity) error {
	if _, err := b.flow.OpenAddressForm(ctx, user); err != nil {
		return b.replyError(ctx, i, err)
	}

	return b.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: addressModal(),
	}, discordgo.WithContext(ctx))
}

// handleAddressSubmit defers first since committing talks to the store.
func (b *Bot) handleAddressSubmit(ctx context.Context, i *discordgo.Interaction, user onboarding.UserIdentity, data discordgo.ModalSubmitInteractionData) error {
	if err := b.deferEphemeral(ctx, i); err != nil {
		return err
	}

	out, err := b.flow.SubmitAddress(ctx, user, addressFromModal(data))
	if err != nil {
		return b.editText(ctx, i, errorText(err), retryComponents(err))
	}

	switch out.Kind {
	case onboarding.ALREADY_REGISTERED:
		return b.editText(ctx, i, alreadyRegisteredText(out), nil)
	default:
		return b.editText(ctx, i, registeredText(out), nil)
	}
}

func (b *Bot) handleCancel(ctx context.Context, i *discordgo.Interaction, user onboarding.UserIdentity) error {
	if _, err := b.flow.Cancel(ctx, user); err != nil {
		return b.replyError(ctx, i, err)
	}

	return b.updateMessage(ctx, i, cancelledText(), []discordgo.MessageComponent{})
}

// retryComponents offers the step-2 form again when the failure kept the session.
func retryComponents(err error) []discordgo.MessageComponent {
	var onboardingErr *onboarding.Error
	if errors.As(err, &onboardingErr) && (onboardingErr.Retryable() || onboardingErr.Reason == onboarding.REASON_INVALID_INPUT) {
		return addressPromptComponents()
	}
	return nil
}

func (b *Bot) deferEphemeral(ctx context.Context, i *discordgo.Interaction) error {
	return b.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx))
}

func (b *Bot) editText(ctx context.Context, i *discordgo.Interaction, text string, components []discordgo.MessageComponent) error {
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	_, err := b.session.InteractionResponseEdit(i, &discordgo.WebhookEdit{
		Content:    &text,
		Components: &components,
	}, discordgo.WithContext(ctx))
	return err
}

func (b *Bot) reply(ctx context.Context, i *discordgo.Interaction, text string, components []discordgo.MessageComponent) error {
	return b.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    text,
			Components: components,
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	}, discordgo.WithContext(ctx))
}

func (b *Bot) replyError(ctx context.Context, i *discordgo.Interaction, err error) error {
	var components []discordgo.MessageComponent

	var onboardingErr *onboarding.Error
	if errors.As(err, &onboardingErr) && onboardingErr.Reason == onboarding.REASON_INVALID_INPUT && i.Type == discordgo.InteractionModalSubmit {
		// A rejected form keeps the step, so the same button reopens it.
		switch i.ModalSubmitData().CustomID {
		case contactModalID:
			components = []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.Button{Label: "Fill in step 1 again", Style: discordgo.PrimaryButton, CustomID: agreeButtonID},
					cancelButton(),
				}},
			}
		case addressModalID:
			components = addressPromptComponents()
		}
	}

	return b.reply(ctx, i, errorText(err), components)
}

func (b *Bot) updateMessage(ctx context.Context, i *discordgo.Interaction, text string, components []discordgo.MessageComponent) error {
	return b.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    text,
			Components: components,
		},
	}, discordgo.WithContext(ctx))
}
