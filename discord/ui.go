package discord

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/kickzcaviar/seller-registration/onboarding"
	"github.com/kickzcaviar/seller-registration/ptr"
)

const (
	setupCommandName = "setup-seller-registration"

	signUpButtonID    = "seller_signup"
	agreeButtonID     = "seller_agree"
	cancelButtonID    = "seller_cancel"
	step2OpenButtonID = "seller_step2_open"
	countrySelectID   = "seller_country"
	contactModalID    = "seller_step1_modal"
	addressModalID    = "seller_step2_modal"

	fullNameInputID = "full_name"
	companyInputID  = "company"
	taxIDInputID    = "tax_id"
	emailInputID    = "email"
	line1InputID    = "address_line1"
	line2InputID    = "address_line2"
	postalInputID   = "postal_code"
	cityInputID     = "city"
	payoutInputID   = "payout_details"

	registrationHue  = 0x00ae86
	maxModalInputLen = 200
)

var setupCommand = &discordgo.ApplicationCommand{
	Name:                     setupCommandName,
	Description:              "Post the seller registration embed in this channel.",
	DefaultMemberPermissions: ptr.Int64(discordgo.PermissionManageGuild),
}

func registrationEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "🖊️ Seller Registration",
		Description: strings.Join([]string{
			"Welcome to the **Kickz Caviar** seller onboarding.",
			"",
			"Click **SIGN UP** below to create your seller profile and agree to the T&C.",
		}, "\n"),
		Color: registrationHue,
	}
}

func signUpComponents() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "SIGN UP",
					Style:    discordgo.PrimaryButton,
					CustomID: signUpButtonID,
				},
			},
		},
	}
}

func cancelButton() discordgo.Button {
	return discordgo.Button{
		Label:    "Cancel",
		Style:    discordgo.SecondaryButton,
		CustomID: cancelButtonID,
	}
}

func countrySelect(selected *onboarding.Country) discordgo.SelectMenu {
	countries := onboarding.Countries()
	options := make([]discordgo.SelectMenuOption, 0, len(countries))
	for _, c := range countries {
		options = append(options, discordgo.SelectMenuOption{
			Label:   c.Name,
			Value:   c.Code,
			Emoji:   &discordgo.ComponentEmoji{Name: c.Flag},
			Default: selected != nil && selected.Code == c.Code,
		})
	}

	return discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    countrySelectID,
		Placeholder: "Select your country",
		Options:     options,
	}
}

func countryPromptComponents() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{countrySelect(nil)}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{cancelButton()}},
	}
}

func consentPromptComponents(selected *onboarding.Country) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{countrySelect(selected)}},
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "I Agree",
					Style:    discordgo.SuccessButton,
					CustomID: agreeButtonID,
				},
				cancelButton(),
			},
		},
	}
}

func addressPromptComponents() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Continue to step 2",
					Style:    discordgo.PrimaryButton,
					CustomID: step2OpenButtonID,
				},
				cancelButton(),
			},
		},
	}
}

func textInput(id string, label string, style discordgo.TextInputStyle, required bool) discordgo.ActionsRow {
	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:  id,
				Label:     label,
				Style:     style,
				Required:  required,
				MaxLength: maxModalInputLen,
			},
		},
	}
}

func contactModal() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: contactModalID,
		Title:    "Seller registration (1/2)",
		Components: []discordgo.MessageComponent{
			textInput(fullNameInputID, "Full name", discordgo.TextInputShort, true),
			textInput(companyInputID, "Company (optional)", discordgo.TextInputShort, false),
			textInput(taxIDInputID, "VAT / tax ID (optional)", discordgo.TextInputShort, false),
			textInput(emailInputID, "Email", discordgo.TextInputShort, true),
		},
	}
}

func addressModal() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: addressModalID,
		Title:    "Seller registration (2/2)",
		Components: []discordgo.MessageComponent{
			textInput(line1InputID, "Address line 1", discordgo.TextInputShort, true),
			textInput(line2InputID, "Address line 2 (optional)", discordgo.TextInputShort, false),
			textInput(postalInputID, "Postal code", discordgo.TextInputShort, true),
			textInput(cityInputID, "City", discordgo.TextInputShort, true),
			textInput(payoutInputID, "Payout details (IBAN / PayPal)", discordgo.TextInputParagraph, true),
		},
	}
}

// modalValues flattens the submitted text inputs into custom id -> value.
func modalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	values := map[string]string{}
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, rc := range row.Components {
			if input, ok := rc.(*discordgo.TextInput); ok {
				values[input.CustomID] = input.Value
			}
		}
	}
	return values
}

func contactFromModal(data discordgo.ModalSubmitInteractionData) onboarding.ContactInfo {
	v := modalValues(data)
	return onboarding.ContactInfo{
		FullName: v[fullNameInputID],
		Company:  v[companyInputID],
		TaxID:    v[taxIDInputID],
		Email:    v[emailInputID],
	}
}

func addressFromModal(data discordgo.ModalSubmitInteractionData) onboarding.AddressInfo {
	v := modalValues(data)
	return onboarding.AddressInfo{
		Line1:         v[line1InputID],
		Line2:         v[line2InputID],
		PostalCode:    v[postalInputID],
		City:          v[cityInputID],
		PayoutDetails: v[payoutInputID],
	}
}

func countryPromptText() string {
	return "**Step 1:** select the country you will be selling from."
}

func consentPromptText(country *onboarding.Country) string {
	selected := ""
	if country != nil {
		selected = fmt.Sprintf("Selected country: %s **%s**\n\n", country.Flag, country.Name)
	}
	return selected + "By clicking **I Agree** you accept the Kickz Caviar seller terms & conditions and " +
		"consent to us storing the details you enter for your seller profile."
}

func addressPromptText() string {
	return "Step 1 saved. Click **Continue to step 2** to enter your address and payout details."
}

func alreadyRegisteredText(out onboarding.Outcome) string {
	lines := []string{"You are already registered as a seller with **Payout by Kickz Caviar**."}
	if out.SellerID != "" {
		lines = append(lines, fmt.Sprintf("Your **Seller ID** is: `%s`.", out.SellerID))
	}
	if out.ExistingEmail != nil && *out.ExistingEmail != "" {
		lines = append(lines, fmt.Sprintf("This seller profile is registered on: `%s`.", *out.ExistingEmail))
	}
	return strings.Join(lines, "\n")
}

func registeredText(out onboarding.Outcome) string {
	text := fmt.Sprintf("✅ Registration complete! Your **Seller ID** is: `%s`.", out.SellerID)
	if !out.Notified {
		text += "\nWe could not send you a DM with your confirmation. Enable DMs from server members to receive it next time."
	}
	return text
}

func cancelledText() string {
	return "Registration cancelled. Click **SIGN UP** whenever you want to start again."
}

// errorText turns a flow failure into the message shown to the user.
func errorText(err error) string {
	var onboardingErr *onboarding.Error
	if !errors.As(err, &onboardingErr) {
		return "Something went wrong. Please try again."
	}

	switch onboardingErr.Reason {
	case onboarding.REASON_SESSION_EXPIRED, onboarding.REASON_OUT_OF_ORDER:
		return "Your registration session has expired or is out of date. Click **SIGN UP** to start again."
	case onboarding.REASON_UNKNOWN_COUNTRY:
		return "Please pick a country from the list."
	case onboarding.REASON_INVALID_INPUT:
		return onboardingErr.Message + "."
	}

	if onboardingErr.Retryable() {
		return "We could not save your registration right now. Your details are kept, please try again in a moment."
	}
	return "Something went wrong. Please try again."
}
