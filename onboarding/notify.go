package onboarding

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/kickzcaviar/seller-registration/ptr"
)

// Notifier delivers a private message to a user. Delivery can fail when the
// user has closed their DMs; callers treat that as non-fatal.
type Notifier interface {
	NotifySeller(ctx context.Context, userID string, message string) error
}

//go:embed templates
var templates embed.FS

var messageTemplates = template.Must(template.ParseFS(templates, "templates/*.tmpl"))

// ExistingSellerNotice is what the automation platform knows about a seller that
// submitted the full sales agreement while already being registered.
type ExistingSellerNotice struct {
	DiscordID string
	SellerID  string
	OrderID   *string
	Email     *string
}

func (n ExistingSellerNotice) validate() error {
	if strings.TrimSpace(n.DiscordID) == "" || strings.TrimSpace(n.SellerID) == "" {
		return NewInvalidInputError("discordId and sellerId are required")
	}
	return nil
}

// UsernameLookup resolves a Discord ID to the name used in the greeting.
type UsernameLookup interface {
	Username(ctx context.Context, userID string) (string, error)
}

// NotifyExistingSeller sends the "you already have a Seller ID" DM on behalf of the
// automation platform.
func NotifyExistingSeller(ctx context.Context, notifier Notifier, users UsernameLookup, inviteURL string, notice ExistingSellerNotice) error {
	if err := notice.validate(); err != nil {
		return err
	}

	username, err := users.Username(ctx, notice.DiscordID)
	if err != nil {
		return NewFailedToNotifyError(fmt.Sprintf("Failed to look up Discord user %q", notice.DiscordID), err)
	}

	msg, err := renderMessage("existing-seller.tmpl", map[string]any{
		"Username":  username,
		"SellerID":  notice.SellerID,
		"Email":     ptr.Deref(notice.Email),
		"OrderID":   ptr.Deref(notice.OrderID),
		"InviteURL": inviteURL,
	})
	if err != nil {
		return err
	}

	if err := notifier.NotifySeller(ctx, notice.DiscordID, msg); err != nil {
		return NewFailedToNotifyError(fmt.Sprintf("Failed to DM Discord user %q", notice.DiscordID), err)
	}
	return nil
}

func sellerRegisteredMessage(user UserIdentity, seller Seller) (string, error) {
	return renderMessage("seller-registered.tmpl", map[string]any{
		"Username": user.Username,
		"SellerID": seller.SellerID,
		"Email":    seller.Contact.Email,
		"Country":  seller.Country.Name,
	})
}

func alreadyRegisteredMessage(user UserIdentity, match DuplicateMatch) (string, error) {
	return renderMessage("already-registered.tmpl", map[string]any{
		"Username": user.Username,
		"SellerID": match.SellerID,
		"Email":    ptr.Deref(match.ExistingEmail),
	})
}

func renderMessage(name string, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := messageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute message template %s: %w", name, err)
	}
	return buf.String(), nil
}
