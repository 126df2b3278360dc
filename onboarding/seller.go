package onboarding

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	GetSellerByDiscordID(ctx context.Context, discordID string) (Seller, error)
	FindSellerByContact(ctx context.Context, candidates []string) (Seller, error)
	CreateSeller(ctx context.Context, seller Seller) (Seller, error)
}

// Forwarder hands a freshly created seller to the document automation.
type Forwarder interface {
	ForwardSeller(ctx context.Context, seller Seller) error
}

type UserIdentity struct {
	ID            string
	Username      string
	GlobalName    string
	Discriminator string
	// Nickname is only set when the action came from inside a server.
	Nickname string
}

// Tag is the legacy username#discriminator form, or the bare username for
// accounts that migrated to unique usernames.
func (u UserIdentity) Tag() string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return fmt.Sprintf("%s#%s", u.Username, u.Discriminator)
}

type ContactInfo struct {
	FullName string
	Company  string
	TaxID    string
	Email    string
}

func (c ContactInfo) normalize() ContactInfo {
	return ContactInfo{
		FullName: strings.TrimSpace(c.FullName),
		Company:  strings.TrimSpace(c.Company),
		TaxID:    strings.TrimSpace(c.TaxID),
		Email:    strings.TrimSpace(c.Email),
	}
}

func (c ContactInfo) validate() error {
	if c.FullName == "" {
		return NewInvalidInputError("Full name is required")
	}
	if c.Email == "" {
		return NewInvalidInputError("Email is required")
	}
	addr, err := mail.ParseAddress(c.Email)
	if err != nil || addr.Address != c.Email {
		return NewInvalidInputError(fmt.Sprintf("%q is not a valid email address", c.Email))
	}
	return nil
}

type AddressInfo struct {
	Line1         string
	Line2         string
	PostalCode    string
	City          string
	PayoutDetails string
}

func (a AddressInfo) normalize() AddressInfo {
	return AddressInfo{
		Line1:         strings.TrimSpace(a.Line1),
		Line2:         strings.TrimSpace(a.Line2),
		PostalCode:    strings.TrimSpace(a.PostalCode),
		City:          strings.TrimSpace(a.City),
		PayoutDetails: strings.TrimSpace(a.PayoutDetails),
	}
}

func (a AddressInfo) validate() error {
	switch {
	case a.Line1 == "":
		return NewInvalidInputError("Address line 1 is required")
	case a.PostalCode == "":
		return NewInvalidInputError("Postal code is required")
	case a.City == "":
		return NewInvalidInputError("City is required")
	case a.PayoutDetails == "":
		return NewInvalidInputError("Payout details are required")
	}
	return nil
}

type Consent struct {
	Version    string
	Method     string
	AcceptedAt time.Time
}

type Seller struct {
	ID           uuid.UUID
	Version      int
	SellerNumber int
	SellerID     string
	CreatedAt    time.Time

	DiscordID       string
	DiscordUsername string
	DiscordTag      string
	// DiscordHandle is the free-text contact string the name heuristics search.
	DiscordHandle string

	Country Country
	Contact ContactInfo
	Address AddressInfo
	Consent Consent
}

type DuplicateMatch struct {
	Found         bool
	SellerID      string
	ExistingEmail *string
}

var NotFound = DuplicateMatch{}
