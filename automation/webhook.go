// Package automation forwards newly created sellers to the external automation
// scenario that renders the seller agreement PDF.
package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/kickzcaviar/seller-registration/onboarding"
)

var _ onboarding.Forwarder = &WebhookClient{}

const defaultMaxTries = 3

type Payload struct {
	RecordID  string `json:"recordId"`
	SellerID  string `json:"sellerId"`
	Timestamp string `json:"timestamp"`

	DiscordID       string `json:"discordId"`
	DiscordUsername string `json:"discordUsername"`
	DiscordTag      string `json:"discordTag"`

	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`

	FullName string `json:"fullName"`
	Company  string `json:"company"`
	TaxID    string `json:"taxId"`
	Email    string `json:"email"`

	AddressLine1  string `json:"addressLine1"`
	AddressLine2  string `json:"addressLine2"`
	PostalCode    string `json:"postalCode"`
	City          string `json:"city"`
	PayoutDetails string `json:"payoutDetails"`

	ConsentVersion    string `json:"consentVersion"`
	ConsentMethod     string `json:"consentMethod"`
	ConsentAcceptedAt string `json:"consentAcceptedAt"`
}

func NewPayload(seller onboarding.Seller, now time.Time) Payload {
	return Payload{
		RecordID:          seller.ID.String(),
		SellerID:          seller.SellerID,
		Timestamp:         now.UTC().Format(time.RFC3339),
		DiscordID:         seller.DiscordID,
		DiscordUsername:   seller.DiscordUsername,
		DiscordTag:        seller.DiscordTag,
		Country:           seller.Country.Name,
		CountryCode:       seller.Country.Code,
		FullName:          seller.Contact.FullName,
		Company:           seller.Contact.Company,
		TaxID:             seller.Contact.TaxID,
		Email:             seller.Contact.Email,
		AddressLine1:      seller.Address.Line1,
		AddressLine2:      seller.Address.Line2,
		PostalCode:        seller.Address.PostalCode,
		City:              seller.Address.City,
		PayoutDetails:     seller.Address.PayoutDetails,
		ConsentVersion:    seller.Consent.Version,
		ConsentMethod:     seller.Consent.Method,
		ConsentAcceptedAt: seller.Consent.AcceptedAt.UTC().Format(time.RFC3339),
	}
}

type WebhookClient struct {
	httpClient *http.Client
	url        string
	maxTries   uint
	backOff    func() backoff.BackOff
	now        func() time.Time
}

type WebhookOption func(*WebhookClient)

func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookClient) {
		w.httpClient = c
	}
}

func WithMaxTries(n uint) WebhookOption {
	return func(w *WebhookClient) {
		w.maxTries = n
	}
}

// WithBackOff replaces the exponential backoff between attempts.
func WithBackOff(f func() backoff.BackOff) WebhookOption {
	return func(w *WebhookClient) {
		w.backOff = f
	}
}

func NewWebhookClient(url string, opts ...WebhookOption) *WebhookClient {
	w := &WebhookClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		url:        url,
		maxTries:   defaultMaxTries,
		backOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ForwardSeller posts the seller to the webhook. Network errors and 5xx/429 responses
// are retried; any other non-2xx response fails straight away.
func (w *WebhookClient) ForwardSeller(ctx context.Context, seller onboarding.Seller) error {
	body, err := json.Marshal(NewPayload(seller, w.now()))
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, w.post(ctx, body)
	}, backoff.WithBackOff(w.backOff()), backoff.WithMaxTries(w.maxTries))
	if err != nil {
		return fmt.Errorf("failed to forward seller %s: %w", seller.SellerID, err)
	}

	return nil
}

func (w *WebhookClient) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to build webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	statusErr := fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return statusErr
	}
	return backoff.Permanent(statusErr)
}

var _ onboarding.Forwarder = &LogForwarder{}

// LogForwarder stands in for the webhook in local dev.
type LogForwarder struct {
	Logger *slog.Logger
}

func (l *LogForwarder) ForwardSeller(ctx context.Context, seller onboarding.Seller) error {
	l.Logger.InfoContext(ctx, "seller that would be forwarded", slog.Any("payload", NewPayload(seller, time.Now())))
	return nil
}
