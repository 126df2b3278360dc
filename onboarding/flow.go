package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kickzcaviar/seller-registration/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/kickzcaviar/seller-registration/onboarding"

type OutcomeKind int

const (
	PROMPT_COUNTRY OutcomeKind = iota
	PROMPT_CONSENT
	PROMPT_CONTACT_FORM
	PROMPT_ADDRESS_FORM
	REGISTERED
	ALREADY_REGISTERED
	FLOW_CANCELLED
)

// Outcome tells the UI layer what to show next. Failures are returned as *Error instead.
type Outcome struct {
	Kind          OutcomeKind
	Country       *Country
	SellerID      string
	ExistingEmail *string
	// Notified is false when the DM for a finished flow could not be delivered.
	Notified bool
}

const (
	DefaultConsentVersion      = "v1"
	ConsentMethodDiscordButton = "discord_button"
	DefaultWebhookTimeout      = 30 * time.Second
)

type ConsentPolicy struct {
	Version string
	Method  string
}

type FlowConfig struct {
	Sessions *SessionStore
	Repo     Repository
	Notifier Notifier
	// Forwarder is optional; without it new sellers are not sent to the automation.
	Forwarder      Forwarder
	Consent        ConsentPolicy
	WebhookTimeout time.Duration
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Flow is the registration state machine. Each method handles one user action and is
// safe to call concurrently; actions of the same user are serialized on the session lock.
type Flow struct {
	sessions       *SessionStore
	resolver       *DuplicateResolver
	repo           Repository
	notifier       Notifier
	forwarder      Forwarder
	consent        ConsentPolicy
	webhookTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	now            func() time.Time

	forwardMu sync.Mutex
	draining  bool
	forwards  sync.WaitGroup
}

func NewFlow(cfg FlowConfig) *Flow {
	consent := cfg.Consent
	if consent.Version == "" {
		consent.Version = DefaultConsentVersion
	}
	if consent.Method == "" {
		consent.Method = ConsentMethodDiscordButton
	}
	webhookTimeout := cfg.WebhookTimeout
	if webhookTimeout <= 0 {
		webhookTimeout = DefaultWebhookTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(tracerName)

	resolver := NewDuplicateResolver(cfg.Repo)
	resolver.tracer = tracer

	return &Flow{
		sessions:       cfg.Sessions,
		resolver:       resolver,
		repo:           cfg.Repo,
		notifier:       cfg.Notifier,
		forwarder:      cfg.Forwarder,
		consent:        consent,
		webhookTimeout: webhookTimeout,
		logger:         logger,
		metrics:        cfg.Metrics,
		tracer:         tracer,
		now:            time.Now,
	}
}

// Begin starts a fresh registration. Any session the user already had is discarded
// first. If the user is already a seller no session is created.
func (f *Flow) Begin(ctx context.Context, user UserIdentity) (Outcome, error) {
	ctx, span := f.startSpan(ctx, "Flow.Begin", user)
	defer span.End()

	unlock, err := f.lock(ctx, user)
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()

	f.sessions.Delete(user.ID)

	logger := f.logger.With(slog.String("userId", user.ID))

	match, err := f.resolver.Resolve(ctx, user, true)
	if err != nil {
		// The commit gate repeats the exact lookup, so the flow can go on.
		f.metrics.StoreError("resolve")
		logger.Warn("duplicate pre-check failed, continuing registration", slog.String("error", err.Error()))
	} else if match.Found {
		f.metrics.DuplicateFound(metrics.GateEntry)
		logger.Info("sign up attempted by existing seller", slog.String("sellerId", match.SellerID))

		return Outcome{
			Kind:          ALREADY_REGISTERED,
			SellerID:      match.SellerID,
			ExistingEmail: match.ExistingEmail,
		}, nil
	}

	f.sessions.Put(Session{
		UserID: user.ID,
		Step:   AWAITING_COUNTRY,
	})
	f.metrics.RegistrationBegun()

	return Outcome{Kind: PROMPT_COUNTRY}, nil
}

// SelectCountry stores the chosen country. It may be called again before consent
// to change the choice; the step does not move back.
func (f *Flow) SelectCountry(ctx context.Context, user UserIdentity, value string) (Outcome, error) {
	ctx, span := f.startSpan(ctx, "Flow.SelectCountry", user)
	defer span.End()

	country, err := LookupCountry(value)
	if err != nil {
		return Outcome{}, err
	}

	unlock, err := f.lock(ctx, user)
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()

	sess, ok := f.sessions.Get(user.ID)
	if !ok {
		return Outcome{}, NewSessionExpiredError(user.ID)
	}
	if !sess.Step.preConsent() {
		return Outcome{}, NewOutOfOrderError(AWAITING_COUNTRY, sess.Step)
	}

	sess.Country = &country
	sess.Step = AWAITING_CONSENT
	f.sessions.Put(sess)

	return Outcome{Kind: PROMPT_CONSENT, Country: &country}, nil
}

// Consent records the user's agreement to the terms. Repeating it once the contact
// form is due just asks for the form again.
func (f *Flow) Consent(ctx context.Context, user UserIdentity) (Outcome, error) {
	ctx, span := f.startSpan(ctx, "Flow.Consent", user)
	defer span.End()

	unlock, err := f.lock(ctx, user)
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()

	sess, ok := f.sessions.Get(user.ID)
	if !ok {
		return Outcome{}, NewSessionExpiredError(user.ID)
	}

	switch {
	case sess.Step == AWAITING_CONTACT_INFO:
		return Outcome{Kind: PROMPT_CONTACT_FORM, Country: sess.Country}, nil
	case sess.Country == nil:
		return Outcome{}, NewInvalidInputError("Select your country before agreeing to the terms")
	case sess.Step != AWAITING_CONSENT:
		return Outcome{}, NewOutOfOrderError(AWAITING_CONSENT, sess.Step)
	}

	sess.Step = AWAITING_CONTACT_INFO
	sess.ConsentedAt = f.now()
	f.sessions.Put(sess)

	return Outcome{Kind: PROMPT_CONTACT_FORM, Country: sess.Country}, nil
}

func (f *Flow) SubmitContact(ctx context.Context, user UserIdentity, contact ContactInfo) (Outcome, error) {
	ctx, span := f.startSpan(ctx, "Flow.SubmitContact", user)
	defer span.End()

	unlock, err := f.lock(ctx, user)
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()

	sess, ok := f.sessions.Get(user.ID)
	if !ok {
		return Outcome{}, NewSessionExpiredError(user.ID)
	}
	if sess.Country == nil {
		return Outcome{}, NewInvalidInputError("Select your country before entering your details")
	}
	if sess.Step != AWAITING_CONTACT_INFO {
		return Outcome{}, NewOutOfOrderError(AWAITING_CONTACT_INFO, sess.Step)
	}

	contact = contact.normalize()
	if err := contact.validate(); err != nil {
		return Outcome{}, err
	}

	sess.Contact = &contact
	sess.Step = AWAITING_ADDRESS_INFO
	f.sessions.Put(sess)

	return Outcome{Kind: PROMPT_ADDRESS_FORM, Country: sess.Country}, nil
}

// OpenAddressForm checks, without changing anything, that the step-2 form may be shown.
func (f *Flow) OpenAddressForm(ctx context.Context, user UserIdentity) (Outcome, error) {
	unlock, err := f.lock(ctx, user)
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()

	sess, ok := f.sessions.Get(user.ID)
	if !ok {
		return Outcome{}, NewSessionExpiredError(user.ID)
	}
	if sess.Step != AWAITING_ADDRESS_INFO || sess.Contact == nil {
		return Outcome{}, NewOutOfOrderError(AWAITING_ADDRESS_INFO, sess.Step)
	}

	return Outcome{Kind: PROMPT_ADDRESS_FORM, Country: sess.Country}, nil
}

// SubmitAddress takes the step-2 form and commits the registration.
//
// The user's lock is held across the commit-time duplicate check and the create, so
// a double submit cannot create two records. When the store fails the session goes
// back to AWAITING_ADDRESS_INFO with all data kept, and the user can submit again.
func (f *Flow) SubmitAddress(ctx context.Context, user UserIdentity, address AddressInfo) (Outcome, error) {
	ctx, span := f.startSpan(ctx, "Flow.SubmitAddress", user)
	defer span.End()

	unlock, err := f.lock(ctx, user)
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()

	sess, ok := f.sessions.Get(user.ID)
	if !ok {
		return f.alreadyCommitted(ctx, user, NewSessionExpiredError(user.ID))
	}
	if sess.Contact == nil || sess.Country == nil {
		return Outcome{}, NewInvalidInputError("Complete step 1 before entering your address")
	}
	if sess.Step != AWAITING_ADDRESS_INFO {
		return f.alreadyCommitted(ctx, user, NewOutOfOrderError(AWAITING_ADDRESS_INFO, sess.Step))
	}

	address = address.normalize()
	if err := address.validate(); err != nil {
		return Outcome{}, err
	}

	logger := f.logger.With(slog.String("userId", user.ID))

	sess.Step = COMMITTING
	f.sessions.Put(sess)

	rollback := func() {
		sess.Step = AWAITING_ADDRESS_INFO
		f.sessions.Put(sess)
	}

	match, err := f.resolver.Resolve(ctx, user, false)
	if err != nil {
		rollback()
		f.metrics.StoreError("resolve")
		logger.Error("commit-time duplicate check failed", slog.String("error", err.Error()))
		return Outcome{}, err
	}
	if match.Found {
		f.sessions.Delete(user.ID)
		unlock()
		return f.finishAsDuplicate(ctx, user, match, logger), nil
	}

	created, err := f.repo.CreateSeller(ctx, f.newSeller(user, sess, address))
	if err != nil {
		var onboardingErr *Error
		if errors.As(err, &onboardingErr) && onboardingErr.Reason == REASON_SELLER_ALREADY_EXISTS {
			f.sessions.Delete(user.ID)
			unlock()
			return f.finishAsDuplicate(ctx, user, f.lookupExisting(ctx, user, logger), logger), nil
		}

		rollback()
		f.metrics.StoreError("create")
		logger.Error("failed to create seller record", slog.String("error", err.Error()))
		return Outcome{}, err
	}

	f.sessions.Delete(user.ID)
	unlock()

	f.metrics.RegistrationCompleted()
	logger.Info("seller registered", slog.String("sellerId", created.SellerID), slog.String("recordId", created.ID.String()))

	notified := f.notify(ctx, user, logger, func() (string, error) {
		return sellerRegisteredMessage(user, created)
	})
	f.forward(ctx, created, logger)

	return Outcome{
		Kind:     REGISTERED,
		Country:  &created.Country,
		SellerID: created.SellerID,
		Notified: notified,
	}, nil
}

// Cancel drops the user's session. Cancelling with nothing in progress is not an error.
func (f *Flow) Cancel(ctx context.Context, user UserIdentity) (Outcome, error) {
	ctx, span := f.startSpan(ctx, "Flow.Cancel", user)
	defer span.End()

	unlock, err := f.lock(ctx, user)
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()

	if _, ok := f.sessions.Get(user.ID); ok {
		f.sessions.Delete(user.ID)
		f.metrics.RegistrationCancelled()
	}

	return Outcome{Kind: FLOW_CANCELLED}, nil
}

// Wait blocks until every in-flight webhook delivery has finished. Deliveries started
// after Wait is called run inline on the caller's goroutine.
func (f *Flow) Wait() {
	f.forwardMu.Lock()
	f.draining = true
	f.forwardMu.Unlock()

	f.forwards.Wait()
}

func (f *Flow) newSeller(user UserIdentity, sess Session, address AddressInfo) Seller {
	return Seller{
		ID:              uuid.New(),
		Version:         1,
		CreatedAt:       f.now(),
		DiscordID:       user.ID,
		DiscordUsername: user.Username,
		DiscordTag:      user.Tag(),
		DiscordHandle:   user.Username,
		Country:         *sess.Country,
		Contact:         *sess.Contact,
		Address:         address,
		Consent: Consent{
			Version:    f.consent.Version,
			Method:     f.consent.Method,
			AcceptedAt: sess.ConsentedAt,
		},
	}
}

func (f *Flow) finishAsDuplicate(ctx context.Context, user UserIdentity, match DuplicateMatch, logger *slog.Logger) Outcome {
	f.metrics.DuplicateFound(metrics.GateCommit)
	logger.Info("registration resolved to existing seller", slog.String("sellerId", match.SellerID))

	notified := f.notify(ctx, user, logger, func() (string, error) {
		return alreadyRegisteredMessage(user, match)
	})

	return Outcome{
		Kind:          ALREADY_REGISTERED,
		SellerID:      match.SellerID,
		ExistingEmail: match.ExistingEmail,
		Notified:      notified,
	}
}

// alreadyCommitted handles a step-2 submit that lost its session, usually a double
// submit whose first copy already created the record. An exact match reports that
// record; otherwise reject is returned unchanged.
func (f *Flow) alreadyCommitted(ctx context.Context, user UserIdentity, reject error) (Outcome, error) {
	match, err := f.resolver.Resolve(ctx, user, false)
	if err != nil || !match.Found {
		return Outcome{}, reject
	}

	return Outcome{
		Kind:          ALREADY_REGISTERED,
		SellerID:      match.SellerID,
		ExistingEmail: match.ExistingEmail,
	}, nil
}

// lookupExisting fetches the record that beat us to the conditional create. If even
// that fails the user is still told they are registered, just without the ID.
func (f *Flow) lookupExisting(ctx context.Context, user UserIdentity, logger *slog.Logger) DuplicateMatch {
	match, err := f.resolver.Resolve(ctx, user, false)
	if err != nil {
		f.metrics.StoreError("resolve")
		logger.Error("failed to load existing seller after create conflict", slog.String("error", err.Error()))
		return DuplicateMatch{Found: true}
	}
	match.Found = true
	return match
}

func (f *Flow) notify(ctx context.Context, user UserIdentity, logger *slog.Logger, render func() (string, error)) bool {
	msg, err := render()
	if err != nil {
		f.metrics.NotificationFailed()
		logger.Error("failed to render seller DM", slog.String("error", err.Error()))
		return false
	}

	if err := f.notifier.NotifySeller(ctx, user.ID, msg); err != nil {
		f.metrics.NotificationFailed()
		logger.Warn("failed to DM seller", slog.String("error", err.Error()))
		return false
	}
	return true
}

func (f *Flow) forward(ctx context.Context, seller Seller, logger *slog.Logger) {
	if f.forwarder == nil {
		return
	}

	deliver := func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.webhookTimeout)
		defer cancel()

		if err := f.forwarder.ForwardSeller(ctx, seller); err != nil {
			f.metrics.WebhookFailed()
			logger.Error("failed to forward seller to automation webhook",
				slog.String("sellerId", seller.SellerID),
				slog.String("error", err.Error()),
			)
		}
	}

	f.forwardMu.Lock()
	if f.draining {
		f.forwardMu.Unlock()
		deliver()
		return
	}
	f.forwards.Add(1)
	f.forwardMu.Unlock()

	go func() {
		defer f.forwards.Done()
		deliver()
	}()
}

func (f *Flow) lock(ctx context.Context, user UserIdentity) (func(), error) {
	unlock, err := f.sessions.Lock(ctx, user.ID)
	if err != nil {
		return nil, NewTimeoutError(fmt.Sprintf("Timed out waiting for the session of user %q", user.ID))
	}
	return unlock, nil
}

func (f *Flow) startSpan(ctx context.Context, name string, user UserIdentity) (context.Context, trace.Span) {
	return f.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("discord.user_id", user.ID)))
}
