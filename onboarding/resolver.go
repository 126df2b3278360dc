package onboarding

import (
	"context"
	"errors"
	"strings"

	"github.com/kickzcaviar/seller-registration/ptr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type DuplicateResolver struct {
	repo   Repository
	tracer trace.Tracer
}

func NewDuplicateResolver(repo Repository) *DuplicateResolver {
	return &DuplicateResolver{repo: repo, tracer: otel.Tracer(tracerName)}
}

// Resolve looks for an existing seller record for the user. The exact Discord ID
// lookup always runs first; the name heuristics only run when it found nothing and
// useNameHeuristics is set. Store failures are returned as errors, never as NotFound.
func (r *DuplicateResolver) Resolve(ctx context.Context, user UserIdentity, useNameHeuristics bool) (DuplicateMatch, error) {
	ctx, span := r.tracer.Start(ctx, "DuplicateResolver.Resolve", trace.WithAttributes(
		attribute.String("discord.user_id", user.ID),
		attribute.Bool("heuristics", useNameHeuristics),
	))
	defer span.End()

	seller, err := r.repo.GetSellerByDiscordID(ctx, user.ID)
	if err == nil {
		return foundMatch(seller), nil
	}
	if !isSellerNotFound(err) {
		span.SetStatus(codes.Error, err.Error())
		return NotFound, err
	}

	if !useNameHeuristics {
		return NotFound, nil
	}

	candidates := nameCandidates(user)
	if len(candidates) == 0 {
		return NotFound, nil
	}

	seller, err = r.repo.FindSellerByContact(ctx, candidates)
	if err == nil {
		// A name match may be someone else's record, so only the seller ID is shared.
		return DuplicateMatch{Found: true, SellerID: seller.SellerID}, nil
	}
	if !isSellerNotFound(err) {
		span.SetStatus(codes.Error, err.Error())
		return NotFound, err
	}

	return NotFound, nil
}

func foundMatch(seller Seller) DuplicateMatch {
	m := DuplicateMatch{
		Found:    true,
		SellerID: seller.SellerID,
	}
	if seller.Contact.Email != "" {
		m.ExistingEmail = ptr.String(seller.Contact.Email)
	}
	return m
}

func isSellerNotFound(err error) bool {
	var onboardingErr *Error
	return errors.As(err, &onboardingErr) && onboardingErr.Reason == REASON_SELLER_DOES_NOT_EXIST
}

// nameCandidates collects the names a seller may have typed as their Discord
// handle on an external form: username, tag, server nickname and display name.
func nameCandidates(user UserIdentity) []string {
	raw := []string{user.Username, user.Tag(), user.Nickname, user.GlobalName}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
