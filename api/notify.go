package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kickzcaviar/seller-registration/onboarding"
)

const (
	notifySecretHeader = "X-Notify-Secret"
	maxNotifyBodyBytes = 64 << 10
)

type ErrorCode string

const (
	EmptyBody      ErrorCode = "EmptyBody"
	InvalidBody    ErrorCode = "InvalidBody"
	AuthError      ErrorCode = "AuthError"
	FailedToNotify ErrorCode = "FailedToNotify"
	InternalError  ErrorCode = "InternalError"
)

type NotifyExistingSellerRequest struct {
	DiscordID string  `json:"discordId"`
	SellerID  string  `json:"sellerId"`
	OrderID   *string `json:"orderId,omitempty"`
	Email     *string `json:"email,omitempty"`
}

type NotifyExistingSellerResponse struct {
	Success bool      `json:"success"`
	Code    ErrorCode `json:"code,omitempty"`
	Error   string    `json:"error,omitempty"`

	// RequestID is set on server errors so the caller can quote it.
	RequestID string `json:"requestId,omitempty"`
}

func (a *API) postNotifyExistingSeller(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := getLoggerFromCtx(ctx)

	if a.notifySecret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(notifySecretHeader)), []byte(a.notifySecret)) != 1 {
		logger.Warn("notify-existing-seller called with a bad secret")

		writeJSON(w, logger, http.StatusUnauthorized, NotifyExistingSellerResponse{
			Code:  AuthError,
			Error: "Missing or invalid notify secret.",
		})
		return
	}

	if r.Body == nil || r.ContentLength == 0 {
		writeJSON(w, logger, http.StatusBadRequest, NotifyExistingSellerResponse{
			Code:  EmptyBody,
			Error: "discordId and sellerId are required in the request body.",
		})
		return
	}

	var req NotifyExistingSellerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNotifyBodyBytes)).Decode(&req); err != nil {
		logger.Warn("Invalid body for notify-existing-seller", slog.String("error", err.Error()))

		writeJSON(w, logger, http.StatusBadRequest, NotifyExistingSellerResponse{
			Code:  InvalidBody,
			Error: "Request body must be a JSON object.",
		})
		return
	}

	err := onboarding.NotifyExistingSeller(ctx, a.notifier, a.users, a.inviteURL, onboarding.ExistingSellerNotice{
		DiscordID: req.DiscordID,
		SellerID:  req.SellerID,
		OrderID:   req.OrderID,
		Email:     req.Email,
	})
	if err != nil {
		var onboardingErr *onboarding.Error
		if errors.As(err, &onboardingErr) && onboardingErr.Reason == onboarding.REASON_INVALID_INPUT {
			writeJSON(w, logger, http.StatusBadRequest, NotifyExistingSellerResponse{
				Code:  InvalidBody,
				Error: "discordId and sellerId are required in the request body.",
			})
			return
		}

		logger.Error("Error sending existing-seller DM", slog.String("discordId", req.DiscordID), slog.String("error", err.Error()))

		writeJSON(w, logger, http.StatusInternalServerError, NotifyExistingSellerResponse{
			Code:      FailedToNotify,
			Error:     "Failed to send DM. The user may have DMs disabled or the bot has no access.",
			RequestID: getRequestIdFromCtx(ctx).String(),
		})
		return
	}

	logger.Info("notified existing seller", slog.String("discordId", req.DiscordID), slog.String("sellerId", req.SellerID))
	writeJSON(w, logger, http.StatusOK, NotifyExistingSellerResponse{Success: true})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		logger.Error("failed to marshal response", slog.String("error", err.Error()))
		status = http.StatusInternalServerError
		jsonBody = []byte(`{"success": false, "code": "InternalError"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(jsonBody)
}
