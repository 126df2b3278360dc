package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kickzcaviar/seller-registration/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(notifier *mockNotifier, secret string) *API {
	return NewAPI(noopLogger, Config{
		Env:          config.LOCAL,
		Notifier:     notifier,
		Users:        &mockUsernameLookup{},
		InviteURL:    "https://discord.gg/kickz",
		NotifySecret: secret,
	})
}

func postNotify(t *testing.T, api *API, body string, headers map[string]string) (*httptest.ResponseRecorder, NotifyExistingSellerResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/notify-existing-seller", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)

	var resp NotifyExistingSellerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestPostNotifyExistingSeller(t *testing.T) {
	t.Run("sends the DM", func(t *testing.T) {
		notifier := &mockNotifier{}
		api := newTestAPI(notifier, "")

		rec, resp := postNotify(t, api, `{"discordId":"1001","sellerId":"S-7","orderId":"ORD-1","email":"jan@example.com"}`, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, resp.Success)
		require.Len(t, notifier.sent["1001"], 1)
		msg := notifier.sent["1001"][0]
		assert.Contains(t, msg, "S-7")
		assert.Contains(t, msg, "ORD-1")
		assert.Contains(t, msg, "jan@example.com")
		assert.Contains(t, msg, "https://discord.gg/kickz")
	})

	t.Run("missing ids", func(t *testing.T) {
		notifier := &mockNotifier{}
		api := newTestAPI(notifier, "")

		rec, resp := postNotify(t, api, `{"discordId":"1001"}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, resp.Success)
		assert.Equal(t, InvalidBody, resp.Code)
		assert.Empty(t, notifier.sent)
	})

	t.Run("empty body", func(t *testing.T) {
		rec, resp := postNotify(t, newTestAPI(&mockNotifier{}, ""), "", nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, EmptyBody, resp.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		rec, resp := postNotify(t, newTestAPI(&mockNotifier{}, ""), `{"discordId":`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, InvalidBody, resp.Code)
	})

	t.Run("dm failure is a server error", func(t *testing.T) {
		notifier := &mockNotifier{
			NotifySellerFunc: func(ctx context.Context, userID string, message string) error {
				return errors.New("Cannot send messages to this user")
			},
		}

		rec, resp := postNotify(t, newTestAPI(notifier, ""), `{"discordId":"1001","sellerId":"S-7"}`, nil)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.False(t, resp.Success)
		assert.Equal(t, FailedToNotify, resp.Code)
		assert.Equal(t, rec.Header().Get(requestIDHeader), resp.RequestID)
	})

	t.Run("unknown discord user is a server error", func(t *testing.T) {
		rec, _ := postNotify(t, newTestAPI(&mockNotifier{}, ""), `{"discordId":"missing","sellerId":"S-7"}`, nil)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("secret is required when configured", func(t *testing.T) {
		notifier := &mockNotifier{}
		api := newTestAPI(notifier, "s3cret")

		rec, resp := postNotify(t, api, `{"discordId":"1001","sellerId":"S-7"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, AuthError, resp.Code)

		rec, _ = postNotify(t, api, `{"discordId":"1001","sellerId":"S-7"}`, map[string]string{notifySecretHeader: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec, resp = postNotify(t, api, `{"discordId":"1001","sellerId":"S-7"}`, map[string]string{notifySecretHeader: "s3cret"})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, resp.Success)
		assert.Len(t, notifier.sent["1001"], 1)
	})
}
