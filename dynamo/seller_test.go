package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kickzcaviar/seller-registration/onboarding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSeller(discordID string, username string) onboarding.Seller {
	country, _ := onboarding.LookupCountry("NL")
	acceptedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	return onboarding.Seller{
		ID:              uuid.New(),
		Version:         1,
		CreatedAt:       acceptedAt.Add(5 * time.Minute),
		DiscordID:       discordID,
		DiscordUsername: username,
		DiscordTag:      username,
		DiscordHandle:   username,
		Country:         country,
		Contact: onboarding.ContactInfo{
			FullName: "Jan de Vries",
			Company:  "Sneaker BV",
			TaxID:    "NL123456789B01",
			Email:    fmt.Sprintf("%s@example.com", username),
		},
		Address: onboarding.AddressInfo{
			Line1:         "Damrak 1",
			PostalCode:    "1012 LG",
			City:          "Amsterdam",
			PayoutDetails: "NL91ABNA0417164300",
		},
		Consent: onboarding.Consent{
			Version:    "v1",
			Method:     "discord_button",
			AcceptedAt: acceptedAt,
		},
	}
}

func requireReason(t *testing.T, err error, reason onboarding.ErrorReason) {
	t.Helper()

	var onboardingErr *onboarding.Error
	require.True(t, errors.As(err, &onboardingErr), "expected an onboarding error, got %v", err)
	assert.Equal(t, reason, onboardingErr.Reason)
}

func TestCreateSeller(t *testing.T) {
	ctx := context.Background()

	t.Run("successfully create and read back a seller", func(t *testing.T) {
		resetTable(ctx)
		seller := newTestSeller("1001", "jan")

		created, err := db.CreateSeller(ctx, seller)
		require.NoError(t, err)
		assert.Equal(t, 1, created.SellerNumber)
		assert.Equal(t, "S-1", created.SellerID)

		got, err := db.GetSellerByDiscordID(ctx, "1001")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, created.SellerID, got.SellerID)
		assert.Equal(t, created.Country, got.Country)
		assert.Equal(t, created.Contact, got.Contact)
		assert.Equal(t, created.Address, got.Address)
		assert.Equal(t, created.Consent.Version, got.Consent.Version)
		assert.True(t, created.Consent.AcceptedAt.Equal(got.Consent.AcceptedAt))
		assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("fail to create a second seller for the same discord user", func(t *testing.T) {
		resetTable(ctx)

		_, err := db.CreateSeller(ctx, newTestSeller("1001", "jan"))
		require.NoError(t, err)

		_, err = db.CreateSeller(ctx, newTestSeller("1001", "jan"))
		requireReason(t, err, onboarding.REASON_SELLER_ALREADY_EXISTS)
	})

	t.Run("seller numbers are sequential", func(t *testing.T) {
		resetTable(ctx)

		for i := 1; i <= 3; i++ {
			created, err := db.CreateSeller(ctx, newTestSeller(fmt.Sprintf("%d", 2000+i), fmt.Sprintf("user%d", i)))
			require.NoError(t, err)
			assert.Equal(t, i, created.SellerNumber)
			assert.Equal(t, fmt.Sprintf("S-%d", i), created.SellerID)
		}
	})

	t.Run("uses the configured seller id prefix", func(t *testing.T) {
		resetTable(ctx)
		prefixed := NewDB(dynamoClient, tableName, "KC-")

		created, err := prefixed.CreateSeller(ctx, newTestSeller("1001", "jan"))
		require.NoError(t, err)
		assert.Equal(t, "KC-1", created.SellerID)
	})

	t.Run("concurrent creates for one user produce a single seller", func(t *testing.T) {
		resetTable(ctx)

		var wg sync.WaitGroup
		results := make([]error, 5)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, results[i] = db.CreateSeller(ctx, newTestSeller("3001", "racer"))
			}()
		}
		wg.Wait()

		succeeded := 0
		for _, err := range results {
			if err == nil {
				succeeded++
			}
		}
		assert.Equal(t, 1, succeeded)

		got, err := db.GetSellerByDiscordID(ctx, "3001")
		require.NoError(t, err)
		assert.Equal(t, "S-1", got.SellerID)
	})

	t.Run("concurrent creates for different users get distinct numbers", func(t *testing.T) {
		resetTable(ctx)

		var wg sync.WaitGroup
		var mu sync.Mutex
		numbers := map[int]bool{}
		for i := range 3 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				created, err := db.CreateSeller(ctx, newTestSeller(fmt.Sprintf("%d", 4000+i), fmt.Sprintf("user%d", i)))
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				numbers[created.SellerNumber] = true
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, numbers)
	})
}

func TestGetSellerByDiscordID(t *testing.T) {
	ctx := context.Background()

	t.Run("seller does not exist", func(t *testing.T) {
		resetTable(ctx)

		_, err := db.GetSellerByDiscordID(ctx, "missing")
		requireReason(t, err, onboarding.REASON_SELLER_DOES_NOT_EXIST)
	})

	t.Run("the counter item is never returned as a seller", func(t *testing.T) {
		resetTable(ctx)
		_, err := db.CreateSeller(ctx, newTestSeller("1001", "jan"))
		require.NoError(t, err)

		_, err = db.GetSellerByDiscordID(ctx, "SELLER")
		requireReason(t, err, onboarding.REASON_SELLER_DOES_NOT_EXIST)
	})
}

func TestFindSellerByContact(t *testing.T) {
	ctx := context.Background()

	t.Run("finds a seller whose handle contains a candidate", func(t *testing.T) {
		resetTable(ctx)
		_, err := db.CreateSeller(ctx, newTestSeller("1001", "sneakerjan"))
		require.NoError(t, err)

		got, err := db.FindSellerByContact(ctx, []string{"nobody", "jan"})
		require.NoError(t, err)
		assert.Equal(t, "1001", got.DiscordID)
	})

	t.Run("matching is case sensitive", func(t *testing.T) {
		resetTable(ctx)
		_, err := db.CreateSeller(ctx, newTestSeller("1001", "SneakerJan"))
		require.NoError(t, err)

		_, err = db.FindSellerByContact(ctx, []string{"sneakerjan"})
		requireReason(t, err, onboarding.REASON_SELLER_DOES_NOT_EXIST)
	})

	t.Run("quotes in candidates are matched literally", func(t *testing.T) {
		resetTable(ctx)
		_, err := db.CreateSeller(ctx, newTestSeller("1001", "o'brien"))
		require.NoError(t, err)
		_, err = db.CreateSeller(ctx, newTestSeller("1002", "obrien"))
		require.NoError(t, err)

		got, err := db.FindSellerByContact(ctx, []string{"o'brien"})
		require.NoError(t, err)
		assert.Equal(t, "1001", got.DiscordID)

		_, err = db.FindSellerByContact(ctx, []string{`' OR 1=1 --`})
		requireReason(t, err, onboarding.REASON_SELLER_DOES_NOT_EXIST)
	})

	t.Run("no candidates means no match", func(t *testing.T) {
		resetTable(ctx)

		_, err := db.FindSellerByContact(ctx, nil)
		requireReason(t, err, onboarding.REASON_SELLER_DOES_NOT_EXIST)
	})

	t.Run("no seller in the table", func(t *testing.T) {
		resetTable(ctx)

		_, err := db.FindSellerByContact(ctx, []string{"jan"})
		requireReason(t, err, onboarding.REASON_SELLER_DOES_NOT_EXIST)
	})
}
