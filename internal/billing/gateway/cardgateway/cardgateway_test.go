package cardgateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/henriquesd/dev-store/internal/billing/gateway"
)

func validCard() gateway.Card {
	return gateway.Card{
		Holder:       "Jane Roe",
		Number:       "4539148803436467",
		Expiration:   "12/29",
		SecurityCode: "123",
	}
}

func TestAuthorize(t *testing.T) {
	g := New(zap.NewNop())

	t.Run("valid card approved", func(t *testing.T) {
		res, err := g.Authorize(context.Background(), validCard(), 100)
		require.NoError(t, err)
		assert.True(t, res.Approved())
		assert.NotEmpty(t, res.Ref)
	})

	t.Run("refusals", func(t *testing.T) {
		testCases := []struct {
			name   string
			mutate func(*gateway.Card)
			reason string
		}{
			{"missing holder", func(c *gateway.Card) { c.Holder = " " }, "missing card holder"},
			{"bad luhn checksum", func(c *gateway.Card) { c.Number = "4539148803436468" }, "invalid card number"},
			{"too short", func(c *gateway.Card) { c.Number = "4111" }, "invalid card number"},
			{"non digits", func(c *gateway.Card) { c.Number = "4539a48803436467" }, "invalid card number"},
			{"expired", func(c *gateway.Card) { c.Expiration = "01/20" }, "card expired"},
			{"malformed expiry", func(c *gateway.Card) { c.Expiration = "13/29" }, "card expired"},
			{"short cvv", func(c *gateway.Card) { c.SecurityCode = "12" }, "invalid security code"},
			{"alpha cvv", func(c *gateway.Card) { c.SecurityCode = "12a" }, "invalid security code"},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				card := validCard()
				tc.mutate(&card)
				res, err := g.Authorize(context.Background(), card, 100)
				require.NoError(t, err, "a refusal is a verdict, not an error")
				assert.False(t, res.Approved())
				assert.Equal(t, tc.reason, res.Reason)
			})
		}
	})

	t.Run("zero amount refused", func(t *testing.T) {
		res, err := g.Authorize(context.Background(), validCard(), 0)
		require.NoError(t, err)
		assert.False(t, res.Approved())
	})
}

func TestCaptureAndCancel(t *testing.T) {
	g := New(zap.NewNop())

	auth, err := g.Authorize(context.Background(), validCard(), 80)
	require.NoError(t, err)
	require.True(t, auth.Approved())

	capture, err := g.Capture(context.Background(), auth.Ref, 80)
	require.NoError(t, err)
	assert.True(t, capture.Approved())

	void, err := g.Cancel(context.Background(), auth.Ref)
	require.NoError(t, err)
	assert.True(t, void.Approved())

	t.Run("empty ref refused", func(t *testing.T) {
		res, err := g.Capture(context.Background(), "", 80)
		require.NoError(t, err)
		assert.False(t, res.Approved())

		res, err = g.Cancel(context.Background(), "")
		require.NoError(t, err)
		assert.False(t, res.Approved())
	})
}

func TestExpirationValid(t *testing.T) {
	now := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)

	assert.True(t, expirationValid("03/26", now), "valid through the end of the expiry month")
	assert.True(t, expirationValid("04/26", now))
	assert.False(t, expirationValid("02/26", now))
	assert.False(t, expirationValid("3/2026", now))
	assert.False(t, expirationValid("0326", now))
}
