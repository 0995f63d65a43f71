package stripegw

import (
	"errors"
	"testing"

	"github.com/Domenick1991/staybooking/internal/domain"
	"github.com/stripe/stripe-go/v76"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntentIDFromSecret(t *testing.T) {
	id, err := IntentIDFromSecret("pi_3Abc_secret_xyz")
	require.NoError(t, err)
	assert.Equal(t, "pi_3Abc", id)

	for _, bad := range []string{"", "pi_3Abc", "_secret_xyz"} {
		_, err := IntentIDFromSecret(bad)
		var gwErr *domain.GatewayError
		assert.ErrorAs(t, err, &gwErr, bad)
	}
}

func TestMapError_CardError(t *testing.T) {
	err := mapError("confirm intent", &stripe.Error{
		Type:        stripe.ErrorTypeCard,
		Code:        stripe.ErrorCodeCardDeclined,
		DeclineCode: stripe.DeclineCodeInsufficientFunds,
		Msg:         "Your card has insufficient funds.",
	})

	var gwErr *domain.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.True(t, gwErr.Declined)
	assert.Equal(t, "insufficient_funds", gwErr.Code)
	assert.Equal(t, "Your card has insufficient funds.", gwErr.Message)
}

func TestMapError_APIError(t *testing.T) {
	err := mapError("create intent", &stripe.Error{Type: stripe.ErrorTypeAPI, Msg: "internal"})

	var gwErr *domain.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.False(t, gwErr.Declined)
}

func TestMapError_Transport(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := mapError("create intent", cause)

	var gwErr *domain.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.ErrorIs(t, err, cause)
	assert.False(t, gwErr.Declined)
}

func TestToIntent(t *testing.T) {
	intent := toIntent(&stripe.PaymentIntent{
		ID:           "pi_1",
		ClientSecret: "pi_1_secret_x",
		Amount:       150000,
		Currency:     stripe.CurrencyUSD,
		Status:       stripe.PaymentIntentStatusRequiresAction,
		Metadata:     map[string]string{"booking_id": "b-1"},
	})

	assert.Equal(t, domain.IntentStatusRequiresAction, intent.Status)
	assert.Equal(t, "usd", intent.Currency)
	assert.Equal(t, int64(150000), intent.Amount)
	assert.Equal(t, "b-1", intent.Metadata["booking_id"])
}

func TestRefundStatus(t *testing.T) {
	assert.Equal(t, domain.RefundStatusSucceeded, refundStatus(stripe.RefundStatusSucceeded))
	assert.Equal(t, domain.RefundStatusFailed, refundStatus(stripe.RefundStatusFailed))
	assert.Equal(t, domain.RefundStatusPending, refundStatus(stripe.RefundStatusPending))
}
