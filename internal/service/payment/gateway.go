package payment

import (
	"context"
	"time"

	"github.com/Domenick1991/staybooking/internal/domain"
)

// Gateway is the card processor as seen by the orchestrator. Amounts are
// integer minor units. Implementations report processor-side failures as
// *domain.GatewayError.
type Gateway interface {
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*domain.PaymentIntent, error)
	// Confirm attaches the payment method and confirms. A declined card is
	// an error; a returned intent may still be in a non-final status.
	Confirm(ctx context.Context, clientSecret, paymentMethodID string) (*domain.PaymentIntent, error)
	RetrieveIntent(ctx context.Context, id string) (*domain.PaymentIntent, error)
	CancelIntent(ctx context.Context, id string) (*domain.PaymentIntent, error)
	// Refund returns amount minor units, or the full remaining amount when
	// amount is nil.
	Refund(ctx context.Context, intentID string, amount *int64) (*domain.Refund, error)
	CreatePaymentMethod(ctx context.Context, card domain.CardDetails) (*domain.PaymentMethod, error)
}

// Locker guards a booking against concurrent payment flows. An empty token
// means the lock is held elsewhere.
type Locker interface {
	AcquirePaymentLock(ctx context.Context, bookingID string, ttl time.Duration) (string, error)
	ReleasePaymentLock(ctx context.Context, bookingID, token string) error
}
