// Package stripegw talks to Stripe through its own API client instance.
package stripegw

import (
	"context"
	"errors"
	"strings"

	"github.com/Domenick1991/staybooking/internal/domain"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type Gateway struct {
	api *client.API
}

func New(secretKey string) *Gateway {
	return &Gateway{api: client.New(secretKey, nil)}
}

func (g *Gateway) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*domain.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(strings.ToLower(currency)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, mapError("create intent", err)
	}
	return toIntent(pi), nil
}

func (g *Gateway) Confirm(ctx context.Context, clientSecret, paymentMethodID string) (*domain.PaymentIntent, error) {
	id, err := IntentIDFromSecret(clientSecret)
	if err != nil {
		return nil, err
	}
	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethodID),
	}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Confirm(id, params)
	if err != nil {
		return nil, mapError("confirm intent", err)
	}
	return toIntent(pi), nil
}

func (g *Gateway) RetrieveIntent(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		if isMissing(err) {
			return nil, domain.NewNotFoundError("payment intent", id)
		}
		return nil, mapError("retrieve intent", err)
	}
	return toIntent(pi), nil
}

func (g *Gateway) CancelIntent(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Cancel(id, params)
	if err != nil {
		return nil, mapError("cancel intent", err)
	}
	return toIntent(pi), nil
}

func (g *Gateway) Refund(ctx context.Context, intentID string, amount *int64) (*domain.Refund, error) {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(intentID)}
	if amount != nil {
		params.Amount = stripe.Int64(*amount)
	}
	params.Context = ctx

	r, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, mapError("refund", err)
	}
	return &domain.Refund{
		ID:              r.ID,
		PaymentIntentID: intentID,
		Amount:          r.Amount,
		Status:          refundStatus(r.Status),
	}, nil
}

func (g *Gateway) CreatePaymentMethod(ctx context.Context, details domain.CardDetails) (*domain.PaymentMethod, error) {
	params := &stripe.PaymentMethodParams{
		Type: stripe.String(string(stripe.PaymentMethodTypeCard)),
		Card: &stripe.PaymentMethodCardParams{
			Number:   stripe.String(strings.Join(strings.Fields(details.Number), "")),
			ExpMonth: stripe.Int64(int64(details.ExpMonth)),
			ExpYear:  stripe.Int64(int64(details.ExpYear)),
		},
	}
	if details.CVC != "" {
		params.Card.CVC = stripe.String(details.CVC)
	}
	params.Context = ctx

	pm, err := g.api.PaymentMethods.New(params)
	if err != nil {
		return nil, mapError("create payment method", err)
	}
	method := &domain.PaymentMethod{ID: pm.ID, Type: string(pm.Type)}
	if pm.Card != nil {
		method.Brand = string(pm.Card.Brand)
		method.Last4 = pm.Card.Last4
		method.ExpMonth = int(pm.Card.ExpMonth)
		method.ExpYear = int(pm.Card.ExpYear)
	}
	return method, nil
}

// IntentIDFromSecret recovers the intent id from a client secret of the
// form <id>_secret_<nonce>.
func IntentIDFromSecret(clientSecret string) (string, error) {
	id, _, ok := strings.Cut(clientSecret, "_secret_")
	if !ok || id == "" {
		return "", &domain.GatewayError{Op: "confirm intent", Code: "invalid_client_secret", Message: "malformed client secret"}
	}
	return id, nil
}

func toIntent(pi *stripe.PaymentIntent) *domain.PaymentIntent {
	return &domain.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       domain.PaymentIntentStatus(pi.Status),
		Metadata:     pi.Metadata,
	}
}

func refundStatus(s stripe.RefundStatus) domain.RefundStatus {
	switch s {
	case stripe.RefundStatusSucceeded:
		return domain.RefundStatusSucceeded
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		return domain.RefundStatusFailed
	}
	return domain.RefundStatusPending
}

func isMissing(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing
}

func mapError(op string, err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return &domain.GatewayError{Op: op, Err: err}
	}
	code := string(stripeErr.Code)
	if stripeErr.DeclineCode != "" {
		code = string(stripeErr.DeclineCode)
	}
	return &domain.GatewayError{
		Op:       op,
		Code:     code,
		Message:  stripeErr.Msg,
		Declined: stripeErr.Type == stripe.ErrorTypeCard,
		Err:      err,
	}
}
