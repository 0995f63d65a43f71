// Package sandbox is an in-process card processor for local runs and tests.
// It follows the processor's test-card conventions: pm_card_visa succeeds,
// pm_card_chargeDeclined is declined, pm_card_authenticationRequired needs
// customer action.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Domenick1991/staybooking/internal/card"
	"github.com/Domenick1991/staybooking/internal/domain"
	"github.com/google/uuid"
)

type outcome int

const (
	outcomeSucceed outcome = iota
	outcomeDecline
	outcomeAction
)

const (
	MethodVisa                   = "pm_card_visa"
	MethodDeclined               = "pm_card_chargeDeclined"
	MethodAuthenticationRequired = "pm_card_authenticationRequired"
)

// Numbers that tokenize into failing methods; any other Luhn-valid number
// succeeds.
var cardOutcomes = map[string]outcome{
	"4000000000000002": outcomeDecline,
	"4000002500003155": outcomeAction,
}

type intentRecord struct {
	intent   domain.PaymentIntent
	refunded int64
}

type Gateway struct {
	mu      sync.Mutex
	intents map[string]*intentRecord
	methods map[string]outcome
}

func New() *Gateway {
	return &Gateway{
		intents: make(map[string]*intentRecord),
		methods: map[string]outcome{
			MethodVisa:                   outcomeSucceed,
			MethodDeclined:               outcomeDecline,
			MethodAuthenticationRequired: outcomeAction,
		},
	}
}

func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (g *Gateway) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*domain.PaymentIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.GatewayError{Op: "create intent", Err: err}
	}
	if amount <= 0 {
		return nil, &domain.GatewayError{Op: "create intent", Code: "amount_too_small", Message: "amount must be positive"}
	}

	id := newID("pi")
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	rec := &intentRecord{intent: domain.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Amount:       amount,
		Currency:     strings.ToLower(currency),
		Status:       domain.IntentStatusRequiresMethod,
		Metadata:     md,
	}}

	g.mu.Lock()
	g.intents[id] = rec
	g.mu.Unlock()

	out := rec.intent
	return &out, nil
}

func (g *Gateway) Confirm(ctx context.Context, clientSecret, paymentMethodID string) (*domain.PaymentIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.GatewayError{Op: "confirm intent", Err: err}
	}
	id, _, ok := strings.Cut(clientSecret, "_secret_")
	if !ok {
		return nil, &domain.GatewayError{Op: "confirm intent", Code: "invalid_client_secret", Message: "malformed client secret"}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, found := g.intents[id]
	if !found || rec.intent.ClientSecret != clientSecret {
		return nil, &domain.GatewayError{Op: "confirm intent", Code: "resource_missing", Message: "no such payment intent"}
	}
	switch rec.intent.Status {
	case domain.IntentStatusRequiresMethod, domain.IntentStatusRequiresConfirmation:
	default:
		return nil, &domain.GatewayError{Op: "confirm intent", Code: "payment_intent_unexpected_state", Message: fmt.Sprintf("intent is %s", rec.intent.Status)}
	}

	result, known := g.methods[paymentMethodID]
	if !known {
		return nil, &domain.GatewayError{Op: "confirm intent", Code: "resource_missing", Message: "no such payment method"}
	}
	switch result {
	case outcomeDecline:
		rec.intent.Status = domain.IntentStatusRequiresMethod
		return nil, &domain.GatewayError{Op: "confirm intent", Code: "card_declined", Message: "Your card was declined.", Declined: true}
	case outcomeAction:
		rec.intent.Status = domain.IntentStatusRequiresAction
	default:
		rec.intent.Status = domain.IntentStatusSucceeded
	}
	out := rec.intent
	return &out, nil
}

func (g *Gateway) RetrieveIntent(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.intents[id]
	if !ok {
		return nil, domain.NewNotFoundError("payment intent", id)
	}
	out := rec.intent
	return &out, nil
}

func (g *Gateway) CancelIntent(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.intents[id]
	if !ok {
		return nil, domain.NewNotFoundError("payment intent", id)
	}
	if rec.intent.Status == domain.IntentStatusSucceeded || rec.intent.Status == domain.IntentStatusProcessing {
		return nil, &domain.GatewayError{Op: "cancel intent", Code: "payment_intent_unexpected_state", Message: fmt.Sprintf("intent is %s", rec.intent.Status)}
	}
	rec.intent.Status = domain.IntentStatusCanceled
	out := rec.intent
	return &out, nil
}

func (g *Gateway) Refund(ctx context.Context, intentID string, amount *int64) (*domain.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.intents[intentID]
	if !ok {
		return nil, domain.NewNotFoundError("payment intent", intentID)
	}
	if rec.intent.Status != domain.IntentStatusSucceeded {
		return nil, &domain.GatewayError{Op: "refund", Code: "charge_not_refundable", Message: "intent has no successful charge"}
	}

	remaining := rec.intent.Amount - rec.refunded
	value := remaining
	if amount != nil {
		value = *amount
	}
	if value <= 0 || value > remaining {
		return nil, &domain.GatewayError{Op: "refund", Code: "amount_too_large", Message: fmt.Sprintf("refund of %d exceeds remaining %d", value, remaining)}
	}
	rec.refunded += value

	return &domain.Refund{
		ID:              newID("re"),
		PaymentIntentID: intentID,
		Amount:          value,
		Status:          domain.RefundStatusSucceeded,
	}, nil
}

func (g *Gateway) CreatePaymentMethod(ctx context.Context, details domain.CardDetails) (*domain.PaymentMethod, error) {
	number := strings.Join(strings.Fields(details.Number), "")
	if !card.IsValidNumber(number) {
		return nil, &domain.GatewayError{Op: "create payment method", Code: "incorrect_number", Message: "Your card number is incorrect.", Declined: true}
	}

	id := newID("pm")
	g.mu.Lock()
	g.methods[id] = cardOutcomes[number]
	g.mu.Unlock()

	return &domain.PaymentMethod{
		ID:       id,
		Type:     "card",
		Brand:    brand(number),
		Last4:    card.Last4(number),
		ExpMonth: details.ExpMonth,
		ExpYear:  details.ExpYear,
	}, nil
}

func brand(number string) string {
	switch {
	case strings.HasPrefix(number, "4"):
		return "visa"
	case strings.HasPrefix(number, "34"), strings.HasPrefix(number, "37"):
		return "amex"
	case strings.HasPrefix(number, "5"), strings.HasPrefix(number, "2"):
		return "mastercard"
	}
	return "unknown"
}
