package domain

import "log/slog"

type PaymentIntentStatus string

const (
	IntentStatusRequiresMethod       PaymentIntentStatus = "requires_payment_method"
	IntentStatusRequiresConfirmation PaymentIntentStatus = "requires_confirmation"
	IntentStatusRequiresAction       PaymentIntentStatus = "requires_action"
	IntentStatusProcessing           PaymentIntentStatus = "processing"
	IntentStatusSucceeded            PaymentIntentStatus = "succeeded"
	IntentStatusCanceled             PaymentIntentStatus = "canceled"
)

// PaymentIntent is a processor-side payment attempt. ClientSecret is single
// use and must stay inside the active flow: it is excluded from JSON and logs.
type PaymentIntent struct {
	ID           string              `json:"id"`
	ClientSecret string              `json:"-"`
	Amount       int64               `json:"amount"`
	Currency     string              `json:"currency"`
	Status       PaymentIntentStatus `json:"status"`
	Metadata     map[string]string   `json:"metadata,omitempty"`
}

// LogValue keeps the client secret out of structured logs.
func (p PaymentIntent) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", p.ID),
		slog.Int64("amount", p.Amount),
		slog.String("currency", p.Currency),
		slog.String("status", string(p.Status)),
	)
}

// PaymentMethod is a tokenized card. Only display fields are kept.
type PaymentMethod struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
}

// CardDetails carries a raw card on its way to the processor. It is never
// persisted.
type CardDetails struct {
	Number   string
	ExpMonth int
	ExpYear  int
	CVC      string
}

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusSucceeded RefundStatus = "succeeded"
	RefundStatusFailed    RefundStatus = "failed"
)

type Refund struct {
	ID              string       `json:"id"`
	PaymentIntentID string       `json:"payment_intent_id"`
	Amount          int64        `json:"amount"`
	Status          RefundStatus `json:"status"`
}

// PaymentResult is the outcome of one payment attempt. On failure Err holds
// the gateway error and Booking reflects the FAILED payment status.
type PaymentResult struct {
	Success bool
	Intent  *PaymentIntent
	Booking *Booking
	Err     error
}
