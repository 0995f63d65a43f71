package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Domenick1991/staybooking/internal/cache"
	"github.com/Domenick1991/staybooking/internal/card"
	"github.com/Domenick1991/staybooking/internal/domain"
	"github.com/Domenick1991/staybooking/internal/service/booking"
)

const DefaultCurrency = "usd"

// gatewayCallsPerFlow is the most processor calls a flow makes while holding
// the payment lock: retrieve the previous intent, create, confirm, then
// cancel or refund.
const gatewayCallsPerFlow = 4

type PaymentUseCase interface {
	ProcessPayment(ctx context.Context, bookingID, paymentMethodID string) (*domain.PaymentResult, error)
	RetryPayment(ctx context.Context, bookingID string) (*domain.Booking, error)
	Reconcile(ctx context.Context, bookingID string) (*ReconcileResult, error)
	RefundBooking(ctx context.Context, bookingID string, amount *float64) (*domain.Refund, error)
	Refund(ctx context.Context, paymentIntentID string, amount *float64) (*domain.Refund, error)
	TokenizeCard(ctx context.Context, details domain.CardDetails) (*domain.PaymentMethod, error)
}

// ReconcileResult reports what the processor says about a booking's last
// payment attempt and whether the booking moved because of it.
type ReconcileResult struct {
	Booking *domain.Booking
	Intent  *domain.PaymentIntent
	Updated bool
}

// Orchestrator runs the payment flow for one booking at a time: intent
// creation, confirmation and the resulting booking transition. Gateway and
// store calls are issued strictly one after another.
type Orchestrator struct {
	bookings       booking.BookingUseCase
	gateway        Gateway
	locker         Locker
	currency       string
	lockTTL        time.Duration
	gatewayTimeout time.Duration
	log            *slog.Logger
}

type Option func(*Orchestrator)

func WithLocker(locker Locker) Option {
	return func(o *Orchestrator) {
		o.locker = locker
	}
}

func WithCurrency(currency string) Option {
	return func(o *Orchestrator) {
		if currency != "" {
			o.currency = strings.ToLower(currency)
		}
	}
}

func WithLockTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) {
		o.lockTTL = ttl
	}
}

// WithGatewayTimeout bounds every single processor call. Zero leaves the
// caller's context as the only deadline.
func WithGatewayTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		o.gatewayTimeout = timeout
	}
}

func NewOrchestrator(bookings booking.BookingUseCase, gateway Gateway, log *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		bookings: bookings,
		gateway:  gateway,
		locker:   cache.NewLocalLocker(),
		currency: DefaultCurrency,
		lockTTL:  time.Minute,
		log:      log,
	}
	for _, opt := range opts {
		opt(o)
	}
	if floor := gatewayCallsPerFlow * o.gatewayTimeout; o.lockTTL <= floor {
		o.lockTTL = floor + o.gatewayTimeout
	}
	return o
}

type flow struct {
	bookingID       string
	paymentMethodID string
	booking         *domain.Booking
	intent          *domain.PaymentIntent
	// confirmed is set once the processor answered the confirmation, so the
	// intent's outcome is known.
	confirmed bool
	// recovered is set when an earlier attempt turned out to have succeeded.
	recovered bool
}

type step func(ctx context.Context, f *flow) error

// ProcessPayment charges the booking's stored total with the given payment
// method. Requests that are invalid up front (unknown booking, wrong state)
// return an error and never reach the processor. Processor failures return
// a failed PaymentResult with the booking marked FAILED and retryable.
func (o *Orchestrator) ProcessPayment(ctx context.Context, bookingID, paymentMethodID string) (*domain.PaymentResult, error) {
	if strings.TrimSpace(paymentMethodID) == "" {
		return nil, domain.NewValidationError("payment_method_id", "is required")
	}

	f := &flow{bookingID: bookingID, paymentMethodID: paymentMethodID}
	if err := o.checkPayable(ctx, f); err != nil {
		return nil, err
	}

	unlock, err := o.lock(ctx, f.booking, "process payment")
	if err != nil {
		return nil, err
	}
	defer unlock()

	for _, run := range []step{o.checkPayable, o.resumePrevious, o.createIntent, o.confirmIntent} {
		if err := run(ctx, f); err != nil {
			var gwErr *domain.GatewayError
			if errors.As(err, &gwErr) {
				return o.fail(ctx, f, gwErr)
			}
			return nil, err
		}
		if f.recovered {
			break
		}
	}
	return o.succeed(ctx, f)
}

// checkPayable loads the booking and rejects it unless a payment may start.
// It runs once before and once after taking the lock, so a flow that
// completed in between is observed.
func (o *Orchestrator) checkPayable(ctx context.Context, f *flow) error {
	b, err := o.bookings.GetBooking(ctx, f.bookingID)
	if err != nil {
		return err
	}
	if !b.Payable() {
		return domain.NewStateError("process payment", b)
	}
	f.booking = b
	return nil
}

// resumePrevious checks the booking's last intent before a new one is
// created. An attempt that failed in transit may still have charged the card.
func (o *Orchestrator) resumePrevious(ctx context.Context, f *flow) error {
	intent, err := o.previousIntent(ctx, f.booking, "process payment")
	if err != nil || intent == nil {
		return err
	}
	f.intent = intent
	f.recovered = true
	o.log.InfoContext(ctx, "previous payment attempt succeeded", "booking_id", f.booking.ID, "intent", *intent)
	return nil
}

// previousIntent asks the processor about b's last intent. It returns the
// intent when it succeeded, a StateError while it can still complete, and
// nil when a new attempt cannot double charge.
func (o *Orchestrator) previousIntent(ctx context.Context, b *domain.Booking, op string) (*domain.PaymentIntent, error) {
	if b.PaymentIntentID == "" {
		return nil, nil
	}

	gctx, cancel := o.gatewayContext(ctx)
	defer cancel()
	intent, err := o.gateway.RetrieveIntent(gctx, b.PaymentIntentID)
	if domain.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, asGatewayError("retrieve intent", err)
	}
	if intent == nil {
		return nil, &domain.GatewayError{Op: "retrieve intent", Message: "processor returned no intent"}
	}
	if owner, ok := intent.Metadata["booking_id"]; ok && owner != b.ID {
		return nil, fmt.Errorf("intent %s belongs to booking %s, not %s", intent.ID, owner, b.ID)
	}

	switch intent.Status {
	case domain.IntentStatusSucceeded:
		return intent, nil
	case domain.IntentStatusProcessing, domain.IntentStatusRequiresAction:
		stateErr := domain.NewStateError(op, b)
		stateErr.Reason = fmt.Sprintf("previous payment attempt %s is %s", intent.ID, intent.Status)
		return nil, stateErr
	case domain.IntentStatusCanceled:
		return nil, nil
	}

	// Never confirmed: cancel it so it cannot be confirmed later.
	cctx, ccancel := o.gatewayContext(ctx)
	defer ccancel()
	if _, err := o.gateway.CancelIntent(cctx, intent.ID); err != nil {
		o.log.WarnContext(ctx, "failed to cancel abandoned intent", "booking_id", b.ID, "intent_id", intent.ID, "error", err)
	}
	return nil, nil
}

func (o *Orchestrator) createIntent(ctx context.Context, f *flow) error {
	gctx, cancel := o.gatewayContext(ctx)
	defer cancel()

	amount := domain.ToMinorUnits(f.booking.TotalPrice)
	metadata := map[string]string{
		"booking_id":  f.booking.ID,
		"destination": f.booking.Destination,
		"user_id":     f.booking.UserID,
	}
	intent, err := o.gateway.CreateIntent(gctx, amount, o.currency, metadata)
	if err != nil {
		return asGatewayError("create intent", err)
	}
	if intent == nil {
		return &domain.GatewayError{Op: "create intent", Message: "processor returned no intent"}
	}
	f.intent = intent
	o.log.InfoContext(ctx, "payment intent created", "booking_id", f.booking.ID, "intent", *intent)
	return nil
}

// confirmIntent succeeds only when the processor reports the intent as
// succeeded. requires_action, processing and every other status count as a
// failed attempt.
func (o *Orchestrator) confirmIntent(ctx context.Context, f *flow) error {
	gctx, cancel := o.gatewayContext(ctx)
	defer cancel()

	intent, err := o.gateway.Confirm(gctx, f.intent.ClientSecret, f.paymentMethodID)
	if err != nil {
		return asGatewayError("confirm intent", err)
	}
	if intent == nil {
		return &domain.GatewayError{Op: "confirm intent", Message: "processor returned no intent"}
	}
	f.intent = intent
	f.confirmed = true
	if intent.Status != domain.IntentStatusSucceeded {
		return &domain.GatewayError{
			Op:      "confirm intent",
			Code:    string(intent.Status),
			Message: fmt.Sprintf("payment not completed, intent is %s", intent.Status),
		}
	}
	return nil
}

// succeed records the charge. The charge already happened, so the write
// runs even if the caller has gone away. If the booking can no longer be
// confirmed the charge is refunded.
func (o *Orchestrator) succeed(ctx context.Context, f *flow) (*domain.PaymentResult, error) {
	sctx := context.WithoutCancel(ctx)

	updated, err := o.bookings.MarkPaid(sctx, f.booking.ID, f.intent.ID)
	if err == nil {
		o.log.InfoContext(ctx, "payment completed", "booking_id", f.booking.ID, "intent", *f.intent)
		return &domain.PaymentResult{Success: true, Intent: f.intent, Booking: updated}, nil
	}
	if !domain.IsStateError(err) {
		return nil, fmt.Errorf("record payment %s for booking %s: %w", f.intent.ID, f.booking.ID, err)
	}

	if latest, getErr := o.bookings.GetBooking(sctx, f.booking.ID); getErr == nil &&
		latest.PaymentStatus == domain.PaymentStatusCompleted && latest.PaymentIntentID == f.intent.ID {
		return &domain.PaymentResult{Success: true, Intent: f.intent, Booking: latest}, nil
	}

	o.log.ErrorContext(ctx, "charged booking can no longer be confirmed, refunding", "booking_id", f.booking.ID, "intent", *f.intent, "error", err)
	gctx, cancel := o.gatewayContext(sctx)
	defer cancel()
	if _, refundErr := o.gateway.Refund(gctx, f.intent.ID, nil); refundErr != nil {
		o.log.ErrorContext(ctx, "compensating refund failed", "booking_id", f.booking.ID, "intent_id", f.intent.ID, "error", refundErr)
	}
	return nil, err
}

// fail marks the attempt FAILED and returns a failure result. A declined or
// unfinished intent is cancelled at the processor so the next attempt starts
// from a fresh one. Intents that failed in transit are left alone since
// they may have gone through; the next attempt and Reconcile look them up.
func (o *Orchestrator) fail(ctx context.Context, f *flow, gwErr *domain.GatewayError) (*domain.PaymentResult, error) {
	sctx := context.WithoutCancel(ctx)

	intentID := ""
	if f.intent != nil {
		intentID = f.intent.ID
	}
	if intentID != "" && (gwErr.Declined || f.confirmed) {
		gctx, cancel := o.gatewayContext(sctx)
		if _, err := o.gateway.CancelIntent(gctx, intentID); err != nil {
			o.log.WarnContext(ctx, "failed to cancel unfinished intent", "booking_id", f.booking.ID, "intent_id", intentID, "error", err)
		}
		cancel()
	}

	updated, err := o.bookings.MarkPaymentFailed(sctx, f.booking.ID, intentID)
	if err != nil {
		return nil, fmt.Errorf("record failed payment for booking %s: %w", f.booking.ID, err)
	}

	o.log.WarnContext(ctx, "payment failed", "booking_id", f.booking.ID, "intent_id", intentID, "error", gwErr)
	return &domain.PaymentResult{Success: false, Intent: f.intent, Booking: updated, Err: gwErr}, nil
}

// RetryPayment reopens a FAILED booking for payment. If the failed attempt
// actually went through, the booking is marked paid instead.
func (o *Orchestrator) RetryPayment(ctx context.Context, bookingID string) (*domain.Booking, error) {
	b, err := o.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.BookingStatusPending || b.PaymentStatus != domain.PaymentStatusFailed {
		return nil, domain.NewStateError("retry payment", b)
	}

	unlock, err := o.lock(ctx, b, "retry payment")
	if err != nil {
		return nil, err
	}
	defer unlock()

	intent, err := o.previousIntent(ctx, b, "retry payment")
	if err != nil {
		return nil, err
	}
	if intent != nil {
		o.log.InfoContext(ctx, "previous payment attempt succeeded", "booking_id", b.ID, "intent", *intent)
		return o.bookings.MarkPaid(context.WithoutCancel(ctx), b.ID, intent.ID)
	}
	return o.bookings.RetryPayment(ctx, bookingID)
}

// Reconcile asks the processor about the booking's last payment attempt.
// A succeeded intent on a still-payable booking marks it paid; any other
// status is reported without touching the booking.
func (o *Orchestrator) Reconcile(ctx context.Context, bookingID string) (*ReconcileResult, error) {
	b, err := o.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.PaymentIntentID == "" {
		stateErr := domain.NewStateError("reconcile", b)
		stateErr.Reason = "no payment attempt recorded"
		return nil, stateErr
	}
	if !b.Payable() {
		return &ReconcileResult{Booking: b}, nil
	}

	unlock, err := o.lock(ctx, b, "reconcile")
	if err != nil {
		return nil, err
	}
	defer unlock()

	gctx, cancel := o.gatewayContext(ctx)
	defer cancel()
	intent, err := o.gateway.RetrieveIntent(gctx, b.PaymentIntentID)
	if err != nil {
		return nil, asGatewayError("retrieve intent", err)
	}
	if intent == nil {
		return nil, &domain.GatewayError{Op: "retrieve intent", Message: "processor returned no intent"}
	}
	if owner, ok := intent.Metadata["booking_id"]; ok && owner != b.ID {
		return nil, fmt.Errorf("intent %s belongs to booking %s, not %s", intent.ID, owner, b.ID)
	}

	result := &ReconcileResult{Booking: b, Intent: intent}
	if intent.Status != domain.IntentStatusSucceeded {
		return result, nil
	}

	updated, err := o.bookings.MarkPaid(context.WithoutCancel(ctx), b.ID, intent.ID)
	if err != nil {
		return nil, err
	}
	o.log.InfoContext(ctx, "payment reconciled", "booking_id", b.ID, "intent", *intent)
	result.Booking = updated
	result.Updated = true
	return result, nil
}

// ReconcileFailed runs Reconcile over open bookings whose last attempt
// failed. Per-booking errors are logged and skipped.
func (o *Orchestrator) ReconcileFailed(ctx context.Context, limit int) (int, error) {
	failed, err := o.bookings.ListFailedPayments(ctx, limit)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, b := range failed {
		if b.PaymentIntentID == "" {
			continue
		}
		res, err := o.Reconcile(ctx, b.ID)
		if err != nil {
			o.log.WarnContext(ctx, "reconcile failed", "booking_id", b.ID, "error", err)
			continue
		}
		if res.Updated {
			recovered++
		}
	}
	return recovered, nil
}

// RefundBooking refunds amount (major units) of a paid booking, or the whole
// remaining balance when amount is nil. The booking status is not changed.
func (o *Orchestrator) RefundBooking(ctx context.Context, bookingID string, amount *float64) (*domain.Refund, error) {
	b, err := o.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.PaymentStatus != domain.PaymentStatusCompleted || b.PaymentIntentID == "" {
		return nil, domain.NewStateError("refund", b)
	}

	unlock, err := o.lock(ctx, b, "refund")
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Re-read under the lock so a refund that just finished is counted.
	b, err = o.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	remaining := b.RefundableAmount()
	major := remaining
	if amount != nil {
		if *amount <= 0 {
			return nil, domain.NewValidationError("amount", "must be positive")
		}
		major = domain.RoundMajor(*amount)
	}
	if remaining <= 0 {
		return nil, domain.NewValidationError("amount", "booking is fully refunded")
	}
	if major > remaining {
		return nil, domain.NewValidationError("amount", fmt.Sprintf("exceeds refundable balance %.2f", remaining))
	}

	minor := domain.ToMinorUnits(major)
	gctx, cancel := o.gatewayContext(ctx)
	defer cancel()
	refund, err := o.gateway.Refund(gctx, b.PaymentIntentID, &minor)
	if err != nil {
		return nil, asGatewayError("refund", err)
	}

	if _, err := o.bookings.RecordRefund(context.WithoutCancel(ctx), b.ID, major); err != nil {
		o.log.ErrorContext(ctx, "refund issued but not recorded", "booking_id", b.ID, "refund_id", refund.ID, "error", err)
		return nil, fmt.Errorf("refund %s issued but not recorded: %w", refund.ID, err)
	}
	o.log.InfoContext(ctx, "booking refunded", "booking_id", b.ID, "refund_id", refund.ID, "amount", major)
	return refund, nil
}

// Refund refunds a processor intent directly, without any booking
// bookkeeping.
func (o *Orchestrator) Refund(ctx context.Context, paymentIntentID string, amount *float64) (*domain.Refund, error) {
	if strings.TrimSpace(paymentIntentID) == "" {
		return nil, domain.NewValidationError("payment_intent_id", "is required")
	}
	var minor *int64
	if amount != nil {
		if *amount <= 0 {
			return nil, domain.NewValidationError("amount", "must be positive")
		}
		m := domain.ToMinorUnits(*amount)
		minor = &m
	}

	gctx, cancel := o.gatewayContext(ctx)
	defer cancel()
	refund, err := o.gateway.Refund(gctx, paymentIntentID, minor)
	if err != nil {
		return nil, asGatewayError("refund", err)
	}
	return refund, nil
}

// TokenizeCard checks the card number syntactically and hands it to the
// processor. The raw number goes no further than the gateway call.
func (o *Orchestrator) TokenizeCard(ctx context.Context, details domain.CardDetails) (*domain.PaymentMethod, error) {
	if !card.IsValidNumber(details.Number) {
		return nil, domain.NewValidationError("number", "invalid card number")
	}
	if details.ExpMonth < 1 || details.ExpMonth > 12 {
		return nil, domain.NewValidationError("exp_month", "must be between 1 and 12")
	}
	if details.ExpYear < 2000 {
		return nil, domain.NewValidationError("exp_year", "must be a four digit year")
	}

	gctx, cancel := o.gatewayContext(ctx)
	defer cancel()
	method, err := o.gateway.CreatePaymentMethod(gctx, details)
	if err != nil {
		return nil, asGatewayError("create payment method", err)
	}
	return method, nil
}

func (o *Orchestrator) lock(ctx context.Context, b *domain.Booking, op string) (func(), error) {
	token, err := o.locker.AcquirePaymentLock(ctx, b.ID, o.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire payment lock: %w", err)
	}
	if token == "" {
		stateErr := domain.NewStateError(op, b)
		stateErr.Reason = "another payment operation is in progress"
		return nil, stateErr
	}
	return func() {
		if err := o.locker.ReleasePaymentLock(context.WithoutCancel(ctx), b.ID, token); err != nil {
			o.log.WarnContext(ctx, "failed to release payment lock", "booking_id", b.ID, "error", err)
		}
	}, nil
}

func (o *Orchestrator) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.gatewayTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.gatewayTimeout)
}

func asGatewayError(op string, err error) *domain.GatewayError {
	var gwErr *domain.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return &domain.GatewayError{Op: op, Err: err}
}

var _ PaymentUseCase = (*Orchestrator)(nil)
