package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Domenick1991/staybooking/internal/domain"
	"github.com/Domenick1991/staybooking/internal/kafka"
	"github.com/Domenick1991/staybooking/internal/repository"
	"github.com/google/uuid"
)

type BookingUseCase interface {
	Quote(input QuoteInput) (float64, error)
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	ListUserBookings(ctx context.Context, userID string) ([]domain.Booking, error)
	ListFailedPayments(ctx context.Context, limit int) ([]domain.Booking, error)
	ListBookings(ctx context.Context, status domain.BookingStatus, limit int) ([]domain.Booking, error)
	Stats(ctx context.Context) (*domain.BookingStats, error)
	MarkPaid(ctx context.Context, id, paymentIntentID string) (*domain.Booking, error)
	MarkPaymentFailed(ctx context.Context, id, paymentIntentID string) (*domain.Booking, error)
	CancelBooking(ctx context.Context, id string) (*domain.Booking, error)
	RetryPayment(ctx context.Context, id string) (*domain.Booking, error)
	RecordRefund(ctx context.Context, id string, amount float64) (*domain.Booking, error)
}

type Pricer interface {
	ComputeTotalPrice(start, end time.Time, travelers int, room domain.RoomType) (float64, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// BookingService owns the booking state machine. Every transition is a
// read, a precondition check and a versioned update, so a concurrent writer
// makes the loser fail with a StateError instead of overwriting.
type BookingService struct {
	bookings           repository.BookingRepository
	pricer             Pricer
	producer           Producer
	eventsTopic        string
	notificationsTopic string
	log                *slog.Logger
	now                func() time.Time
	newID              func() string
}

type QuoteInput struct {
	StartDate time.Time
	EndDate   time.Time
	Travelers int
	RoomType  domain.RoomType
}

type CreateBookingInput struct {
	UserID      string
	Destination string
	StartDate   time.Time
	EndDate     time.Time
	Travelers   int
	RoomType    domain.RoomType
}

type BookingServiceOption func(*BookingService)

// WithProducer enables booking events on topic.
func WithProducer(producer Producer, topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = producer
		s.eventsTopic = topic
	}
}

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func NewBookingService(bookings repository.BookingRepository, pricer Pricer, log *slog.Logger, opts ...BookingServiceOption) *BookingService {
	service := &BookingService{
		bookings: bookings,
		pricer:   pricer,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) Quote(input QuoteInput) (float64, error) {
	if input.Travelers < 1 {
		return 0, domain.NewValidationError("travelers", "must be at least 1")
	}
	return s.pricer.ComputeTotalPrice(input.StartDate, input.EndDate, input.Travelers, input.RoomType)
}

func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	total, err := s.pricer.ComputeTotalPrice(input.StartDate, input.EndDate, input.Travelers, input.RoomType)
	if err != nil {
		return nil, err
	}
	if total <= 0 {
		return nil, domain.NewValidationError("total_price", "must be positive")
	}

	booking := &domain.Booking{
		ID:            s.newID(),
		UserID:        strings.TrimSpace(input.UserID),
		Destination:   strings.TrimSpace(input.Destination),
		StartDate:     input.StartDate.UTC(),
		EndDate:       input.EndDate.UTC(),
		RoomType:      input.RoomType,
		Travelers:     input.Travelers,
		TotalPrice:    total,
		Status:        domain.BookingStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.log.InfoContext(ctx, "booking created", "booking_id", booking.ID, "user_id", booking.UserID, "total_price", booking.TotalPrice)
	s.publish(ctx, "booking_created", booking)
	return booking, nil
}

func validateCreate(input CreateBookingInput) error {
	if strings.TrimSpace(input.UserID) == "" {
		return domain.NewValidationError("user_id", "is required")
	}
	if strings.TrimSpace(input.Destination) == "" {
		return domain.NewValidationError("destination", "is required")
	}
	if input.Travelers < 1 {
		return domain.NewValidationError("travelers", "must be at least 1")
	}
	if !input.RoomType.Valid() {
		return domain.NewValidationError("room_type", "unknown room type "+string(input.RoomType))
	}
	if input.StartDate.IsZero() || input.EndDate.IsZero() {
		return domain.NewValidationError("dates", "start and end dates are required")
	}
	if !input.EndDate.After(input.StartDate) {
		return domain.NewValidationError("end_date", "must be after start date")
	}
	return nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return s.bookings.Get(ctx, id)
}

func (s *BookingService) ListUserBookings(ctx context.Context, userID string) ([]domain.Booking, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.NewValidationError("user_id", "is required")
	}
	return s.bookings.ListByUser(ctx, userID)
}

// ListFailedPayments returns bookings whose last payment attempt failed but
// which are still open, newest first.
func (s *BookingService) ListFailedPayments(ctx context.Context, limit int) ([]domain.Booking, error) {
	failed, err := s.bookings.ListByPaymentStatus(ctx, domain.PaymentStatusFailed, limit)
	if err != nil {
		return nil, err
	}
	open := failed[:0]
	for _, b := range failed {
		if b.Status == domain.BookingStatusPending {
			open = append(open, b)
		}
	}
	return open, nil
}

// MaxListLimit caps ListBookings pages.
const MaxListLimit = 500

// ListBookings returns the newest bookings, all of them or only those in
// status. A zero limit uses the store's default page size.
func (s *BookingService) ListBookings(ctx context.Context, status domain.BookingStatus, limit int) ([]domain.Booking, error) {
	if status != "" && !status.Valid() {
		return nil, domain.NewValidationError("status", "unknown booking status "+string(status))
	}
	if limit < 0 || limit > MaxListLimit {
		return nil, domain.NewValidationError("limit", fmt.Sprintf("must be between 0 and %d", MaxListLimit))
	}
	return s.bookings.ListByStatus(ctx, status, limit)
}

func (s *BookingService) Stats(ctx context.Context) (*domain.BookingStats, error) {
	stats, err := s.bookings.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking stats: %w", err)
	}
	return stats, nil
}

func (s *BookingService) MarkPaid(ctx context.Context, id, paymentIntentID string) (*domain.Booking, error) {
	return s.transition(ctx, id, "mark paid", "booking_paid", func(b *domain.Booking) (repository.BookingPatch, error) {
		if b.Status != domain.BookingStatusPending || b.PaymentStatus == domain.PaymentStatusCompleted {
			return repository.BookingPatch{}, domain.NewStateError("mark paid", b)
		}
		status := domain.BookingStatusConfirmed
		paid := domain.PaymentStatusCompleted
		return repository.BookingPatch{Status: &status, PaymentStatus: &paid, PaymentIntentID: &paymentIntentID}, nil
	})
}

// MarkPaymentFailed records a failed attempt. Status stays PENDING so the
// traveler can retry; paymentIntentID, when set, remembers the attempt for
// reconciliation.
func (s *BookingService) MarkPaymentFailed(ctx context.Context, id, paymentIntentID string) (*domain.Booking, error) {
	return s.transition(ctx, id, "mark payment failed", "booking_payment_failed", func(b *domain.Booking) (repository.BookingPatch, error) {
		if b.Status != domain.BookingStatusPending {
			return repository.BookingPatch{}, domain.NewStateError("mark payment failed", b)
		}
		failed := domain.PaymentStatusFailed
		patch := repository.BookingPatch{PaymentStatus: &failed}
		if paymentIntentID != "" {
			patch.PaymentIntentID = &paymentIntentID
		}
		return patch, nil
	})
}

func (s *BookingService) CancelBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return s.transition(ctx, id, "cancel", "booking_cancelled", func(b *domain.Booking) (repository.BookingPatch, error) {
		if b.Status != domain.BookingStatusPending && b.Status != domain.BookingStatusConfirmed {
			return repository.BookingPatch{}, domain.NewStateError("cancel", b)
		}
		cancelled := domain.BookingStatusCancelled
		return repository.BookingPatch{Status: &cancelled}, nil
	})
}

func (s *BookingService) RetryPayment(ctx context.Context, id string) (*domain.Booking, error) {
	return s.transition(ctx, id, "retry payment", "booking_payment_retry", func(b *domain.Booking) (repository.BookingPatch, error) {
		if b.Status != domain.BookingStatusPending || b.PaymentStatus != domain.PaymentStatusFailed {
			return repository.BookingPatch{}, domain.NewStateError("retry payment", b)
		}
		pending := domain.PaymentStatusPending
		return repository.BookingPatch{PaymentStatus: &pending}, nil
	})
}

// RecordRefund adds amount (major units) to the refunded total. Status is
// left alone: partial refunds are legal on an active booking, and cancelled
// bookings still need their money back.
func (s *BookingService) RecordRefund(ctx context.Context, id string, amount float64) (*domain.Booking, error) {
	if amount <= 0 {
		return nil, domain.NewValidationError("amount", "must be positive")
	}
	return s.transition(ctx, id, "record refund", "booking_refunded", func(b *domain.Booking) (repository.BookingPatch, error) {
		if b.PaymentStatus != domain.PaymentStatusCompleted {
			return repository.BookingPatch{}, domain.NewStateError("record refund", b)
		}
		refunded := domain.RoundMajor(b.RefundedAmount + amount)
		if refunded > b.TotalPrice {
			return repository.BookingPatch{}, domain.NewValidationError("amount", fmt.Sprintf("exceeds refundable balance %.2f", b.RefundableAmount()))
		}
		return repository.BookingPatch{RefundedAmount: &refunded}, nil
	})
}

func (s *BookingService) transition(
	ctx context.Context,
	id, op, eventType string,
	decide func(b *domain.Booking) (repository.BookingPatch, error),
) (*domain.Booking, error) {
	current, err := s.bookings.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	patch, err := decide(current)
	if err != nil {
		s.log.WarnContext(ctx, "booking transition rejected", "booking_id", id, "op", op, "error", err)
		return nil, err
	}
	patch.ExpectedVersion = current.Version

	updated, err := s.bookings.Update(ctx, id, patch)
	if errors.Is(err, repository.ErrVersionConflict) {
		latest, getErr := s.bookings.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		stateErr := domain.NewStateError(op, latest)
		stateErr.Reason = err.Error()
		return nil, stateErr
	}
	if err != nil {
		return nil, fmt.Errorf("%s booking %s: %w", op, id, err)
	}

	s.log.InfoContext(ctx, "booking transition", "booking_id", id, "op", op, "status", updated.Status, "payment_status", updated.PaymentStatus)
	s.publish(ctx, eventType, updated)
	return updated, nil
}

// publish is best effort: a lost event never undoes a committed transition.
func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.producer == nil || s.eventsTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:            eventType,
		BookingID:       booking.ID,
		UserID:          booking.UserID,
		Destination:     booking.Destination,
		Status:          string(booking.Status),
		PaymentStatus:   string(booking.PaymentStatus),
		TotalPrice:      booking.TotalPrice,
		RefundedAmount:  booking.RefundedAmount,
		PaymentIntentID: booking.PaymentIntentID,
		OccurredAt:      s.now().UTC(),
	}
	if err := s.producer.Publish(ctx, s.eventsTopic, booking.ID, event); err != nil {
		s.log.WarnContext(ctx, "failed to publish booking event", "type", eventType, "booking_id", booking.ID, "error", err)
		return
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, booking.ID, event); err != nil {
			s.log.WarnContext(ctx, "failed to publish notification", "type", eventType, "booking_id", booking.ID, "error", err)
		}
	}
}

var _ BookingUseCase = (*BookingService)(nil)
