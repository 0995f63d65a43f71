package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/staybooking/internal/domain"
)

// ErrVersionConflict is returned by Update when the stored record moved past
// the expected version.
var ErrVersionConflict = errors.New("booking was modified concurrently")

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	Get(ctx context.Context, id string) (*domain.Booking, error)
	Update(ctx context.Context, id string, patch BookingPatch) (*domain.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Booking, error)
	ListByPaymentStatus(ctx context.Context, status domain.PaymentStatus, limit int) ([]domain.Booking, error)
	// ListByStatus returns the newest bookings with status, or all bookings
	// when status is empty.
	ListByStatus(ctx context.Context, status domain.BookingStatus, limit int) ([]domain.Booking, error)
	Stats(ctx context.Context) (*domain.BookingStats, error)
}

// BookingPatch lists the mutable columns. Nil fields are left untouched. The
// update applies only while the stored version equals ExpectedVersion.
type BookingPatch struct {
	ExpectedVersion int64
	Status          *domain.BookingStatus
	PaymentStatus   *domain.PaymentStatus
	PaymentIntentID *string
	RefundedAmount  *float64
}

func (p BookingPatch) apply(b *domain.Booking) {
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.PaymentStatus != nil {
		b.PaymentStatus = *p.PaymentStatus
	}
	if p.PaymentIntentID != nil {
		b.PaymentIntentID = *p.PaymentIntentID
	}
	if p.RefundedAmount != nil {
		b.RefundedAmount = *p.RefundedAmount
	}
}

func nullableString[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
