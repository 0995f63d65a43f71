package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/staybooking/internal/domain"
)

// MemoryBookingRepository keeps bookings in process. Used for local runs
// and tests.
type MemoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]domain.Booking
	now      func() time.Time
}

func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{
		bookings: make(map[string]domain.Booking),
		now:      time.Now,
	}
}

func (r *MemoryBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bookings[booking.ID]; exists {
		return domain.NewValidationError("id", "booking already exists")
	}
	booking.Version = 1
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = r.now().UTC()
	}
	booking.UpdatedAt = booking.CreatedAt
	r.bookings[booking.ID] = *booking
	return nil
}

func (r *MemoryBookingRepository) Get(ctx context.Context, id string) (*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.NewNotFoundError("booking", id)
	}
	return &b, nil
}

func (r *MemoryBookingRepository) Update(ctx context.Context, id string, patch BookingPatch) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.NewNotFoundError("booking", id)
	}
	if b.Version != patch.ExpectedVersion {
		return nil, ErrVersionConflict
	}
	patch.apply(&b)
	b.Version++
	b.UpdatedAt = r.now().UTC()
	r.bookings[id] = b
	return &b, nil
}

func (r *MemoryBookingRepository) ListByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	return r.filter(func(b domain.Booking) bool { return b.UserID == userID }, 0), nil
}

func (r *MemoryBookingRepository) ListByPaymentStatus(ctx context.Context, status domain.PaymentStatus, limit int) ([]domain.Booking, error) {
	return r.filter(func(b domain.Booking) bool { return b.PaymentStatus == status }, limit), nil
}

func (r *MemoryBookingRepository) ListByStatus(ctx context.Context, status domain.BookingStatus, limit int) ([]domain.Booking, error) {
	return r.filter(func(b domain.Booking) bool { return status == "" || b.Status == status }, limit), nil
}

func (r *MemoryBookingRepository) Stats(ctx context.Context) (*domain.BookingStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats domain.BookingStats
	for _, b := range r.bookings {
		stats.Total++
		switch b.Status {
		case domain.BookingStatusPending:
			stats.Pending++
			stats.PendingAmount += b.TotalPrice
		case domain.BookingStatusConfirmed:
			stats.Confirmed++
		case domain.BookingStatusCancelled:
			stats.Cancelled++
		}
		switch b.PaymentStatus {
		case domain.PaymentStatusCompleted:
			stats.PaymentsCompleted++
			stats.Revenue += b.TotalPrice
		case domain.PaymentStatusPending:
			stats.PaymentsPending++
		case domain.PaymentStatusFailed:
			stats.PaymentsFailed++
		}
		stats.RefundedAmount += b.RefundedAmount
	}
	stats.Revenue = domain.RoundMajor(stats.Revenue)
	stats.RefundedAmount = domain.RoundMajor(stats.RefundedAmount)
	stats.PendingAmount = domain.RoundMajor(stats.PendingAmount)
	return &stats, nil
}

func (r *MemoryBookingRepository) filter(keep func(domain.Booking) bool, limit int) []domain.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Booking, 0)
	for _, b := range r.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

var _ BookingRepository = (*MemoryBookingRepository)(nil)
