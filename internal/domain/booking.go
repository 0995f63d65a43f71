package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Valid reports whether s is one of the booking statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

type RoomType string

const (
	RoomTypeStandard RoomType = "standard"
	RoomTypeDeluxe   RoomType = "deluxe"
	RoomTypeSuite    RoomType = "suite"
)

// Valid reports whether r belongs to the closed set of room types.
func (r RoomType) Valid() bool {
	switch r {
	case RoomTypeStandard, RoomTypeDeluxe, RoomTypeSuite:
		return true
	}
	return false
}

// Booking is one reservation. TotalPrice is in major currency units and is
// fixed at creation.
type Booking struct {
	ID              string
	UserID          string
	Destination     string
	StartDate       time.Time
	EndDate         time.Time
	RoomType        RoomType
	Travelers       int
	TotalPrice      float64
	Status          BookingStatus
	PaymentStatus   PaymentStatus
	PaymentIntentID string
	RefundedAmount  float64
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Payable reports whether a payment attempt may start for the booking.
func (b *Booking) Payable() bool {
	if b.Status != BookingStatusPending {
		return false
	}
	return b.PaymentStatus == PaymentStatusPending || b.PaymentStatus == PaymentStatusFailed
}

// RefundableAmount is what is left to refund once payment completed.
func (b *Booking) RefundableAmount() float64 {
	if b.PaymentStatus != PaymentStatusCompleted {
		return 0
	}
	return RoundMajor(b.TotalPrice - b.RefundedAmount)
}

// BookingStats summarizes all stored bookings. Revenue is the total of
// bookings whose payment completed, before refunds. PendingAmount is the
// total of bookings still waiting to be paid.
type BookingStats struct {
	Total             int64
	Pending           int64
	Confirmed         int64
	Cancelled         int64
	PaymentsCompleted int64
	PaymentsPending   int64
	PaymentsFailed    int64
	Revenue           float64
	RefundedAmount    float64
	PendingAmount     float64
}
