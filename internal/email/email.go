package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Domenick1991/staybooking/internal/kafka"
)

// Sender turns booking events into traveler notifications. Delivery is a
// structured log line until a mail provider is configured.
type Sender struct {
	log *slog.Logger
}

func NewSender(log *slog.Logger) *Sender {
	return &Sender{log: log}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	subject, ok := Subject(event)
	if !ok {
		return nil
	}
	s.log.InfoContext(ctx, "send email", "user_id", event.UserID, "booking_id", event.BookingID, "subject", subject)
	return nil
}

// Subject renders the notification subject for an event type. Events that
// do not notify the traveler return false.
func Subject(event kafka.BookingEvent) (string, bool) {
	switch event.Type {
	case "booking_created":
		return fmt.Sprintf("Your stay in %s is reserved", event.Destination), true
	case "booking_paid":
		return fmt.Sprintf("Payment received: your stay in %s is confirmed", event.Destination), true
	case "booking_payment_failed":
		return fmt.Sprintf("Payment for your stay in %s did not go through", event.Destination), true
	case "booking_cancelled":
		return fmt.Sprintf("Your stay in %s was cancelled", event.Destination), true
	case "booking_refunded":
		return fmt.Sprintf("Refund issued for your stay in %s", event.Destination), true
	}
	return "", false
}
