package email

import (
	"context"
	"fmt"

	"github.com/vetrodar/cabinbooking/internal/kafka"
)

type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	subject := "Booking update"
	switch event.Type {
	case "booking_created":
		subject = "We are holding your cabins"
	case "booking_confirmed":
		subject = "Your trip is confirmed"
	case "booking_cancelled":
		subject = "Your booking was cancelled"
	case "booking_expired":
		subject = "Your booking hold expired"
	}
	fmt.Printf("send email to %s: %q (trip %d, %d guests, %d cabins, total %d cents)\n",
		event.Email, subject, event.TripID, event.Guests, event.Cabins, event.TotalCents)
	return nil
}
