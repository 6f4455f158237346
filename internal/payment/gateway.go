package payment

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
)

type Session struct {
	BookingToken string
	AmountCents  int64
	Currency     string
	Email        string
}

// Gateway is the seam to the payment provider. The service only ever asks it
// for a checkout session after the price has been re-validated server side.
type Gateway interface {
	CreateSession(ctx context.Context, session Session) (string, error)
}

// LogGateway stands in for the real provider in development and tests.
type LogGateway struct{}

func NewLogGateway() *LogGateway {
	return &LogGateway{}
}

func (g *LogGateway) CreateSession(ctx context.Context, session Session) (string, error) {
	ref := fmt.Sprintf("sess_%s", uuid.NewString())
	log.Printf("payment session %s for booking %s: %d %s (%s)",
		ref, session.BookingToken, session.AmountCents, session.Currency, session.Email)
	return ref, nil
}

var _ Gateway = (*LogGateway)(nil)
