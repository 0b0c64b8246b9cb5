// Package notify delivers booking confirmations. Delivery is best-effort:
// a Notifier reports failure through its return values and never panics.
package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

type Confirmation struct {
	MessageID     string    `json:"message_id"`
	Recipient     string    `json:"recipient"`
	RecipientName string    `json:"recipient_name"`
	ReservationID int       `json:"reservation_id"`
	SpotID        int       `json:"spot_id"`
	VehicleNumber string    `json:"vehicle_number"`
	LotName       string    `json:"lot_name"`
	Address       string    `json:"address"`
	PinCode       string    `json:"pin_code"`
	PricePerHour  float64   `json:"price_per_hour"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Code          string    `json:"code"`
}

type Notifier interface {
	// SendConfirmation returns whether delivery (or hand-off) succeeded and a
	// short human readable status.
	SendConfirmation(ctx context.Context, c Confirmation) (bool, string)
}

// Handler processes one confirmation pulled from a queue. A non-nil error
// leaves the message for redelivery.
type Handler func(ctx context.Context, c Confirmation) error

// Deliver adapts a Notifier to a queue Handler.
func Deliver(n Notifier) Handler {
	return func(ctx context.Context, c Confirmation) error {
		if ok, msg := n.SendConfirmation(ctx, c); !ok {
			return errors.New(msg)
		}
		return nil
	}
}

// LogNotifier only records the confirmation. Used when no transport is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendConfirmation(_ context.Context, c Confirmation) (bool, string) {
	n.log.Info("booking confirmation",
		zap.Int("reservation_id", c.ReservationID),
		zap.String("recipient", c.Recipient),
		zap.String("lot", c.LotName),
		zap.Time("scheduled_time", c.ScheduledTime),
	)
	return true, "confirmation logged"
}
