package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher hands a serialised confirmation to a message queue.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// QueueNotifier enqueues confirmations for the notifier worker.
type QueueNotifier struct {
	publisher Publisher
	log       *zap.Logger
}

func NewQueueNotifier(p Publisher, log *zap.Logger) *QueueNotifier {
	return &QueueNotifier{publisher: p, log: log}
}

func (n *QueueNotifier) SendConfirmation(ctx context.Context, c Confirmation) (bool, string) {
	if c.MessageID == "" {
		c.MessageID = uuid.NewString()
	}
	body, err := json.Marshal(c)
	if err != nil {
		n.log.Error("encode confirmation", zap.Error(err))
		return false, "confirmation could not be queued"
	}
	if err := n.publisher.Publish(ctx, body); err != nil {
		n.log.Error("publish confirmation", zap.Error(err), zap.Int("reservation_id", c.ReservationID))
		return false, "confirmation could not be queued"
	}
	return true, "confirmation queued"
}

func decode(body []byte) (Confirmation, error) {
	var c Confirmation
	err := json.Unmarshal(body, &c)
	return c, err
}
