package service

import (
	"context"
	"encoding/json"
	"log"

	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/model"
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/repository"

	"gorm.io/gorm"
)

// Notifier writes notification events to the outbox after a posting has
// durably committed. The outbox sender drains them to Kafka, so delivery
// problems can never affect the financial steps; a failed outbox write is
// logged and swallowed.
type Notifier struct {
	outboxRepo *repository.OutboxRepository
	topic      string
}

func NewNotifier(db *gorm.DB, topic string) *Notifier {
	return &Notifier{
		outboxRepo: repository.NewOutboxRepository(db),
		topic:      topic,
	}
}

// Notify enqueues one event. Best effort by contract.
func (n *Notifier) Notify(ctx context.Context, key string, event map[string]interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Notifier] failed to marshal event key=%s: %v", key, err)
		return
	}

	msg := &model.OutboxMessage{
		MessageKey: key,
		Topic:      n.topic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := n.outboxRepo.Create(ctx, nil, msg); err != nil {
		log.Printf("[Notifier] failed to enqueue event key=%s: %v", key, err)
	}
}
