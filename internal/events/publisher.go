package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/LVQT-ss/SHOPC-sub000/internal/models"
)

const (
	TypeOrderCreated     = "order.created"
	TypePaymentCompleted = "payment.completed"
)

type OrderEvent struct {
	Type              string    `json:"type"`
	OrderID           uint      `json:"order_id"`
	OrderNumber       int64     `json:"order_number"`
	UserID            uint      `json:"user_id"`
	Total             string    `json:"total"`
	TransactionNumber string    `json:"transaction_number,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// Publisher emits order lifecycle events after the owning database
// transaction has committed. A nil Publisher (or one without a writer) is a
// no-op, so event publishing never blocks the order and payment flows.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(writer *kafka.Writer) *Publisher {
	if writer == nil {
		return nil
	}
	return &Publisher{writer: writer}
}

func (p *Publisher) OrderCreated(ctx context.Context, order *models.Order) {
	p.publish(ctx, OrderEvent{
		Type:        TypeOrderCreated,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.Total.StringFixed(2),
		OccurredAt:  time.Now(),
	})
}

func (p *Publisher) PaymentCompleted(ctx context.Context, order *models.Order, txn *models.Transaction) {
	p.publish(ctx, OrderEvent{
		Type:              TypePaymentCompleted,
		OrderID:           order.ID,
		OrderNumber:       order.OrderNumber,
		UserID:            order.UserID,
		Total:             order.Total.StringFixed(2),
		TransactionNumber: txn.TransactionNumber,
		OccurredAt:        time.Now(),
	})
}

func (p *Publisher) publish(ctx context.Context, event OrderEvent) {
	if p == nil || p.writer == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", event.Type, err)
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Type),
		Value: payload,
	})
	if err != nil {
		// Events are advisory; the order/payment write already committed.
		log.Printf("Failed to publish %s event for order %d: %v", event.Type, event.OrderID, err)
	}
}
