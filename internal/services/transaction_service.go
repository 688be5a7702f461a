package services

import (
	"context"
	"fmt"
	"log/slog"

	"saifuu/internal/amqp"
	"saifuu/internal/core"
)

// TransactionStore is the subset of storage the write path needs.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, in core.NewTransaction) (*core.Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, p core.TransactionPatch) (*core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) (*core.Transaction, error)
}

// EventPublisher announces transaction changes to downstream consumers.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, event amqp.EventType, transactionID int64) error
}

// TransactionService saves transactions locally and then publishes an event
// for each change. The local write is authoritative; a failed publish is
// logged and never fails the request.
type TransactionService struct {
	store     TransactionStore
	publisher EventPublisher
}

// NewTransactionService wires the service. publisher may be nil.
func NewTransactionService(store TransactionStore, publisher EventPublisher) *TransactionService {
	return &TransactionService{store: store, publisher: publisher}
}

func (s *TransactionService) CreateTransaction(ctx context.Context, in core.NewTransaction) (*core.Transaction, error) {
	t, err := s.store.CreateTransaction(ctx, in)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, amqp.TransactionCreated, t.ID)
	return t, nil
}

func (s *TransactionService) UpdateTransaction(ctx context.Context, id int64, p core.TransactionPatch) (*core.Transaction, error) {
	t, err := s.store.UpdateTransaction(ctx, id, p)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, amqp.TransactionUpdated, t.ID)
	return t, nil
}

func (s *TransactionService) DeleteTransaction(ctx context.Context, id int64) (*core.Transaction, error) {
	t, err := s.store.DeleteTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, amqp.TransactionDeleted, t.ID)
	return t, nil
}

func (s *TransactionService) publish(ctx context.Context, event amqp.EventType, id int64) {
	publish(ctx, s.publisher, event, id)
}

func publish(ctx context.Context, p EventPublisher, event amqp.EventType, id int64) {
	if p == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping", "event", event, "transaction_id", id)
		return
	}
	if err := p.PublishTransactionEvent(ctx, event, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"event", event,
			"transaction_id", id,
			"error", fmt.Errorf("publish: %w", err))
	}
}
