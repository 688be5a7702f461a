package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"saifuu/internal/amqp"
	"saifuu/internal/core"
)

// SubscriptionStore is what the processor needs from storage.
type SubscriptionStore interface {
	GetSubscriptionsDue(ctx context.Context, asOf core.Date) ([]core.Subscription, error)
	RecordSubscriptionPayment(ctx context.Context, sub core.Subscription, occurrence, next core.Date) (*core.Transaction, error)
}

// SubscriptionProcessor turns due subscriptions into expense transactions.
type SubscriptionProcessor struct {
	store     SubscriptionStore
	publisher EventPublisher
}

// NewSubscriptionProcessor wires the processor. publisher may be nil.
func NewSubscriptionProcessor(store SubscriptionStore, publisher EventPublisher) *SubscriptionProcessor {
	return &SubscriptionProcessor{store: store, publisher: publisher}
}

// ProcessDue generates one transaction per billing cycle that has come due on
// or before asOf, for every active subscription with auto generation on, and
// returns how many were created. Each occurrence is recorded together with
// the advance of the next payment date, so concurrent runs never duplicate a
// payment: the loser sees a conflict and moves on.
func (p *SubscriptionProcessor) ProcessDue(ctx context.Context, asOf core.Date) (int, error) {
	if p.store == nil {
		return 0, errors.New("processor not properly initialized")
	}

	due, err := p.store.GetSubscriptionsDue(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("get subscriptions due: %w", err)
	}

	slog.InfoContext(ctx, "Processing due subscriptions",
		"due", len(due),
		"as_of", asOf.String())

	generated, failed := 0, 0
	for _, sub := range due {
		if err := ctx.Err(); err != nil {
			return generated, err
		}
		if !sub.AutoGenerate {
			slog.DebugContext(ctx, "Skipping subscription without auto generation", "subscription_id", sub.ID)
			continue
		}

		n, err := p.processSubscription(ctx, sub, asOf)
		generated += n
		if err != nil {
			failed++
			slog.ErrorContext(ctx, "Failed to process subscription",
				"subscription_id", sub.ID,
				"name", sub.Name,
				"error", err)
		}
	}

	slog.InfoContext(ctx, "Subscription processing complete",
		"generated", generated,
		"failed", failed,
		"checked", len(due))
	return generated, nil
}

func (p *SubscriptionProcessor) processSubscription(ctx context.Context, sub core.Subscription, asOf core.Date) (int, error) {
	generated := 0
	occurrence := sub.NextPaymentDate
	for !occurrence.After(asOf) {
		next, err := CalculateNextPaymentDate(occurrence, sub.Frequency)
		if err != nil {
			return generated, err
		}

		t, err := p.store.RecordSubscriptionPayment(ctx, sub, occurrence, next)
		if errors.Is(err, core.ErrConflict) {
			slog.InfoContext(ctx, "Subscription already advanced by another run",
				"subscription_id", sub.ID,
				"occurrence", occurrence.String())
			return generated, nil
		}
		if err != nil {
			return generated, err
		}

		generated++
		publish(ctx, p.publisher, amqp.TransactionCreated, t.ID)
		occurrence = next
	}
	return generated, nil
}
