package memory

import (
	"context"
	"time"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
)

// OutboxRepository implements usecase.OutboxRepository over a Store.
type OutboxRepository struct {
	store *Store
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{store: store}
}

// Create buffers an outbox event for commit alongside the state change it
// describes.
func (r *OutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := *event
	mt.buffer(func() {
		r.store.outbox = append(r.store.outbox, &stored)
	})
	return nil
}

// GetUnpublished returns up to limit unpublished events, oldest first.
func (r *OutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var events []*domain.OutboxEvent
	for _, event := range r.store.outbox {
		if event.Published {
			continue
		}
		copied := *event
		events = append(events, &copied)
		if limit > 0 && len(events) >= limit {
			break
		}
	}
	return events, nil
}

// MarkPublished flags an event as delivered.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, event := range r.store.outbox {
		if event.ID == id {
			event.Published = true
			at := publishedAt
			event.PublishedAt = &at
			return nil
		}
	}
	return nil
}

// DeletePublished drops published events older than the cutoff.
func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kept := r.store.outbox[:0]
	for _, event := range r.store.outbox {
		if event.Published && event.PublishedAt != nil && event.PublishedAt.Before(before) {
			continue
		}
		kept = append(kept, event)
	}
	r.store.outbox = kept
	return nil
}
