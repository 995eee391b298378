package memory

import (
	"context"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
)

// AuditRepository implements usecase.AuditRepository over a Store. Records
// are append-only.
type AuditRepository struct {
	store *Store
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(store *Store) *AuditRepository {
	return &AuditRepository{store: store}
}

// Create appends an audit record immediately.
func (r *AuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := *log
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.audit = append(r.store.audit, &stored)
	return nil
}

// CreateTx buffers an audit record for commit with its transaction.
func (r *AuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := *log
	mt.buffer(func() {
		r.store.audit = append(r.store.audit, &stored)
	})
	return nil
}

// List returns audit records matching the filter, newest first.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var matched []*domain.AuditLog
	for i := len(r.store.audit) - 1; i >= 0; i-- {
		log := r.store.audit[i]
		if filter.Actor != "" && log.Actor != filter.Actor {
			continue
		}
		if filter.Action != "" && log.Action != filter.Action {
			continue
		}
		if filter.ResourceType != "" && log.ResourceType != filter.ResourceType {
			continue
		}
		if filter.ResourceID != "" && log.ResourceID != filter.ResourceID {
			continue
		}
		if filter.StartDate != nil && log.CreatedAt.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && log.CreatedAt.After(*filter.EndDate) {
			continue
		}
		copied := *log
		matched = append(matched, &copied)
	}

	offset := filter.Offset
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}
