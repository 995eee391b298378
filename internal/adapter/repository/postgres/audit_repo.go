package postgres

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
)

const auditColumns = `id, actor, action, resource_type, resource_id, request_id, before_state, after_state, status, error_message, created_at`

const auditInsert = `
	INSERT INTO audit_logs (` + auditColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// AuditRepository implements usecase.AuditRepository. Audit records are
// append-only; there is no update or delete path.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Create inserts an audit record outside any transaction.
func (r *AuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	args, err := auditArgs(log)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, auditInsert, args...)
	return err
}

// CreateTx inserts an audit record within the caller's transaction.
func (r *AuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	pgxTx := tx.(*Tx).PgxTx()

	args, err := auditArgs(log)
	if err != nil {
		return err
	}
	_, err = pgxTx.Exec(ctx, auditInsert, args...)
	return err
}

// List retrieves audit records matching the filter, newest first.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE 1=1`
	var args []any

	add := func(clause string, value any) {
		args = append(args, value)
		query += " AND " + clause + "$" + strconv.Itoa(len(args))
	}

	if filter.Actor != "" {
		add("actor = ", filter.Actor)
	}
	if filter.Action != "" {
		add("action = ", filter.Action)
	}
	if filter.ResourceType != "" {
		add("resource_type = ", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		add("resource_id = ", filter.ResourceID)
	}
	if filter.StartDate != nil {
		add("created_at >= ", *filter.StartDate)
	}
	if filter.EndDate != nil {
		add("created_at <= ", *filter.EndDate)
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*domain.AuditLog
	for rows.Next() {
		log, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func auditArgs(log *domain.AuditLog) ([]any, error) {
	var beforeState, afterState []byte
	var err error

	if log.BeforeState != nil {
		if beforeState, err = json.Marshal(log.BeforeState); err != nil {
			return nil, err
		}
	}
	if log.AfterState != nil {
		if afterState, err = json.Marshal(log.AfterState); err != nil {
			return nil, err
		}
	}

	return []any{
		log.ID,
		log.Actor,
		log.Action,
		log.ResourceType,
		log.ResourceID,
		log.RequestID,
		beforeState,
		afterState,
		log.Status,
		log.ErrorMessage,
		log.CreatedAt,
	}, nil
}

func scanAuditLog(rows pgx.Rows) (*domain.AuditLog, error) {
	var (
		log         domain.AuditLog
		beforeState []byte
		afterState  []byte
	)
	err := rows.Scan(
		&log.ID,
		&log.Actor,
		&log.Action,
		&log.ResourceType,
		&log.ResourceID,
		&log.RequestID,
		&beforeState,
		&afterState,
		&log.Status,
		&log.ErrorMessage,
		&log.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if beforeState != nil {
		_ = json.Unmarshal(beforeState, &log.BeforeState)
	}
	if afterState != nil {
		_ = json.Unmarshal(afterState, &log.AfterState)
	}
	return &log, nil
}
