package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
)

const transactionColumns = `id, sequence, idempotency_key, client_ref, currency, status, reverses, created_at, posted_at`

const entryColumns = `id, transaction_id, account_id, amount, currency, previous_balance, current_balance, account_version, created_at`

const pgErrUniqueViolation = "23505"

// JournalRepository implements usecase.JournalRepository. The journal_head
// table holds a single row with the last assigned sequence; updating it
// inside the commit transaction serializes appends and keeps sequences
// gap-free, because a rollback reverts the counter along with the rows.
type JournalRepository struct {
	pool *pgxpool.Pool
}

// NewJournalRepository creates a new JournalRepository.
func NewJournalRepository(pool *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{pool: pool}
}

// Append assigns the next sequence and inserts the transaction with its
// entries. Must run inside the caller's storage transaction.
func (r *JournalRepository) Append(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) (int64, error) {
	pgxTx := tx.(*Tx).PgxTx()

	var seq int64
	err := pgxTx.QueryRow(ctx, `
		UPDATE journal_head
		SET seq = seq + 1
		RETURNING seq`).Scan(&seq)
	if err != nil {
		return 0, err
	}

	_, err = pgxTx.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		txn.ID,
		seq,
		txn.IdempotencyKey,
		txn.ClientRef,
		txn.Currency,
		string(txn.Status),
		txn.Reverses,
		txn.CreatedAt,
		txn.PostedAt,
	)
	if err != nil {
		// The unique index on idempotency_key is the schema-level
		// backstop for lost dedup state.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation && pgErr.ConstraintName == "idx_transactions_idempotency_key" {
			return 0, domain.ErrDuplicateKey
		}
		return 0, err
	}

	for _, entry := range txn.Entries {
		_, err = pgxTx.Exec(ctx, `
			INSERT INTO entries (`+entryColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			entry.ID,
			entry.TransactionID,
			entry.AccountID,
			entry.Amount,
			entry.Currency,
			entry.PreviousBalance,
			entry.CurrentBalance,
			entry.AccountVersion,
			entry.CreatedAt,
		)
		if err != nil {
			return 0, err
		}
	}

	return seq, nil
}

// GetByID retrieves a transaction with its entries.
func (r *JournalRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = $1`, id)

	txn, err := scanTransaction(row)
	if err != nil {
		return nil, err
	}

	if err := r.loadEntries(ctx, []*domain.Transaction{txn}); err != nil {
		return nil, err
	}
	return txn, nil
}

// GetByIdempotencyKey retrieves the transaction journaled under key.
func (r *JournalRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE idempotency_key = $1`, key)

	txn, err := scanTransaction(row)
	if err != nil {
		return nil, err
	}

	if err := r.loadEntries(ctx, []*domain.Transaction{txn}); err != nil {
		return nil, err
	}
	return txn, nil
}

// MarkReversed flips a posted transaction to reversed.
func (r *JournalRepository) MarkReversed(ctx context.Context, tx usecase.Transaction, id string) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, `
		UPDATE transactions
		SET status = $1
		WHERE id = $2 AND status = $3`,
		string(domain.TransactionStatusReversed), id, string(domain.TransactionStatusPosted),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Distinguish missing from already reversed.
	var status string
	err = pgxTx.QueryRow(ctx, `SELECT status FROM transactions WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTransactionNotFound
		}
		return err
	}
	if status == string(domain.TransactionStatusReversed) {
		return domain.ErrAlreadyReversed
	}
	return domain.ErrNotReversible
}

// ReadFrom retrieves up to limit transactions with sequence >= fromSeq in
// sequence order, entries included.
func (r *JournalRepository) ReadFrom(ctx context.Context, fromSeq int64, limit int) ([]*domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE sequence >= $1
		ORDER BY sequence
		LIMIT $2`, fromSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var page []*domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		page = append(page, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadEntries(ctx, page); err != nil {
		return nil, err
	}
	return page, nil
}

// GetEntriesByAccount retrieves entries for an account, newest first.
func (r *JournalRepository) GetEntriesByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.Entry
	for rows.Next() {
		var entry domain.Entry
		if err := scanEntry(rows, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// Head returns the last assigned sequence, 0 for an empty journal.
func (r *JournalRepository) Head(ctx context.Context) (int64, error) {
	var seq int64
	err := r.pool.QueryRow(ctx, `SELECT seq FROM journal_head`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (r *JournalRepository) loadEntries(ctx context.Context, txns []*domain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	ids := make([]string, len(txns))
	byID := make(map[string]*domain.Transaction, len(txns))
	for i, txn := range txns {
		ids[i] = txn.ID
		byID[txn.ID] = txn
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM entries
		WHERE transaction_id = ANY($1)
		ORDER BY created_at, id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var entry domain.Entry
		if err := scanEntry(rows, &entry); err != nil {
			return err
		}
		if txn, ok := byID[entry.TransactionID]; ok {
			txn.Entries = append(txn.Entries, entry)
		}
	}
	return rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		txn    domain.Transaction
		status string
	)
	err := row.Scan(
		&txn.ID,
		&txn.Sequence,
		&txn.IdempotencyKey,
		&txn.ClientRef,
		&txn.Currency,
		&status,
		&txn.Reverses,
		&txn.CreatedAt,
		&txn.PostedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}

	txn.Status = domain.TransactionStatus(status)
	return &txn, nil
}

func scanEntry(rows pgx.Rows, entry *domain.Entry) error {
	return rows.Scan(
		&entry.ID,
		&entry.TransactionID,
		&entry.AccountID,
		&entry.Amount,
		&entry.Currency,
		&entry.PreviousBalance,
		&entry.CurrentBalance,
		&entry.AccountVersion,
		&entry.CreatedAt,
	)
}
