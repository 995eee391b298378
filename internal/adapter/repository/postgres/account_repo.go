package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/usecase"
)

// pgErrLockNotAvailable is raised when lock_timeout expires while waiting
// on a row lock. It maps to ErrBusy: nothing was applied, retry later.
const pgErrLockNotAvailable = "55P03"

const accountColumns = `id, name, currency, status, balance, min_balance, version, created_at, updated_at`

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create creates a new account.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		account.ID,
		account.Name,
		account.Currency,
		string(account.Status),
		account.Balance,
		account.MinBalance,
		account.Version,
		account.CreatedAt,
		account.UpdatedAt,
	)
	return err
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1`, id)

	return scanAccount(row)
}

// GetByIDs retrieves a lock-free snapshot of the requested accounts.
// Missing IDs are omitted from the result.
func (r *AccountRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = ANY($1)
		ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAccounts(rows)
}

// GetByIDsForUpdate locks the requested accounts with SELECT FOR UPDATE.
// The ORDER BY matches the caller's sorted ID order, so every transaction
// acquires row locks in the same total order. A lock_timeout expiry maps
// to ErrBusy.
func (r *AccountRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error) {
	pgxTx := tx.(*Tx).PgxTx()

	rows, err := pgxTx.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, ids)
	if err != nil {
		return nil, mapLockError(err)
	}
	defer rows.Close()

	accounts, err := scanAccounts(rows)
	if err != nil {
		return nil, mapLockError(err)
	}
	return accounts, nil
}

// ApplyDelta applies a signed balance change guarded by the expected
// version. Zero rows updated means the version moved underneath us.
func (r *AccountRepository) ApplyDelta(ctx context.Context, tx usecase.Transaction, id string, delta int64, expectedVersion int64, updatedAt time.Time) (int64, error) {
	pgxTx := tx.(*Tx).PgxTx()

	var newVersion int64
	err := pgxTx.QueryRow(ctx, `
		UPDATE accounts
		SET balance = balance + $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4
		RETURNING version`,
		delta, updatedAt, id, expectedVersion,
	).Scan(&newVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrVersionConflict
		}
		return 0, err
	}

	return newVersion, nil
}

// UpdateStatus updates the status of a locked account.
func (r *AccountRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.AccountStatus, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, `
		UPDATE accounts
		SET status = $1, updated_at = $2
		WHERE id = $3`,
		string(status), updatedAt, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// List retrieves accounts with pagination, oldest first.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAccounts(rows)
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account domain.Account
		status  string
	)
	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Currency,
		&status,
		&account.Balance,
		&account.MinBalance,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}

	account.Status = domain.AccountStatus(status)
	return &account, nil
}

func scanAccounts(rows pgx.Rows) ([]*domain.Account, error) {
	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func mapLockError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrLockNotAvailable {
		return domain.ErrBusy
	}
	return err
}
