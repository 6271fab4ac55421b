package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/coin"
)

const transactionColumns = `id, user_id, amount, kind, reason, idem_key, created_at`

type transactionRow struct {
	ID        string      `db:"id"`
	UserID    string      `db:"user_id"`
	Amount    int         `db:"amount"`
	Kind      string      `db:"kind"`
	Reason    string      `db:"reason"`
	IdemKey   null.String `db:"idem_key"`
	CreatedAt time.Time   `db:"created_at"`
}

func (row transactionRow) toTransaction() coin.Transaction {
	return coin.Transaction{
		ID:        row.ID,
		UserID:    row.UserID,
		Amount:    row.Amount,
		Kind:      row.Kind,
		Reason:    row.Reason,
		IdemKey:   row.IdemKey,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

type coinRepository struct {
	db *sqlx.DB
}

var _ coin.Repository = (*coinRepository)(nil)

func NewCoinRepository(db *sqlx.DB) *coinRepository {
	return &coinRepository{db: db}
}

// isUniqueViolation reports a postgres duplicate key error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (repo *coinRepository) CreateTransaction(ctx context.Context, tx coin.Transaction) (coin.Transaction, error) {
	q := `INSERT INTO coin_transaction (` + transactionColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := repo.db.ExecContext(ctx, q, tx.ID, tx.UserID, tx.Amount, tx.Kind, tx.Reason, tx.IdemKey, tx.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return coin.Transaction{}, coin.ErrDuplicateOp
		}
		return coin.Transaction{}, errors.Wrap(err, "inserting transaction")
	}
	return tx, nil
}

func (repo *coinRepository) GetTransactionByIdemKey(ctx context.Context, userID, key string) (coin.Transaction, error) {
	var row transactionRow
	q := `SELECT ` + transactionColumns + ` FROM coin_transaction WHERE user_id = $1 AND idem_key = $2`
	if err := repo.db.GetContext(ctx, &row, q, userID, key); err != nil {
		if err == sql.ErrNoRows {
			return coin.Transaction{}, coin.ErrNotFound
		}
		return coin.Transaction{}, errors.Wrap(err, "getting transaction")
	}
	return row.toTransaction(), nil
}

func (repo *coinRepository) QueryTransactionsByUser(ctx context.Context, userID string) ([]coin.Transaction, error) {
	var rows []transactionRow
	q := `SELECT ` + transactionColumns + ` FROM coin_transaction WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying transactions")
	}
	txs := make([]coin.Transaction, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, row.toTransaction())
	}
	return txs, nil
}

func (repo *coinRepository) GetBalance(ctx context.Context, userID string) (int, error) {
	var balance int
	q := `SELECT COALESCE(SUM(amount), 0) FROM coin_transaction WHERE user_id = $1`
	if err := repo.db.GetContext(ctx, &balance, q, userID); err != nil {
		return 0, errors.Wrap(err, "summing balance")
	}
	return balance, nil
}
