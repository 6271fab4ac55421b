package coin

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound    = errors.New("transaction not found")
	ErrDuplicateOp = errors.New("operation already recorded")
)

type (
	Repository interface {
		CreateTransaction(ctx context.Context, tx Transaction) (Transaction, error)
		GetTransactionByIdemKey(ctx context.Context, userID, key string) (Transaction, error)
		QueryTransactionsByUser(ctx context.Context, userID string) ([]Transaction, error)
		// GetBalance returns SUM(amount) over the user's entries.
		GetBalance(ctx context.Context, userID string) (int, error)
	}

	ServiceInterface interface {
		Record(ctx context.Context, userID, kind, reason string, amount int) (Transaction, error)
		Balance(ctx context.Context, userID string) (int, error)
		History(ctx context.Context, userID string) ([]Transaction, error)
		Adjust(ctx context.Context, adj Adjustment) (Transaction, error)
	}

	service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

func (svc *service) Record(ctx context.Context, userID, kind, reason string, amount int) (Transaction, error) {
	tx := Transaction{
		ID:        uuid.New().String(),
		UserID:    userID,
		Amount:    amount,
		Kind:      kind,
		Reason:    reason,
		CreatedAt: core.NowFunc().UTC(),
	}
	tx, err := svc.repo.CreateTransaction(ctx, tx)
	return tx, errors.Wrap(err, "recording transaction")
}

func (svc *service) Balance(ctx context.Context, userID string) (int, error) {
	return svc.repo.GetBalance(ctx, userID)
}

func (svc *service) History(ctx context.Context, userID string) ([]Transaction, error) {
	return svc.repo.QueryTransactionsByUser(ctx, userID)
}

// Adjust records a signed admin adjustment.
func (svc *service) Adjust(ctx context.Context, adj Adjustment) (Transaction, error) {
	return svc.Record(ctx, adj.UserID, KindAdjustment, adj.Reason, adj.Amount)
}
