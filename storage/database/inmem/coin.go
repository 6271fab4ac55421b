package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/coin"
)

type coinRepository struct {
	db *DB
}

var _ coin.Repository = (*coinRepository)(nil)

func NewCoinRepository(db *DB) *coinRepository {
	return &coinRepository{db: db}
}

func (repo *coinRepository) CreateTransaction(_ context.Context, tx coin.Transaction) (coin.Transaction, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if tx.IdemKey.Valid {
		for _, other := range repo.db.transactions {
			if other.UserID == tx.UserID && other.IdemKey.Valid && other.IdemKey.String == tx.IdemKey.String {
				return coin.Transaction{}, coin.ErrDuplicateOp
			}
		}
	}
	stored := tx
	repo.db.transactions[tx.ID] = &stored
	return tx, nil
}

func (repo *coinRepository) GetTransactionByIdemKey(_ context.Context, userID, key string) (coin.Transaction, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, tx := range repo.db.transactions {
		if tx.UserID == userID && tx.IdemKey.Valid && tx.IdemKey.String == key {
			return *tx, nil
		}
	}
	return coin.Transaction{}, coin.ErrNotFound
}

func (repo *coinRepository) QueryTransactionsByUser(_ context.Context, userID string) ([]coin.Transaction, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	txs := make([]coin.Transaction, 0)
	for _, tx := range repo.db.transactions {
		if tx.UserID == userID {
			txs = append(txs, *tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].ID < txs[j].ID
		}
		return txs[i].CreatedAt.After(txs[j].CreatedAt) // newest first
	})
	return txs, nil
}

func (repo *coinRepository) GetBalance(_ context.Context, userID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.db.balance(userID), nil
}
