package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coin"
	"github.com/trezcool/darasa/core/shop"
)

type shopRepository struct {
	db *DB
}

var _ shop.Repository = (*shopRepository)(nil)

func NewShopRepository(db *DB) *shopRepository {
	return &shopRepository{db: db}
}

func (repo *shopRepository) CreateItem(_ context.Context, item shop.Item) (shop.Item, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	item.ID = uuid.New().String()
	stored := item
	repo.db.items[item.ID] = &stored
	return item, nil
}

func (repo *shopRepository) GetItemByID(_ context.Context, id string) (shop.Item, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if item, ok := repo.db.items[id]; ok {
		return *item, nil
	}
	return shop.Item{}, shop.ErrItemNotFound
}

func (repo *shopRepository) QueryItems(_ context.Context, activeOnly bool) ([]shop.Item, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	items := make([]shop.Item, 0)
	for _, item := range repo.db.items {
		if activeOnly && !item.IsActive {
			continue
		}
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Price == items[j].Price {
			return items[i].Title < items[j].Title
		}
		return items[i].Price < items[j].Price
	})
	return items, nil
}

// PurchaseItem holds the write lock across the balance check, the ledger
// debit and the inventory grant: the whole purchase is atomic.
func (repo *shopRepository) PurchaseItem(_ context.Context, userID string, item shop.Item, idemKey string) (shop.InventoryItem, bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// replay?
	for _, tx := range repo.db.transactions {
		if tx.UserID == userID && tx.IdemKey.Valid && tx.IdemKey.String == idemKey {
			for _, inv := range repo.db.inventory {
				if inv.UserID == userID && inv.ItemID == item.ID {
					return repo.joinItem(*inv), true, nil
				}
			}
			return shop.InventoryItem{}, false, coin.ErrDuplicateOp
		}
	}

	for _, inv := range repo.db.inventory {
		if inv.UserID == userID && inv.ItemID == item.ID {
			return shop.InventoryItem{}, false, shop.ErrAlreadyOwned
		}
	}
	if repo.db.balance(userID) < item.Price {
		return shop.InventoryItem{}, false, shop.ErrInsufficientBalance
	}

	tx := coin.Transaction{
		ID:        uuid.New().String(),
		UserID:    userID,
		Amount:    -item.Price,
		Kind:      coin.KindPurchase,
		Reason:    "item:" + item.ID,
		IdemKey:   null.StringFrom(idemKey),
		CreatedAt: core.NowFunc().UTC(),
	}
	repo.db.transactions[tx.ID] = &tx

	inv := shop.InventoryItem{
		ID:         uuid.New().String(),
		UserID:     userID,
		ItemID:     item.ID,
		AcquiredAt: core.NowFunc().UTC(),
	}
	repo.db.inventory[inv.ID] = &inv
	return repo.joinItem(inv), false, nil
}

// joinItem fills the item for display; callers must hold the lock.
func (repo *shopRepository) joinItem(inv shop.InventoryItem) shop.InventoryItem {
	if item, ok := repo.db.items[inv.ItemID]; ok {
		inv.Item = *item
	}
	return inv
}

func (repo *shopRepository) GetInventoryItemByID(_ context.Context, id string) (shop.InventoryItem, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if inv, ok := repo.db.inventory[id]; ok {
		return repo.joinItem(*inv), nil
	}
	return shop.InventoryItem{}, shop.ErrInventoryNotFound
}

func (repo *shopRepository) QueryInventoryByUser(_ context.Context, userID string) ([]shop.InventoryItem, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	inventory := make([]shop.InventoryItem, 0)
	for _, inv := range repo.db.inventory {
		if inv.UserID == userID {
			inventory = append(inventory, repo.joinItem(*inv))
		}
	}
	sort.Slice(inventory, func(i, j int) bool {
		if inventory[i].AcquiredAt.Equal(inventory[j].AcquiredAt) {
			return inventory[i].ID < inventory[j].ID
		}
		return inventory[i].AcquiredAt.Before(inventory[j].AcquiredAt)
	})
	return inventory, nil
}

func (repo *shopRepository) CountEquipped(_ context.Context, userID, kind string, excludedIDs ...string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excluded := make(map[string]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = true
	}
	var count int
	for _, inv := range repo.db.inventory {
		if inv.UserID != userID || !inv.Equipped || excluded[inv.ID] {
			continue
		}
		if item, ok := repo.db.items[inv.ItemID]; ok && item.Kind == kind {
			count++
		}
	}
	return count, nil
}

func (repo *shopRepository) SetEquipped(_ context.Context, id string, equipped bool) (shop.InventoryItem, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	inv, ok := repo.db.inventory[id]
	if !ok {
		return shop.InventoryItem{}, shop.ErrInventoryNotFound
	}
	inv.Equipped = equipped
	return repo.joinItem(*inv), nil
}

func (repo *shopRepository) GetBalance(_ context.Context, userID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.db.balance(userID), nil
}
