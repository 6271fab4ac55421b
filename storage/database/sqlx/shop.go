package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coin"
	"github.com/trezcool/darasa/core/shop"
)

const (
	itemColumns = `id, kind, title, description, price, rarity, is_active, created_at`

	inventoryColumns = `inv.id, inv.user_id, inv.item_id, inv.equipped, inv.acquired_at,
	i.id "item.id", i.kind "item.kind", i.title "item.title", i.description "item.description",
	i.price "item.price", i.rarity "item.rarity", i.is_active "item.is_active", i.created_at "item.created_at"`
)

type itemRow struct {
	ID          string    `db:"id"`
	Kind        string    `db:"kind"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Price       int       `db:"price"`
	Rarity      string    `db:"rarity"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
}

func (row itemRow) toItem() shop.Item {
	return shop.Item{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Kind:        row.Kind,
		Rarity:      row.Rarity,
		Price:       row.Price,
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

type inventoryRow struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	ItemID     string    `db:"item_id"`
	Equipped   bool      `db:"equipped"`
	AcquiredAt time.Time `db:"acquired_at"`
	Item       itemRow   `db:"item"`
}

func (row inventoryRow) toInventoryItem() shop.InventoryItem {
	return shop.InventoryItem{
		ID:         row.ID,
		UserID:     row.UserID,
		ItemID:     row.ItemID,
		Equipped:   row.Equipped,
		AcquiredAt: row.AcquiredAt.UTC(),
		Item:       row.Item.toItem(),
	}
}

type shopRepository struct {
	db *sqlx.DB
}

var _ shop.Repository = (*shopRepository)(nil)

func NewShopRepository(db *sqlx.DB) *shopRepository {
	return &shopRepository{db: db}
}

func (repo *shopRepository) CreateItem(ctx context.Context, item shop.Item) (shop.Item, error) {
	item.ID = uuid.New().String()
	q := `INSERT INTO shop_item (` + itemColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := repo.db.ExecContext(ctx, q,
		item.ID, item.Kind, item.Title, item.Description, item.Price, item.Rarity, item.IsActive, item.CreatedAt)
	if err != nil {
		return shop.Item{}, errors.Wrap(err, "inserting item")
	}
	return item, nil
}

func (repo *shopRepository) GetItemByID(ctx context.Context, id string) (shop.Item, error) {
	var row itemRow
	q := `SELECT ` + itemColumns + ` FROM shop_item WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return shop.Item{}, shop.ErrItemNotFound
		}
		return shop.Item{}, errors.Wrap(err, "getting item")
	}
	return row.toItem(), nil
}

func (repo *shopRepository) QueryItems(ctx context.Context, activeOnly bool) ([]shop.Item, error) {
	q := `SELECT ` + itemColumns + ` FROM shop_item`
	if activeOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY price, title`
	var rows []itemRow
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying items")
	}
	items := make([]shop.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toItem())
	}
	return items, nil
}

// PurchaseItem runs the whole purchase in one transaction: the idempotency
// replay check, the already-owned check, the balance check, the ledger debit
// and the inventory grant.
func (repo *shopRepository) PurchaseItem(ctx context.Context, userID string, item shop.Item, idemKey string) (shop.InventoryItem, bool, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return shop.InventoryItem{}, false, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	// replay?
	var replayed bool
	q := `SELECT EXISTS (SELECT 1 FROM coin_transaction WHERE user_id = $1 AND idem_key = $2)`
	if err = tx.GetContext(ctx, &replayed, q, userID, idemKey); err != nil {
		return shop.InventoryItem{}, false, errors.Wrap(err, "checking idempotency key")
	}
	if replayed {
		var row inventoryRow
		q = `SELECT ` + inventoryColumns + ` FROM inventory_item inv JOIN shop_item i ON i.id = inv.item_id
		     WHERE inv.user_id = $1 AND inv.item_id = $2`
		if err = tx.GetContext(ctx, &row, q, userID, item.ID); err != nil {
			if err == sql.ErrNoRows {
				return shop.InventoryItem{}, false, coin.ErrDuplicateOp
			}
			return shop.InventoryItem{}, false, errors.Wrap(err, "getting inventory item")
		}
		return row.toInventoryItem(), true, nil
	}

	var owned bool
	q = `SELECT EXISTS (SELECT 1 FROM inventory_item WHERE user_id = $1 AND item_id = $2)`
	if err = tx.GetContext(ctx, &owned, q, userID, item.ID); err != nil {
		return shop.InventoryItem{}, false, errors.Wrap(err, "checking ownership")
	}
	if owned {
		return shop.InventoryItem{}, false, shop.ErrAlreadyOwned
	}

	var balance int
	q = `SELECT COALESCE(SUM(amount), 0) FROM coin_transaction WHERE user_id = $1`
	if err = tx.GetContext(ctx, &balance, q, userID); err != nil {
		return shop.InventoryItem{}, false, errors.Wrap(err, "summing balance")
	}
	if balance < item.Price {
		return shop.InventoryItem{}, false, shop.ErrInsufficientBalance
	}

	now := core.NowFunc().UTC()
	q = `INSERT INTO coin_transaction (` + transactionColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = tx.ExecContext(ctx, q,
		uuid.New().String(), userID, -item.Price, coin.KindPurchase, "item:"+item.ID, null.StringFrom(idemKey), now)
	if err != nil {
		if isUniqueViolation(err) {
			return shop.InventoryItem{}, false, coin.ErrDuplicateOp
		}
		return shop.InventoryItem{}, false, errors.Wrap(err, "inserting transaction")
	}

	inv := shop.InventoryItem{
		ID:         uuid.New().String(),
		UserID:     userID,
		ItemID:     item.ID,
		AcquiredAt: now,
		Item:       item,
	}
	q = `INSERT INTO inventory_item (id, user_id, item_id, equipped, acquired_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err = tx.ExecContext(ctx, q, inv.ID, inv.UserID, inv.ItemID, inv.Equipped, inv.AcquiredAt); err != nil {
		if isUniqueViolation(err) {
			return shop.InventoryItem{}, false, shop.ErrAlreadyOwned
		}
		return shop.InventoryItem{}, false, errors.Wrap(err, "inserting inventory item")
	}

	if err = tx.Commit(); err != nil {
		return shop.InventoryItem{}, false, errors.Wrap(err, "committing transaction")
	}
	return inv, false, nil
}

func (repo *shopRepository) GetInventoryItemByID(ctx context.Context, id string) (shop.InventoryItem, error) {
	var row inventoryRow
	q := `SELECT ` + inventoryColumns + ` FROM inventory_item inv JOIN shop_item i ON i.id = inv.item_id WHERE inv.id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return shop.InventoryItem{}, shop.ErrInventoryNotFound
		}
		return shop.InventoryItem{}, errors.Wrap(err, "getting inventory item")
	}
	return row.toInventoryItem(), nil
}

func (repo *shopRepository) QueryInventoryByUser(ctx context.Context, userID string) ([]shop.InventoryItem, error) {
	var rows []inventoryRow
	q := `SELECT ` + inventoryColumns + ` FROM inventory_item inv JOIN shop_item i ON i.id = inv.item_id
	      WHERE inv.user_id = $1 ORDER BY inv.acquired_at, inv.id`
	if err := repo.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying inventory")
	}
	inventory := make([]shop.InventoryItem, 0, len(rows))
	for _, row := range rows {
		inventory = append(inventory, row.toInventoryItem())
	}
	return inventory, nil
}

func (repo *shopRepository) CountEquipped(ctx context.Context, userID, kind string, excludedIDs ...string) (int, error) {
	var count int
	q := `SELECT COUNT(*) FROM inventory_item inv JOIN shop_item i ON i.id = inv.item_id
	      WHERE inv.user_id = $1 AND inv.equipped AND i.kind = $2 AND NOT (inv.id = ANY($3))`
	if err := repo.db.GetContext(ctx, &count, q, userID, kind, pq.Array(excludedIDs)); err != nil {
		return 0, errors.Wrap(err, "counting equipped items")
	}
	return count, nil
}

func (repo *shopRepository) SetEquipped(ctx context.Context, id string, equipped bool) (shop.InventoryItem, error) {
	res, err := repo.db.ExecContext(ctx, `UPDATE inventory_item SET equipped = $1 WHERE id = $2`, equipped, id)
	if err != nil {
		return shop.InventoryItem{}, errors.Wrap(err, "updating inventory item")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shop.InventoryItem{}, shop.ErrInventoryNotFound
	}
	return repo.GetInventoryItemByID(ctx, id)
}

func (repo *shopRepository) GetBalance(ctx context.Context, userID string) (int, error) {
	var balance int
	q := `SELECT COALESCE(SUM(amount), 0) FROM coin_transaction WHERE user_id = $1`
	if err := repo.db.GetContext(ctx, &balance, q, userID); err != nil {
		return 0, errors.Wrap(err, "summing balance")
	}
	return balance, nil
}
