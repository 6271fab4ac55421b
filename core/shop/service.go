package shop

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrItemNotFound      = errors.New("shop item not found")
	ErrInventoryNotFound = errors.New("inventory item not found")
	ErrAlreadyOwned      = errors.New("item already owned")
	// ErrInsufficientBalance is the authoritative rejection; clients only
	// disable the buy affordance as a UX hint.
	ErrInsufficientBalance = errors.New("not enough coins")
)

type (
	// Repository. PurchaseItem must be atomic: balance check, ledger debit and
	// inventory grant all commit or none do. A replayed idempotency key
	// returns the original inventory row with replayed=true.
	Repository interface {
		CreateItem(ctx context.Context, item Item) (Item, error)
		GetItemByID(ctx context.Context, id string) (Item, error)
		QueryItems(ctx context.Context, activeOnly bool) ([]Item, error)
		PurchaseItem(ctx context.Context, userID string, item Item, idemKey string) (inv InventoryItem, replayed bool, err error)
		GetInventoryItemByID(ctx context.Context, id string) (InventoryItem, error)
		QueryInventoryByUser(ctx context.Context, userID string) ([]InventoryItem, error)
		CountEquipped(ctx context.Context, userID, kind string, excludedIDs ...string) (int, error)
		SetEquipped(ctx context.Context, id string, equipped bool) (InventoryItem, error)
		// GetBalance returns SUM(amount) over the user's coin ledger.
		GetBalance(ctx context.Context, userID string) (int, error)
	}

	ServiceInterface interface {
		CreateItem(ctx context.Context, ni NewItem) (Item, error)
		Items(ctx context.Context) ([]Item, error)
		Inventory(ctx context.Context, userID string) ([]InventoryItem, error)
		Purchase(ctx context.Context, userID string, pr PurchaseRequest) (PurchaseResult, error)
		SetEquipped(ctx context.Context, userID, inventoryID string, equipped bool) (InventoryItem, error)
	}

	service struct {
		repo Repository
		conf *core.Config
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, conf *core.Config) *service {
	return &service{repo: repo, conf: conf}
}

func (svc *service) CreateItem(ctx context.Context, ni NewItem) (Item, error) {
	item := Item{
		Title:       ni.Title,
		Description: ni.Description,
		Kind:        ni.Kind,
		Rarity:      ni.Rarity,
		Price:       ni.Price,
		IsActive:    true,
		CreatedAt:   core.NowFunc().UTC(),
	}
	return svc.repo.CreateItem(ctx, item)
}

func (svc *service) Items(ctx context.Context) ([]Item, error) {
	return svc.repo.QueryItems(ctx, true /* activeOnly */)
}

func (svc *service) Inventory(ctx context.Context, userID string) ([]InventoryItem, error) {
	return svc.repo.QueryInventoryByUser(ctx, userID)
}

// Purchase atomically validates balance, debits the ledger and grants
// ownership. The locally cached balance a client checked is only a UX hint;
// the check here is the one that counts.
func (svc *service) Purchase(ctx context.Context, userID string, pr PurchaseRequest) (PurchaseResult, error) {
	item, err := svc.repo.GetItemByID(ctx, pr.ItemID)
	if err != nil {
		return PurchaseResult{}, errors.Wrap(err, "finding item")
	}
	if !item.IsActive {
		return PurchaseResult{}, core.NewAppError(core.KindNotFound, ErrItemNotFound.Error())
	}

	inv, replayed, err := svc.repo.PurchaseItem(ctx, userID, item, pr.IdemKey)
	if err != nil {
		switch errors.Cause(err) {
		case ErrInsufficientBalance:
			return PurchaseResult{}, core.NewAppError(core.KindConflict, ErrInsufficientBalance.Error())
		case ErrAlreadyOwned:
			return PurchaseResult{}, core.NewAppError(core.KindConflict, ErrAlreadyOwned.Error())
		}
		return PurchaseResult{}, errors.Wrap(err, "purchasing item")
	}

	balance, err := svc.repo.GetBalance(ctx, userID)
	if err != nil {
		return PurchaseResult{}, errors.Wrap(err, "reading balance")
	}
	return PurchaseResult{Inventory: inv, NewBalance: balance, Replayed: replayed}, nil
}

// SetEquipped equips or unequips an owned cosmetic: at most one equipped
// title and at most Config.MaxEquippedBadges badges.
func (svc *service) SetEquipped(ctx context.Context, userID, inventoryID string, equipped bool) (InventoryItem, error) {
	inv, err := svc.repo.GetInventoryItemByID(ctx, inventoryID)
	if err != nil {
		return InventoryItem{}, errors.Wrap(err, "finding inventory item")
	}
	if inv.UserID != userID {
		return InventoryItem{}, core.NewAppError(core.KindForbidden, "not your item")
	}
	if inv.Equipped == equipped {
		return inv, nil
	}

	if equipped {
		count, err := svc.repo.CountEquipped(ctx, userID, inv.Item.Kind, inv.ID)
		if err != nil {
			return InventoryItem{}, errors.Wrap(err, "counting equipped items")
		}
		switch inv.Item.Kind {
		case KindTitle:
			if count >= 1 {
				return InventoryItem{}, core.NewAppError(core.KindConflict, "only one title may be equipped")
			}
		case KindBadge:
			if count >= svc.conf.MaxEquippedBadges {
				return InventoryItem{}, core.NewAppError(core.KindConflict, "badge slots are full")
			}
		}
	}
	return svc.repo.SetEquipped(ctx, inv.ID, equipped)
}
