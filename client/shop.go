package client

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/coin"
	"github.com/trezcool/darasa/core/shop"
)

// ShopStore caches the catalog, the inventory and the coin balance.
// CanAfford is a pure local affordance; the server remains the authority and
// rejects stale-balance purchases with a conflict.
type ShopStore struct {
	gw *Gateway

	mu        sync.Mutex
	items     []shop.Item
	inventory []shop.InventoryItem
	balance   int
}

func NewShopStore(gw *Gateway) *ShopStore {
	return &ShopStore{gw: gw}
}

// Refresh reloads catalog, inventory and balance in one go.
func (s *ShopStore) Refresh(ctx context.Context) error {
	items, err := s.gw.ShopItems(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching items")
	}
	inventory, err := s.gw.Inventory(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching inventory")
	}
	balance, err := s.gw.Balance(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching balance")
	}

	s.mu.Lock()
	s.items, s.inventory, s.balance = items, inventory, balance
	s.mu.Unlock()
	return nil
}

// CanAfford answers from the cached balance without any network call.
func (s *ShopStore) CanAfford(price int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance >= price
}

// Purchase buys an item under a fresh idempotency key and applies the
// server's new balance.
func (s *ShopStore) Purchase(ctx context.Context, itemID string) (shop.PurchaseResult, error) {
	res, err := s.gw.Purchase(ctx, shop.PurchaseRequest{ItemID: itemID, IdemKey: uuid.New().String()})
	if err != nil {
		return shop.PurchaseResult{}, errors.Wrap(err, "purchasing item")
	}

	s.mu.Lock()
	s.balance = res.NewBalance
	if !res.Replayed {
		s.inventory = append(s.inventory, res.Inventory)
	}
	s.mu.Unlock()
	return res, nil
}

func (s *ShopStore) Equip(ctx context.Context, inventoryID string, equipped bool) (shop.InventoryItem, error) {
	inv, err := s.gw.SetEquipped(ctx, inventoryID, equipped)
	if err != nil {
		return shop.InventoryItem{}, errors.Wrap(err, "equipping item")
	}

	s.mu.Lock()
	for i := range s.inventory {
		if s.inventory[i].ID == inv.ID {
			s.inventory[i] = inv
			break
		}
	}
	s.mu.Unlock()
	return inv, nil
}

func (s *ShopStore) Items() []shop.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]shop.Item, len(s.items))
	copy(out, s.items)
	return out
}

func (s *ShopStore) Inventory() []shop.InventoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]shop.InventoryItem, len(s.inventory))
	copy(out, s.inventory)
	return out
}

func (s *ShopStore) Balance() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// Gateway calls

type balanceResponse struct {
	Balance int `json:"balance"`
}

func (g *Gateway) ShopItems(ctx context.Context) ([]shop.Item, error) {
	var items []shop.Item
	err := g.do(ctx, http.MethodGet, "/v1/shop/items", nil, &items)
	return items, err
}

func (g *Gateway) Purchase(ctx context.Context, pr shop.PurchaseRequest) (shop.PurchaseResult, error) {
	var res shop.PurchaseResult
	err := g.do(ctx, http.MethodPost, "/v1/shop/purchase", pr, &res)
	return res, err
}

func (g *Gateway) Inventory(ctx context.Context) ([]shop.InventoryItem, error) {
	var inv []shop.InventoryItem
	err := g.do(ctx, http.MethodGet, "/v1/shop/inventory", nil, &inv)
	return inv, err
}

func (g *Gateway) SetEquipped(ctx context.Context, inventoryID string, equipped bool) (shop.InventoryItem, error) {
	var inv shop.InventoryItem
	in := shop.EquipRequest{Equipped: equipped}
	err := g.do(ctx, http.MethodPut, "/v1/shop/inventory/"+inventoryID+"/equip", in, &inv)
	return inv, err
}

func (g *Gateway) Balance(ctx context.Context) (int, error) {
	var resp balanceResponse
	err := g.do(ctx, http.MethodGet, "/v1/coins/balance", nil, &resp)
	return resp.Balance, err
}

func (g *Gateway) CoinHistory(ctx context.Context) ([]coin.Transaction, error) {
	var txs []coin.Transaction
	err := g.do(ctx, http.MethodGet, "/v1/coins/history", nil, &txs)
	return txs, err
}

// AdjustCoins is the admin-only balance correction.
func (g *Gateway) AdjustCoins(ctx context.Context, adj coin.Adjustment) (coin.Transaction, error) {
	var tx coin.Transaction
	err := g.do(ctx, http.MethodPost, "/v1/coins/adjust", adj, &tx)
	return tx, err
}
