package shop_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coin"
	"github.com/trezcool/darasa/core/shop"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	testutil "github.com/trezcool/darasa/tests"
)

func setup(t *testing.T) (shop.ServiceInterface, shop.Repository, coin.Repository) {
	t.Helper()
	db := inmemdb.NewDB()
	repo := inmemdb.NewShopRepository(db)
	return shop.NewService(repo, testutil.NewConfig()), repo, inmemdb.NewCoinRepository(db)
}

func Test_service_Purchase(t *testing.T) {
	svc, repo, coinRepo := setup(t)
	ctx := context.Background()

	item := testutil.CreateItem(t, repo, "Mathlete", shop.KindTitle, 100)
	testutil.GrantCoins(t, coinRepo, "s1", 150)

	t.Run("insufficient balance", func(t *testing.T) {
		poor := testutil.CreateItem(t, repo, "Golden Crown", shop.KindBadge, 1000)
		_, err := svc.Purchase(ctx, "s1", shop.PurchaseRequest{ItemID: poor.ID, IdemKey: uuid.New().String()})
		if core.KindOf(err) != core.KindConflict {
			t.Errorf("got %v, want conflict", err)
		}
	})

	idemKey := uuid.New().String()

	t.Run("ok", func(t *testing.T) {
		res, err := svc.Purchase(ctx, "s1", shop.PurchaseRequest{ItemID: item.ID, IdemKey: idemKey})
		if err != nil {
			t.Fatalf("Purchase() failed: %v", err)
		}
		if res.Replayed {
			t.Error("first purchase must not be a replay")
		}
		if res.NewBalance != 50 {
			t.Errorf("balance = %d, want 50", res.NewBalance)
		}
		if res.Inventory.ItemID != item.ID || res.Inventory.UserID != "s1" {
			t.Errorf("unexpected inventory %+v", res.Inventory)
		}
	})

	t.Run("replayed idem key does not double-charge", func(t *testing.T) {
		res, err := svc.Purchase(ctx, "s1", shop.PurchaseRequest{ItemID: item.ID, IdemKey: idemKey})
		if err != nil {
			t.Fatalf("Purchase() replay failed: %v", err)
		}
		if !res.Replayed {
			t.Error("expected a replay")
		}
		if res.NewBalance != 50 {
			t.Errorf("balance = %d, want 50 (unchanged)", res.NewBalance)
		}
	})

	t.Run("already owned", func(t *testing.T) {
		_, err := svc.Purchase(ctx, "s1", shop.PurchaseRequest{ItemID: item.ID, IdemKey: uuid.New().String()})
		if core.KindOf(err) != core.KindConflict {
			t.Errorf("got %v, want conflict", err)
		}
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := svc.Purchase(ctx, "s1", shop.PurchaseRequest{ItemID: "nope", IdemKey: uuid.New().String()})
		if errors.Cause(err) != shop.ErrItemNotFound {
			t.Errorf("got %v, want %v", err, shop.ErrItemNotFound)
		}
	})
}

func Test_service_SetEquipped(t *testing.T) {
	svc, repo, coinRepo := setup(t)
	ctx := context.Background()

	testutil.GrantCoins(t, coinRepo, "s1", 10000)

	buy := func(t *testing.T, title, kind string) shop.InventoryItem {
		t.Helper()
		item := testutil.CreateItem(t, repo, title, kind, 10)
		res, err := svc.Purchase(ctx, "s1", shop.PurchaseRequest{ItemID: item.ID, IdemKey: uuid.New().String()})
		if err != nil {
			t.Fatalf("Purchase() failed: %v", err)
		}
		return res.Inventory
	}

	t.Run("only one title", func(t *testing.T) {
		first := buy(t, "Title A", shop.KindTitle)
		second := buy(t, "Title B", shop.KindTitle)

		inv, err := svc.SetEquipped(ctx, "s1", first.ID, true)
		if err != nil {
			t.Fatalf("SetEquipped() failed: %v", err)
		}
		if !inv.Equipped {
			t.Error("item should be equipped")
		}

		if _, err = svc.SetEquipped(ctx, "s1", second.ID, true); core.KindOf(err) != core.KindConflict {
			t.Errorf("second title: got %v, want conflict", err)
		}

		// unequip then equip the other
		if _, err = svc.SetEquipped(ctx, "s1", first.ID, false); err != nil {
			t.Fatalf("SetEquipped(false) failed: %v", err)
		}
		if _, err = svc.SetEquipped(ctx, "s1", second.ID, true); err != nil {
			t.Fatalf("SetEquipped() after unequip failed: %v", err)
		}
	})

	t.Run("badge slots are capped", func(t *testing.T) {
		conf := testutil.NewConfig()
		badges := make([]shop.InventoryItem, 0, conf.MaxEquippedBadges+1)
		for i := 0; i <= conf.MaxEquippedBadges; i++ {
			badges = append(badges, buy(t, fmt.Sprintf("Badge %d", i), shop.KindBadge))
		}

		for i := 0; i < conf.MaxEquippedBadges; i++ {
			if _, err := svc.SetEquipped(ctx, "s1", badges[i].ID, true); err != nil {
				t.Fatalf("SetEquipped(badge %d) failed: %v", i, err)
			}
		}
		if _, err := svc.SetEquipped(ctx, "s1", badges[conf.MaxEquippedBadges].ID, true); core.KindOf(err) != core.KindConflict {
			t.Errorf("extra badge: got %v, want conflict", err)
		}
	})

	t.Run("not your item", func(t *testing.T) {
		inv := buy(t, "Stolen Goods", shop.KindBadge)
		if _, err := svc.SetEquipped(ctx, "s2", inv.ID, true); core.KindOf(err) != core.KindForbidden {
			t.Errorf("got %v, want forbidden", err)
		}
	})

	t.Run("equipping twice is a no-op", func(t *testing.T) {
		inv := buy(t, "Shiny Badge", shop.KindBadge)
		// leave room: unequip others first is not needed, badge slots may be full
		if _, err := svc.SetEquipped(ctx, "s1", inv.ID, false); err != nil {
			t.Fatalf("SetEquipped(false) on unequipped item failed: %v", err)
		}
	})
}

func Test_service_Items_activeOnly(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()

	testutil.CreateItem(t, repo, "Visible", shop.KindBadge, 10)
	inactive := shop.Item{Title: "Hidden", Kind: shop.KindBadge, Rarity: shop.RarityCommon, Price: 10, IsActive: false}
	if _, err := repo.CreateItem(ctx, inactive); err != nil {
		t.Fatalf("CreateItem() failed: %v", err)
	}

	items, err := svc.Items(ctx)
	if err != nil {
		t.Fatalf("Items() failed: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Visible" {
		t.Errorf("unexpected items %+v", items)
	}
}
