package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/google/uuid"

	. "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core/coin"
	"github.com/trezcool/darasa/core/shop"
	testutil "github.com/trezcool/darasa/tests"
)

func Test_shopApi_items(t *testing.T) {
	_, studentToken := createStudent(t, "Window Shopper", "shopstud1")
	_, adminToken := createAdmin(t, "Shop Admin", "shopadm1")

	t.Run("only admins stock the shop", func(t *testing.T) {
		body := []byte(`{"title": "Golden Crown", "kind": "title", "rarity": "epic", "price": 500}`)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		req, rec := newAuthRequest(http.MethodPost, "/v1/shop/items", studentToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)

		req, rec = newAuthRequest(http.MethodPost, "/v1/shop/items", adminToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Errorf("code = %d, want 201; body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("bad kind is rejected", func(t *testing.T) {
		body := []byte(`{"title": "Weird Thing", "kind": "hat", "rarity": "common", "price": 5}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/shop/items", adminToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d, want 400; body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("catalog is readable by anyone signed in", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/shop/items", studentToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
		}
		var items []shop.Item
		if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if len(items) == 0 {
			t.Error("expected at least the crown in the catalog")
		}
	})
}

func Test_shopApi_purchase(t *testing.T) {
	student, token := createStudent(t, "Buyer", "buystud1")
	testutil.GrantCoins(t, coinRepo, student.ID, 100)
	item := testutil.CreateItem(t, shopRepo, "Star Badge", shop.KindBadge, 60)

	idemKey := uuid.New().String()
	body := []byte(`{"item_id": "` + item.ID + `", "idem_key": "` + idemKey + `"}`)

	t.Run("purchase debits the balance", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/shop/purchase", token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
		}

		var res shop.PurchaseResult
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if res.NewBalance != 40 || res.Replayed {
			t.Errorf("balance = %d, replayed = %v; want 40, false", res.NewBalance, res.Replayed)
		}
		if res.Inventory.ItemID != item.ID || res.Inventory.UserID != student.ID {
			t.Errorf("unexpected inventory %+v", res.Inventory)
		}
	})

	t.Run("same idem_key replays the original purchase", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/shop/purchase", token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
		}

		var res shop.PurchaseResult
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if !res.Replayed || res.NewBalance != 40 {
			t.Errorf("replayed = %v, balance = %d; want true, 40", res.Replayed, res.NewBalance)
		}
	})

	t.Run("cannot afford", func(t *testing.T) {
		pricey := testutil.CreateItem(t, shopRepo, "Diamond Crown", shop.KindTitle, 10000)
		body := []byte(`{"item_id": "` + pricey.ID + `", "idem_key": "` + uuid.New().String() + `"}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/shop/purchase", token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusConflict {
			t.Errorf("code = %d, want 409; body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("idem_key must be a uuid", func(t *testing.T) {
		body := []byte(`{"item_id": "` + item.ID + `", "idem_key": "not-a-uuid"}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/shop/purchase", token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d, want 400; body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("teachers do not buy cosmetics", func(t *testing.T) {
		_, teacherToken := createTeacher(t, "Broke Teacher", "brkteach1")
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		req, rec := newAuthRequest(http.MethodPost, "/v1/shop/purchase", teacherToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_shopApi_equip(t *testing.T) {
	student, token := createStudent(t, "Fashionista", "eqstud1")
	testutil.GrantCoins(t, coinRepo, student.ID, 500)

	buy := func(t *testing.T, itemID string) shop.PurchaseResult {
		t.Helper()
		body := []byte(`{"item_id": "` + itemID + `", "idem_key": "` + uuid.New().String() + `"}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/shop/purchase", token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("purchase failed: %s", rec.Body.String())
		}
		var res shop.PurchaseResult
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		return res
	}

	title1 := testutil.CreateItem(t, shopRepo, "Math Wizard", shop.KindTitle, 50)
	title2 := testutil.CreateItem(t, shopRepo, "Bookworm", shop.KindTitle, 50)
	inv1 := buy(t, title1.ID).Inventory
	inv2 := buy(t, title2.ID).Inventory

	equip := func(t *testing.T, invID string, equipped bool) *httptest.ResponseRecorder {
		t.Helper()
		body := []byte(`{"equipped": ` + strconv.FormatBool(equipped) + `}`)
		req, rec := newAuthRequest(http.MethodPut, "/v1/shop/inventory/"+invID+"/equip", token, body)
		app.ServeHTTP(rec, req)
		return rec
	}

	t.Run("first title equips fine", func(t *testing.T) {
		rec := equip(t, inv1.ID, true)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
		}
		var inv shop.InventoryItem
		if err := json.Unmarshal(rec.Body.Bytes(), &inv); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if !inv.Equipped {
			t.Error("expected the title to be equipped")
		}
	})

	t.Run("a second title is a conflict", func(t *testing.T) {
		rec := equip(t, inv2.ID, true)
		if rec.Code != http.StatusConflict {
			t.Errorf("code = %d, want 409; body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("swap after unequipping", func(t *testing.T) {
		if rec := equip(t, inv1.ID, false); rec.Code != http.StatusOK {
			t.Fatalf("unequip failed: %s", rec.Body.String())
		}
		if rec := equip(t, inv2.ID, true); rec.Code != http.StatusOK {
			t.Errorf("swap failed: %s", rec.Body.String())
		}
	})

	t.Run("inventory lists both with equip state", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/shop/inventory", token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
		}
		var inv []shop.InventoryItem
		if err := json.Unmarshal(rec.Body.Bytes(), &inv); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if len(inv) != 2 {
			t.Fatalf("got %d inventory items, want 2", len(inv))
		}
		equipped := make(map[string]bool, len(inv))
		for _, i := range inv {
			equipped[i.ItemID] = i.Equipped
		}
		if equipped[title1.ID] || !equipped[title2.ID] {
			t.Errorf("unexpected equip state %v", equipped)
		}
	})
}

func Test_coinApi(t *testing.T) {
	student, token := createStudent(t, "Coin Student", "coinstud1")
	_, adminToken := createAdmin(t, "Coin Admin", "coinadm1")
	testutil.GrantCoins(t, coinRepo, student.ID, 75)

	t.Run("balance", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, BalanceResponse{Balance: 75})}
		req, rec := newAuthRequest(http.MethodGet, "/v1/coins/balance", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("admin adjustment shows up in history", func(t *testing.T) {
		body := marchallObj(t, coin.Adjustment{UserID: student.ID, Amount: -25, Reason: "uniform damage"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/coins/adjust", adminToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/coins/history", token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
		}
		var txs []coin.Transaction
		if err := json.Unmarshal(rec.Body.Bytes(), &txs); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if len(txs) != 2 || txs[0].Kind != coin.KindAdjustment || txs[0].Amount != -25 {
			t.Errorf("unexpected history %+v", txs)
		}
	})

	t.Run("students cannot adjust", func(t *testing.T) {
		body := marchallObj(t, coin.Adjustment{UserID: student.ID, Amount: 1000, Reason: "nice try"})
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		req, rec := newAuthRequest(http.MethodPost, "/v1/coins/adjust", token, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}
