package client_test

import (
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trezcool/darasa/client"
	"github.com/trezcool/darasa/core/shop"
	"github.com/trezcool/darasa/core/task"
	testutil "github.com/trezcool/darasa/tests"
)

func TestShopStore_CanAfford(t *testing.T) {
	student := createStudent(t, "Frugal Student", "frgstud1")
	testutil.GrantCoins(t, coinRepo, student.ID, 50)

	transport := new(countingTransport)
	gw := client.NewGateway(srv.URL, client.WithHTTPClient(&http.Client{Transport: transport}))
	s := client.NewSession(gw)
	if err := s.SignIn(testCtx(t), student.Username, testPassword); err != nil {
		t.Fatalf("SignIn() failed: %v", err)
	}

	store := client.NewShopStore(gw)
	if err := store.Refresh(testCtx(t)); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}

	// the affordance is answered locally; no request goes out
	baseline := atomic.LoadInt64(&transport.calls)
	if store.CanAfford(100) {
		t.Error("CanAfford(100) = true with balance 50")
	}
	if !store.CanAfford(50) {
		t.Error("CanAfford(50) = false with balance 50")
	}
	if got := atomic.LoadInt64(&transport.calls); got != baseline {
		t.Errorf("CanAfford made %d network calls, want 0", got-baseline)
	}
}

func TestShopStore_purchase(t *testing.T) {
	student := createStudent(t, "Spender", "spndstud1")
	testutil.GrantCoins(t, coinRepo, student.ID, 100)
	badge := testutil.CreateItem(t, shopRepo, "Comet Badge", shop.KindBadge, 80)
	crown := testutil.CreateItem(t, shopRepo, "Client Crown", shop.KindTitle, 500)

	gw, _ := signIn(t, student.Username)
	store := client.NewShopStore(gw)
	if err := store.Refresh(testCtx(t)); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}

	res, err := store.Purchase(testCtx(t), badge.ID)
	if err != nil {
		t.Fatalf("Purchase() failed: %v", err)
	}
	if res.NewBalance != 20 || store.Balance() != 20 {
		t.Errorf("balance = %d/%d, want 20", res.NewBalance, store.Balance())
	}
	if inv := store.Inventory(); len(inv) != 1 || inv[0].ItemID != badge.ID {
		t.Errorf("inventory = %+v, want the badge", inv)
	}

	t.Run("a stale balance is the server's call, surfaced as a conflict", func(t *testing.T) {
		_, err := store.Purchase(testCtx(t), crown.ID)
		if err == nil || client.KindOf(err) != client.KindConflict {
			t.Errorf("got %v, want a conflict error", err)
		}
		if store.Balance() != 20 {
			t.Errorf("balance = %d, want 20 untouched", store.Balance())
		}
	})

	t.Run("equip through the store", func(t *testing.T) {
		invID := store.Inventory()[0].ID
		inv, err := store.Equip(testCtx(t), invID, true)
		if err != nil {
			t.Fatalf("Equip() failed: %v", err)
		}
		if !inv.Equipped || !store.Inventory()[0].Equipped {
			t.Error("badge should be equipped locally and remotely")
		}
	})
}

func TestTaskStore_completeIsIdempotent(t *testing.T) {
	teacher := createTeacher(t, "Idem Teacher", "idmteach1")
	student := createStudent(t, "Idem Student", "idmstud1")

	due := time.Now().Add(24 * time.Hour).UTC()
	_, assignments := createTask(t, teacher.ID, 60, due, student.ID)

	gw, _ := signIn(t, student.Username)
	store := client.NewTaskStore(gw)
	if _, err := store.RefreshAssigned(testCtx(t)); err != nil {
		t.Fatalf("RefreshAssigned() failed: %v", err)
	}

	first, err := store.Complete(testCtx(t), assignments[0].ID)
	if err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}
	if first.AlreadyCompleted || first.Total == 0 {
		t.Errorf("unexpected first completion %+v", first)
	}

	// a double click replays the original result; no second payout
	second, err := store.Complete(testCtx(t), assignments[0].ID)
	if err != nil {
		t.Fatalf("Complete() replay failed: %v", err)
	}
	if !second.AlreadyCompleted || second.NewBalance != first.NewBalance {
		t.Errorf("replay = %+v, want the original balance %d", second, first.NewBalance)
	}
	if !second.Assignment.CompletedAt.Time.Equal(first.Assignment.CompletedAt.Time) {
		t.Error("completed_at changed on replay")
	}

	if got := store.Assigned(); len(got) != 1 || got[0].Status != task.StatusCompleted {
		t.Errorf("assigned view = %+v, want the completed row", got)
	}
}
