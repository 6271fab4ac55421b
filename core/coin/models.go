package coin

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Transaction kinds
const (
	KindReward     = "reward"
	KindBonus      = "bonus"
	KindPenalty    = "penalty"
	KindPurchase   = "purchase"
	KindAdjustment = "adjustment"
)

// Transaction is an append-only ledger entry. A user's authoritative balance
// is the SUM of their entries; it is never computed anywhere else.
type Transaction struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Amount int    `json:"amount"` // signed
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
	// IdemKey deduplicates client-generated operations (e.g. purchases);
	// unique per user when set.
	IdemKey   null.String `json:"-"`
	CreatedAt time.Time   `json:"created_at"` // UTC
}

type Adjustment struct {
	UserID string `json:"user_id" validate:"required"`
	Amount int    `json:"amount" validate:"required"`
	Reason string `json:"reason" validate:"required,max=200"`
}
