package shop

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Item kinds; a user equips at most one title and a few badges.
const (
	KindTitle = "title"
	KindBadge = "badge"
)

// Rarities
const (
	RarityCommon    = "common"
	RarityUncommon  = "uncommon"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Kind        string    `json:"kind"`
	Rarity      string    `json:"rarity"`
	Price       int       `json:"price"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// InventoryItem records per-user ownership of an Item.
type InventoryItem struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ItemID     string    `json:"item_id"`
	Equipped   bool      `json:"equipped"`
	AcquiredAt time.Time `json:"acquired_at"` // UTC

	// joined item for display
	Item Item `json:"item"`
}

type NewItem struct {
	Title       string `json:"title" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Kind        string `json:"kind" validate:"required,oneof=title badge"`
	Rarity      string `json:"rarity" validate:"required,oneof=common uncommon rare epic legendary"`
	Price       int    `json:"price" validate:"required,min=1,max=100000"`
}

func (ni *NewItem) Validate(validate *validator.Validate) error {
	ni.Title = core.CleanString(ni.Title)
	ni.Description = core.CleanString(ni.Description)
	return validate.Struct(ni)
}

// PurchaseRequest carries the client-generated idempotency key so a double
// submit cannot double-charge.
type PurchaseRequest struct {
	ItemID  string `json:"item_id" validate:"required"`
	IdemKey string `json:"idem_key" validate:"required,uuid4"`
}

func (pr PurchaseRequest) Validate(validate *validator.Validate) error { return validate.Struct(pr) }

// PurchaseResult is returned to the buying client for display.
type PurchaseResult struct {
	Inventory  InventoryItem `json:"inventory"`
	NewBalance int           `json:"new_balance"`
	// Replayed is set when the idempotency key had already been processed.
	Replayed bool `json:"replayed"`
}

type EquipRequest struct {
	Equipped bool `json:"equipped"`
}
