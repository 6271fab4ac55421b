// Package inmemdb provides mutex-guarded map repositories for tests and the
// local dev server. Semantics mirror the sqlx repositories.
package inmemdb

import (
	"sync"

	"github.com/trezcool/darasa/core/attachment"
	"github.com/trezcool/darasa/core/coin"
	"github.com/trezcool/darasa/core/comment"
	"github.com/trezcool/darasa/core/shop"
	"github.com/trezcool/darasa/core/task"
	"github.com/trezcool/darasa/core/user"
)

type DB struct {
	mutex sync.RWMutex

	users        map[string]*user.User
	tasks        map[string]*task.Task
	assignments  map[string]*task.Assignment
	comments     map[string]*comment.Comment
	attachments  map[string]*attachment.Attachment
	items        map[string]*shop.Item
	inventory    map[string]*shop.InventoryItem
	transactions map[string]*coin.Transaction
}

func NewDB() *DB {
	return &DB{
		users:        make(map[string]*user.User),
		tasks:        make(map[string]*task.Task),
		assignments:  make(map[string]*task.Assignment),
		comments:     make(map[string]*comment.Comment),
		attachments:  make(map[string]*attachment.Attachment),
		items:        make(map[string]*shop.Item),
		inventory:    make(map[string]*shop.InventoryItem),
		transactions: make(map[string]*coin.Transaction),
	}
}

// Reset empties all tables.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.users = make(map[string]*user.User)
	db.tasks = make(map[string]*task.Task)
	db.assignments = make(map[string]*task.Assignment)
	db.comments = make(map[string]*comment.Comment)
	db.attachments = make(map[string]*attachment.Attachment)
	db.items = make(map[string]*shop.Item)
	db.inventory = make(map[string]*shop.InventoryItem)
	db.transactions = make(map[string]*coin.Transaction)
}

// balance computes SUM(amount) for a user; callers must hold the lock.
func (db *DB) balance(userID string) int {
	var total int
	for _, tx := range db.transactions {
		if tx.UserID == userID {
			total += tx.Amount
		}
	}
	return total
}
