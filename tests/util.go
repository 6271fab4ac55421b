// Package testutil holds helpers shared by tests across the repo.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coin"
	"github.com/trezcool/darasa/core/shop"
	"github.com/trezcool/darasa/core/task"
	"github.com/trezcool/darasa/core/user"
)

// NewConfig returns a self-contained test configuration; nothing is read from
// the environment.
func NewConfig() *core.Config {
	return &core.Config{
		Env:      "TEST",
		Debug:    true,
		TestMode: true,

		AppName:          "Darasa",
		SecretKey:        []byte("secret"),
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: "noreply@test.cd",

		AccountConfirmationTimeoutDelta: 3 * 24 * time.Hour,
		PasswordResetTimeoutDelta:       3 * 24 * time.Hour,
		MaxEquippedBadges:               3,

		Server: core.ServerConfig{
			Host:                      "localhost",
			Port:                      8000,
			JWTExpirationDelta:        7 * 24 * time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  &isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateTask(
	t *testing.T,
	repo task.Repository,
	teacherID, title string,
	reward int,
	due time.Time,
	studentIDs ...string,
) (task.Task, []task.Assignment) {
	t.Helper()

	now := time.Now().UTC()
	tsk := task.Task{
		Title:     title,
		Subject:   "Math",
		DueDate:   due.UTC(),
		TeacherID: teacherID,
		Reward:    reward,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tsk, assignments, err := repo.CreateTaskWithAssignments(context.Background(), tsk, studentIDs)
	if err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}
	return tsk, assignments
}

func CreateItem(t *testing.T, repo shop.Repository, title, kind string, price int) shop.Item {
	t.Helper()

	item := shop.Item{
		Title:     title,
		Kind:      kind,
		Rarity:    shop.RarityCommon,
		Price:     price,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	item, err := repo.CreateItem(context.Background(), item)
	if err != nil {
		t.Fatalf("CreateItem() failed: %v", err)
	}
	return item
}

// GrantCoins seeds a user's ledger with an adjustment.
func GrantCoins(t *testing.T, repo coin.Repository, userID string, amount int) coin.Transaction {
	t.Helper()

	tx, err := coin.NewService(repo).Record(context.Background(), userID, coin.KindAdjustment, "seed", amount)
	if err != nil {
		t.Fatalf("GrantCoins() failed: %v", err)
	}
	return tx
}
