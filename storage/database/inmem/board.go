package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/board"
	"github.com/trezcool/darasa/core/coin"
	"github.com/trezcool/darasa/core/shop"
	"github.com/trezcool/darasa/core/task"
	"github.com/trezcool/darasa/core/user"
)

type boardRepository struct {
	db *DB
}

var _ board.Repository = (*boardRepository)(nil)

func NewBoardRepository(db *DB) *boardRepository {
	return &boardRepository{db: db}
}

// standings builds the full ranked list; callers must hold the lock.
func (repo *boardRepository) standings() []board.Entry {
	entries := make([]board.Entry, 0)
	for _, usr := range repo.db.users {
		if !usr.IsStudent() {
			continue
		}
		entry := board.Entry{
			StudentID: usr.ID,
			Name:      usr.Name,
			Balance:   repo.db.balance(usr.ID),
		}
		for _, a := range repo.db.assignments {
			if a.StudentID == usr.ID && a.Status == task.StatusCompleted {
				entry.TasksCompleted++
			}
		}
		for _, inv := range repo.db.inventory {
			if inv.UserID != usr.ID || !inv.Equipped {
				continue
			}
			if item, ok := repo.db.items[inv.ItemID]; ok {
				switch item.Kind {
				case shop.KindTitle:
					entry.EquippedTitle = item.Title
				case shop.KindBadge:
					entry.EquippedBadges = append(entry.EquippedBadges, item.Title)
				}
			}
		}
		sort.Strings(entry.EquippedBadges)
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Balance == entries[j].Balance {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].Balance > entries[j].Balance
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func (repo *boardRepository) QueryLeaderboard(_ context.Context, limit int) ([]board.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := repo.standings()
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (repo *boardRepository) GetRank(_ context.Context, studentID string) (board.Rank, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := repo.standings()
	for _, entry := range entries {
		if entry.StudentID == studentID {
			return board.Rank{
				StudentID:     studentID,
				Rank:          entry.Rank,
				Balance:       entry.Balance,
				TotalStudents: len(entries),
				Percentile:    float64(entry.Rank) / float64(len(entries)) * 100,
			}, nil
		}
	}
	return board.Rank{}, user.ErrNotFound
}

func (repo *boardRepository) GetTeacherStats(_ context.Context, teacherID string) (board.TeacherStats, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	stats := board.TeacherStats{}
	perSubject := make(map[string]*board.SubjectStats)
	taskIDs := make(map[string]string) // task id -> subject

	for _, t := range repo.db.tasks {
		if t.TeacherID != teacherID {
			continue
		}
		stats.Tasks++
		taskIDs[t.ID] = t.Subject
		if _, ok := perSubject[t.Subject]; !ok {
			perSubject[t.Subject] = &board.SubjectStats{Subject: t.Subject}
		}
	}
	for _, a := range repo.db.assignments {
		subject, ok := taskIDs[a.TaskID]
		if !ok {
			continue
		}
		ss := perSubject[subject]
		ss.Assigned++
		if a.Status == task.StatusCompleted {
			ss.Completed++
			stats.Completed++
		} else {
			stats.Pending++
		}
	}
	for _, tx := range repo.db.transactions {
		if tx.Kind != coin.KindReward && tx.Kind != coin.KindBonus {
			continue
		}
		if _, ok := taskIDs[trimTaskReason(tx.Reason)]; ok {
			stats.CoinsAwarded += tx.Amount
		}
	}

	for _, ss := range perSubject {
		if ss.Assigned > 0 {
			ss.CompletionRate = float64(ss.Completed) / float64(ss.Assigned)
		}
		stats.PerSubject = append(stats.PerSubject, *ss)
	}
	sort.Slice(stats.PerSubject, func(i, j int) bool {
		return stats.PerSubject[i].Subject < stats.PerSubject[j].Subject
	})
	return stats, nil
}

func trimTaskReason(reason string) string {
	const prefix = "task:"
	if len(reason) > len(prefix) && reason[:len(prefix)] == prefix {
		return reason[len(prefix):]
	}
	return ""
}
