package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core/comment"
	"github.com/trezcool/darasa/core/user"
)

type commentRepository struct {
	db *DB
}

var _ comment.Repository = (*commentRepository)(nil)

func NewCommentRepository(db *DB) *commentRepository {
	return &commentRepository{db: db}
}

// joinAuthor fills the author display fields; callers must hold the lock.
func (repo *commentRepository) joinAuthor(c comment.Comment) comment.Comment {
	if usr, ok := repo.db.users[c.AuthorID]; ok {
		c.AuthorName = usr.Name
		switch {
		case usr.IsTeacher():
			c.AuthorRole = user.RoleTeacher
		case usr.IsAdmin():
			c.AuthorRole = user.RoleAdmin
		default:
			c.AuthorRole = user.RoleStudent
		}
	}
	return c
}

func (repo *commentRepository) CreateComment(_ context.Context, c comment.Comment) (comment.Comment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c.ID = uuid.New().String()
	stored := c
	repo.db.comments[c.ID] = &stored
	return c, nil
}

func (repo *commentRepository) GetCommentByID(_ context.Context, id string) (comment.Comment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.comments[id]; ok {
		return repo.joinAuthor(*c), nil
	}
	return comment.Comment{}, comment.ErrNotFound
}

func (repo *commentRepository) QueryCommentsByTask(_ context.Context, taskID string) ([]comment.Comment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	comments := make([]comment.Comment, 0)
	for _, c := range repo.db.comments {
		if c.TaskID == taskID {
			comments = append(comments, repo.joinAuthor(*c))
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		if comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].ID < comments[j].ID
		}
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

func (repo *commentRepository) UpdateComment(_ context.Context, c comment.Comment) (comment.Comment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	origCmt, ok := repo.db.comments[c.ID]
	if !ok {
		return comment.Comment{}, comment.ErrNotFound
	}
	origCmt.Body = c.Body
	origCmt.IsEdited = c.IsEdited
	origCmt.UpdatedAt = c.UpdatedAt
	return repo.joinAuthor(*origCmt), nil
}

func (repo *commentRepository) DeleteCommentsByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.comments, id)
	}
	return nil
}
