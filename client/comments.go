package client

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/comment"
	"github.com/trezcool/darasa/realtime"
)

// CommentStore keeps a live local copy of one task's comment thread: a
// snapshot fetch, then exactly one feed subscription applying row events
// last-event-wins.
//
// Posting is optimistic: the new comment appears immediately under a temp id
// and collapses onto the server row when its echo arrives, via the direct
// response or the insert event, whichever lands first. Either way the thread
// never shows a duplicate.
type CommentStore struct {
	gw     *Gateway
	taskID string

	mu         sync.Mutex
	comments   []comment.Comment
	tempBodies map[string]string // temp id -> body, awaiting echo
	opened     bool
	closed     bool
	cancel     func()
	listeners  map[int]func([]comment.Comment)
	nextID     int
}

func NewCommentStore(gw *Gateway, taskID string) *CommentStore {
	return &CommentStore{
		gw:         gw,
		taskID:     taskID,
		tempBodies: make(map[string]string),
		listeners:  make(map[int]func([]comment.Comment)),
	}
}

// Open fetches the snapshot and subscribes to the task's comment feed.
// Calling it twice is an error; there is exactly one subscription per task.
func (s *CommentStore) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.opened || s.closed {
		s.mu.Unlock()
		return errors.New("comment store already opened")
	}
	s.opened = true
	s.mu.Unlock()

	snapshot, err := s.gw.Comments(ctx, s.taskID)
	if err != nil {
		return errors.Wrap(err, "fetching comments")
	}

	events, cancel, err := s.gw.Subscribe(ctx, realtime.TableComments, s.taskID)
	if err != nil {
		return errors.Wrap(err, "subscribing to comments")
	}

	s.mu.Lock()
	s.comments = snapshot
	s.cancel = cancel
	s.mu.Unlock()
	s.notify()

	go func() {
		for ev := range events {
			s.apply(ctx, ev)
		}
	}()
	return nil
}

// Close stops the subscription. No event or response is applied afterwards.
func (s *CommentStore) Close() {
	s.mu.Lock()
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Comments returns the thread oldest first.
func (s *CommentStore) Comments() []comment.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]comment.Comment, len(s.comments))
	copy(out, s.comments)
	return out
}

// OnChange registers a listener invoked with the full thread after every
// change; the returned func unsubscribes it.
func (s *CommentStore) OnChange(fn func([]comment.Comment)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Post appends the comment optimistically and reconciles with the server.
// An empty or oversized body is rejected locally; nothing is sent.
func (s *CommentStore) Post(ctx context.Context, body string) error {
	if err := comment.CheckBody(body); err != nil {
		return err
	}

	tempID := uuid.New().String()
	temp := comment.Comment{
		ID:        tempID,
		TaskID:    s.taskID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("comment store is closed")
	}
	s.comments = append(s.comments, temp)
	s.tempBodies[tempID] = body
	s.mu.Unlock()
	s.notify()

	row, err := s.gw.PostComment(ctx, s.taskID, body)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.Wrap(err, "posting comment")
	}
	delete(s.tempBodies, tempID)
	if err != nil {
		s.removeLocked(tempID) // roll the optimistic row back
		s.mu.Unlock()
		s.notify()
		return errors.Wrap(err, "posting comment")
	}
	if s.indexOf(row.ID) >= 0 {
		// the insert event beat us to it; drop the temp row
		s.removeLocked(tempID)
	} else {
		s.replaceLocked(tempID, row)
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// Update edits a comment and replaces the local row with the server's.
// An empty or oversized body is rejected locally; nothing is sent.
func (s *CommentStore) Update(ctx context.Context, id, body string) error {
	if err := comment.CheckBody(body); err != nil {
		return err
	}

	row, err := s.gw.UpdateComment(ctx, id, body)
	if err != nil {
		return errors.Wrap(err, "updating comment")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.replaceLocked(id, row)
	s.mu.Unlock()
	s.notify()
	return nil
}

// Delete removes the comment optimistically; a failed remote delete restores
// the thread by re-fetching it whole.
func (s *CommentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("comment store is closed")
	}
	s.removeLocked(id)
	s.mu.Unlock()
	s.notify()

	if err := s.gw.DeleteComment(ctx, id); err != nil {
		if snapshot, ferr := s.gw.Comments(ctx, s.taskID); ferr == nil {
			s.mu.Lock()
			if !s.closed {
				s.comments = snapshot
			}
			s.mu.Unlock()
			s.notify()
		}
		return errors.Wrap(err, "deleting comment")
	}
	return nil
}

// CanEdit mirrors the server's edit window as a client-side affordance; the
// server enforces it regardless.
func (s *CommentStore) CanEdit(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.comments[i].CanEditAt(time.Now().UTC())
	}
	return false
}

// apply merges one feed event into the local thread.
func (s *CommentStore) apply(ctx context.Context, ev realtime.Event) {
	switch ev.Action {
	case realtime.ActionInsert:
		// raw feed payloads have no author join; re-fetch the row
		row, ok := s.fetchRow(ctx, ev.RowID)
		if !ok {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if i := s.indexOf(row.ID); i >= 0 {
			s.comments[i] = row // own echo already collapsed; keep the joined view
		} else if tempID, found := s.tempByBody(row.Body); found {
			s.replaceLocked(tempID, row) // own echo arrived before the response
			delete(s.tempBodies, tempID)
		} else {
			s.comments = append(s.comments, row)
			sort.SliceStable(s.comments, func(i, j int) bool {
				return s.comments[i].CreatedAt.Before(s.comments[j].CreatedAt)
			})
		}
		s.mu.Unlock()
		s.notify()

	case realtime.ActionUpdate:
		row, ok := s.fetchRow(ctx, ev.RowID)
		if !ok {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if i := s.indexOf(row.ID); i >= 0 && !row.UpdatedAt.Before(s.comments[i].UpdatedAt) {
			s.comments[i] = row // last event wins
		}
		s.mu.Unlock()
		s.notify()

	case realtime.ActionDelete:
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.removeLocked(ev.RowID)
		s.mu.Unlock()
		s.notify()
	}
}

// fetchRow reads the thread and picks one row; a row already gone is fine.
func (s *CommentStore) fetchRow(ctx context.Context, id string) (comment.Comment, bool) {
	comments, err := s.gw.Comments(ctx, s.taskID)
	if err != nil {
		return comment.Comment{}, false
	}
	for _, c := range comments {
		if c.ID == id {
			return c, true
		}
	}
	return comment.Comment{}, false
}

func (s *CommentStore) indexOf(id string) int {
	for i, c := range s.comments {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *CommentStore) tempByBody(body string) (string, bool) {
	var oldest string
	oldestAt := time.Time{}
	for tempID, tempBody := range s.tempBodies {
		if tempBody != body {
			continue
		}
		if i := s.indexOf(tempID); i >= 0 {
			if oldest == "" || s.comments[i].CreatedAt.Before(oldestAt) {
				oldest = tempID
				oldestAt = s.comments[i].CreatedAt
			}
		}
	}
	return oldest, oldest != ""
}

func (s *CommentStore) replaceLocked(id string, row comment.Comment) {
	if i := s.indexOf(id); i >= 0 {
		s.comments[i] = row
	}
}

func (s *CommentStore) removeLocked(id string) {
	if i := s.indexOf(id); i >= 0 {
		s.comments = append(s.comments[:i], s.comments[i+1:]...)
	}
}

func (s *CommentStore) notify() {
	s.mu.Lock()
	snapshot := make([]comment.Comment, len(s.comments))
	copy(snapshot, s.comments)
	listeners := make([]func([]comment.Comment), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// Gateway calls

func (g *Gateway) Comments(ctx context.Context, taskID string) ([]comment.Comment, error) {
	var comments []comment.Comment
	err := g.do(ctx, http.MethodGet, "/v1/tasks/"+taskID+"/comments", nil, &comments)
	return comments, err
}

func (g *Gateway) PostComment(ctx context.Context, taskID, body string) (comment.Comment, error) {
	var c comment.Comment
	err := g.do(ctx, http.MethodPost, "/v1/tasks/"+taskID+"/comments", comment.NewComment{Body: body}, &c)
	return c, err
}

func (g *Gateway) UpdateComment(ctx context.Context, id, body string) (comment.Comment, error) {
	var c comment.Comment
	err := g.do(ctx, http.MethodPut, "/v1/comments/"+id, comment.UpdateComment{Body: body}, &c)
	return c, err
}

func (g *Gateway) DeleteComment(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodDelete, "/v1/comments/"+id, nil, nil)
}
