package client

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/attachment"
	"github.com/trezcool/darasa/realtime"
)

// AttachmentStore mirrors one task's attachments, kept in sync via the feed.
// Uploads are validated locally (size cap, MIME allow-list) before any
// network call; deletes are optimistic with rollback-by-refetch.
type AttachmentStore struct {
	gw     *Gateway
	taskID string

	mu          sync.Mutex
	attachments []attachment.Attachment
	opened      bool
	closed      bool
	cancel      func()
	listeners   map[int]func([]attachment.Attachment)
	nextID      int
}

func NewAttachmentStore(gw *Gateway, taskID string) *AttachmentStore {
	return &AttachmentStore{
		gw:        gw,
		taskID:    taskID,
		listeners: make(map[int]func([]attachment.Attachment)),
	}
}

func (s *AttachmentStore) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.opened || s.closed {
		s.mu.Unlock()
		return errors.New("attachment store already opened")
	}
	s.opened = true
	s.mu.Unlock()

	snapshot, err := s.gw.Attachments(ctx, s.taskID)
	if err != nil {
		return errors.Wrap(err, "fetching attachments")
	}

	events, cancel, err := s.gw.Subscribe(ctx, realtime.TableAttachments, s.taskID)
	if err != nil {
		return errors.Wrap(err, "subscribing to attachments")
	}

	s.mu.Lock()
	s.attachments = snapshot
	s.cancel = cancel
	s.mu.Unlock()
	s.notify()

	go func() {
		for ev := range events {
			s.apply(ev)
		}
	}()
	return nil
}

func (s *AttachmentStore) Close() {
	s.mu.Lock()
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *AttachmentStore) Attachments() []attachment.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]attachment.Attachment, len(s.attachments))
	copy(out, s.attachments)
	return out
}

func (s *AttachmentStore) OnChange(fn func([]attachment.Attachment)) func() {
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

// Upload rejects oversized or disallowed files before touching the network.
func (s *AttachmentStore) Upload(ctx context.Context, filename, contentType, kind string, content []byte) (attachment.Attachment, error) {
	na := attachment.NewAttachment{
		Filename:    filename,
		Size:        int64(len(content)),
		ContentType: contentType,
		Kind:        kind,
	}
	if err := na.Validate(); err != nil {
		return attachment.Attachment{}, err
	}

	a, err := s.gw.UploadAttachment(ctx, s.taskID, na, content)
	if err != nil {
		return attachment.Attachment{}, errors.Wrap(err, "uploading attachment")
	}

	s.mu.Lock()
	if !s.closed && s.indexOf(a.ID) < 0 {
		s.attachments = append(s.attachments, a)
	}
	s.mu.Unlock()
	s.notify()
	return a, nil
}

func (s *AttachmentStore) Download(ctx context.Context, id string) ([]byte, error) {
	return s.gw.DownloadAttachment(ctx, id)
}

// Delete removes the attachment optimistically; on failure the list is
// restored by re-fetching it whole.
func (s *AttachmentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("attachment store is closed")
	}
	s.removeLocked(id)
	s.mu.Unlock()
	s.notify()

	if err := s.gw.DeleteAttachment(ctx, id); err != nil {
		if snapshot, ferr := s.gw.Attachments(ctx, s.taskID); ferr == nil {
			s.mu.Lock()
			if !s.closed {
				s.attachments = snapshot
			}
			s.mu.Unlock()
			s.notify()
		}
		return errors.Wrap(err, "deleting attachment")
	}
	return nil
}

// apply merges one feed event; attachment payloads carry the full row, no
// join re-fetch needed.
func (s *AttachmentStore) apply(ev realtime.Event) {
	switch ev.Action {
	case realtime.ActionInsert, realtime.ActionUpdate:
		var row attachment.Attachment
		if err := json.Unmarshal(ev.Payload, &row); err != nil || row.ID == "" {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if i := s.indexOf(row.ID); i >= 0 {
			s.attachments[i] = row
		} else {
			s.attachments = append(s.attachments, row)
			sort.SliceStable(s.attachments, func(i, j int) bool {
				return s.attachments[i].CreatedAt.Before(s.attachments[j].CreatedAt)
			})
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

func (s *AttachmentStore) indexOf(id string) int {
	for i, a := range s.attachments {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (s *AttachmentStore) removeLocked(id string) {
	if i := s.indexOf(id); i >= 0 {
		s.attachments = append(s.attachments[:i], s.attachments[i+1:]...)
	}
}

func (s *AttachmentStore) notify() {
	s.mu.Lock()
	snapshot := make([]attachment.Attachment, len(s.attachments))
	copy(snapshot, s.attachments)
	listeners := make([]func([]attachment.Attachment), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// Gateway calls

func (g *Gateway) Attachments(ctx context.Context, taskID string) ([]attachment.Attachment, error) {
	var attachments []attachment.Attachment
	err := g.do(ctx, http.MethodGet, "/v1/tasks/"+taskID+"/attachments", nil, &attachments)
	return attachments, err
}

func (g *Gateway) UploadAttachment(ctx context.Context, taskID string, na attachment.NewAttachment, content []byte) (attachment.Attachment, error) {
	var a attachment.Attachment
	err := g.upload(
		ctx,
		"/v1/tasks/"+taskID+"/attachments",
		na.Filename, na.ContentType, content,
		map[string]string{"kind": na.Kind},
		&a,
	)
	return a, err
}

func (g *Gateway) DownloadAttachment(ctx context.Context, id string) ([]byte, error) {
	return g.download(ctx, "/v1/attachments/"+id+"/download")
}

func (g *Gateway) DeleteAttachment(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodDelete, "/v1/attachments/"+id, nil, nil)
}
