// Package memory holds notes in process memory. Intended for local runs and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"textshare/internal/model"
	"textshare/internal/repository"
)

// NoteMemory is a map-backed repository.NoteRepository guarded by a single RWMutex.
// Reads share the lock; every mutation holds it exclusively.
type NoteMemory struct {
	mu    sync.RWMutex
	notes map[string]model.Note
}

func NewNoteMemory() *NoteMemory {
	return &NoteMemory{notes: make(map[string]model.Note)}
}

var _ repository.NoteRepository = (*NoteMemory)(nil)

func (s *NoteMemory) Upsert(_ context.Context, p repository.UpsertParams) (*model.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := model.Note{
		ID:           p.ID,
		Name:         p.Name,
		Content:      p.Content,
		PasswordHash: cloneString(p.PasswordHash),
		CreatedAt:    p.Now,
		ExpiresAt:    cloneTime(p.ExpiresAt),
	}
	if cur, ok := s.notes[p.Name]; ok && !cur.IsExpired(p.Now) {
		next.ID = cur.ID
		next.CreatedAt = cur.CreatedAt
		if next.PasswordHash == nil {
			next.PasswordHash = cur.PasswordHash
		}
		if next.ExpiresAt == nil {
			next.ExpiresAt = cur.ExpiresAt
		}
	}
	s.notes[p.Name] = next

	out := clone(next)
	return &out, nil
}

func (s *NoteMemory) FindByName(_ context.Context, name string) (*model.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notes[name]
	if !ok {
		return nil, repository.ErrNoteNotFound
	}
	out := clone(n)
	return &out, nil
}

func (s *NoteMemory) DeleteIfExpired(_ context.Context, name string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.notes[name]; ok && n.IsExpired(now) {
		delete(s.notes, name)
	}
	return nil
}

func (s *NoteMemory) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for name, n := range s.notes {
		if n.IsExpired(now) {
			delete(s.notes, name)
			deleted++
		}
	}
	return deleted, nil
}

func (s *NoteMemory) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored notes, expired ones included.
func (s *NoteMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}

func clone(n model.Note) model.Note {
	n.PasswordHash = cloneString(n.PasswordHash)
	n.ExpiresAt = cloneTime(n.ExpiresAt)
	return n
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
