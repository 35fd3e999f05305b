// Package objectstore persists notes as JSON objects in an S3-compatible bucket.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"textshare/internal/model"
	"textshare/internal/repository"
	"textshare/internal/repository/keylock"
	"textshare/internal/storage"
)

const (
	keyPrefix   = "notes/"
	keySuffix   = ".json"
	contentType = "application/json"
)

// record is the on-bucket representation of a note.
type record struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Content      string     `json:"content"`
	PasswordHash *string    `json:"password_hash,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// NoteObjectStore implements repository.NoteRepository on top of storage.Storage.
// Object PUTs are atomic but an upsert reads before it writes, so every mutation
// of a name runs under that name's lock.
type NoteObjectStore struct {
	store storage.Storage
	locks *keylock.Locker
}

// NewNoteObjectStore creates a repository storing one object per note.
func NewNoteObjectStore(store storage.Storage) *NoteObjectStore {
	return &NoteObjectStore{store: store, locks: keylock.New()}
}

var _ repository.NoteRepository = (*NoteObjectStore)(nil)

func objectKey(name string) string {
	return keyPrefix + url.PathEscape(name) + keySuffix
}

func (r *NoteObjectStore) Upsert(ctx context.Context, p repository.UpsertParams) (*model.Note, error) {
	unlock := r.locks.Lock(p.Name)
	defer unlock()

	next := record{
		ID:           p.ID,
		Name:         p.Name,
		Content:      p.Content,
		PasswordHash: p.PasswordHash,
		CreatedAt:    p.Now,
		ExpiresAt:    p.ExpiresAt,
	}

	cur, err := r.read(ctx, objectKey(p.Name))
	switch {
	case err == nil:
		live := cur.ExpiresAt == nil || !p.Now.After(*cur.ExpiresAt)
		if live {
			next.ID = cur.ID
			next.CreatedAt = cur.CreatedAt
			if next.PasswordHash == nil {
				next.PasswordHash = cur.PasswordHash
			}
			if next.ExpiresAt == nil {
				next.ExpiresAt = cur.ExpiresAt
			}
		}
	case errors.Is(err, repository.ErrNoteNotFound):
	default:
		return nil, err
	}

	if err := r.write(ctx, next); err != nil {
		return nil, err
	}
	n := next.toModel()
	return &n, nil
}

func (r *NoteObjectStore) FindByName(ctx context.Context, name string) (*model.Note, error) {
	rec, err := r.read(ctx, objectKey(name))
	if err != nil {
		return nil, err
	}
	n := rec.toModel()
	return &n, nil
}

func (r *NoteObjectStore) DeleteIfExpired(ctx context.Context, name string, now time.Time) error {
	unlock := r.locks.Lock(name)
	defer unlock()

	_, err := r.deleteIfExpired(ctx, objectKey(name), now)
	return err
}

// DeleteExpired scans every note object. Each candidate is re-read under its
// name's lock so a concurrent save that extended the expiry is preserved.
func (r *NoteObjectStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	objs, err := r.store.List(ctx, keyPrefix)
	if err != nil {
		return 0, unavailable(err)
	}

	var deleted int64
	for _, obj := range objs {
		name, ok := nameFromKey(obj.Key)
		if !ok {
			continue
		}
		unlock := r.locks.Lock(name)
		removed, err := r.deleteIfExpired(ctx, obj.Key, now)
		unlock()
		if err != nil {
			return deleted, err
		}
		if removed {
			deleted++
		}
	}
	return deleted, nil
}

func (r *NoteObjectStore) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *NoteObjectStore) deleteIfExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	rec, err := r.read(ctx, key)
	if errors.Is(err, repository.ErrNoteNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if rec.ExpiresAt == nil || !now.After(*rec.ExpiresAt) {
		return false, nil
	}
	if err := r.store.Delete(ctx, key); err != nil {
		return false, unavailable(err)
	}
	return true, nil
}

func (r *NoteObjectStore) read(ctx context.Context, key string) (*record, error) {
	rc, _, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, repository.ErrNoteNotFound
		}
		return nil, unavailable(err)
	}
	defer rc.Close()

	var rec record
	if err := json.NewDecoder(rc).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode note object %s: %w", key, err)
	}
	return &rec, nil
}

func (r *NoteObjectStore) write(ctx context.Context, rec record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode note: %w", err)
	}
	_, err = r.store.Put(ctx, objectKey(rec.Name), bytes.NewReader(b), storage.PutObjectOptions{
		Size:        int64(len(b)),
		ContentType: contentType,
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (rec record) toModel() model.Note {
	return model.Note{
		ID:           rec.ID,
		Name:         rec.Name,
		Content:      rec.Content,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    rec.CreatedAt,
		ExpiresAt:    rec.ExpiresAt,
	}
}

func nameFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, keyPrefix) || !strings.HasSuffix(key, keySuffix) {
		return "", false
	}
	name, err := url.PathUnescape(strings.TrimSuffix(strings.TrimPrefix(key, keyPrefix), keySuffix))
	if err != nil {
		return "", false
	}
	return name, true
}

// unavailable treats every object store transport failure as retryable.
func unavailable(err error) error {
	return fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
}
