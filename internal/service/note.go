package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"textshare/internal/model"
	"textshare/internal/repository"
)

const (
	defaultStoreTimeout = 5 * time.Second
	// MaxExpiresInHours caps expiry at ten years; larger values would overflow time.Duration.
	MaxExpiresInHours = 87600
)

var tracer = otel.Tracer("textshare/internal/service")

// SaveInput is the payload of a save-by-name request.
// Empty Password and nil ExpiresInHours mean "not supplied".
type SaveInput struct {
	Name           string
	Content        string
	Password       string
	ExpiresInHours *int
}

// SaveResult carries the canonical name of the saved note.
type SaveResult struct {
	Name string `json:"name"`
}

// NoteService defines the note lifecycle and access rules.
type NoteService interface {
	// Save creates the note or updates the existing one with the same name.
	// Content is always replaced; password and expiry only when supplied.
	Save(ctx context.Context, in SaveInput) (*SaveResult, error)

	// Get returns the public view of a note. Content is withheld for protected notes.
	Get(ctx context.Context, name string) (*model.NoteView, error)

	// Access verifies the password of a protected note and returns its content.
	Access(ctx context.Context, name, password string) (*model.NoteView, error)
}

// Options tune a NoteService. Zero values select defaults.
type Options struct {
	// StoreTimeout bounds every repository call.
	StoreTimeout time.Duration
	// Now is the clock used for creation and expiry checks.
	Now func() time.Time
	// NewID generates row identifiers for new notes.
	NewID  func() string
	Logger zerolog.Logger
}

type noteService struct {
	repo    repository.NoteRepository
	hasher  PasswordHasher
	timeout time.Duration
	now     func() time.Time
	newID   func() string
	log     zerolog.Logger
}

// NewNoteService constructs a new NoteService.
func NewNoteService(repo repository.NoteRepository, hasher PasswordHasher, opts Options) NoteService {
	s := &noteService{
		repo:    repo,
		hasher:  hasher,
		timeout: opts.StoreTimeout,
		now:     opts.Now,
		newID:   opts.NewID,
		log:     opts.Logger.With().Str("component", "note_service").Logger(),
	}
	if s.timeout <= 0 {
		s.timeout = defaultStoreTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

func (s *noteService) Save(ctx context.Context, in SaveInput) (*SaveResult, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || in.Content == "" {
		return nil, &ValidationError{Message: "Name and content are required"}
	}
	if in.ExpiresInHours != nil && *in.ExpiresInHours <= 0 {
		return nil, &ValidationError{Message: "Expiration must be a positive number of hours"}
	}
	if in.ExpiresInHours != nil && *in.ExpiresInHours > MaxExpiresInHours {
		return nil, &ValidationError{Message: fmt.Sprintf("Expiration must be at most %d hours", MaxExpiresInHours)}
	}

	ctx, span := tracer.Start(ctx, "NoteService.Save", trace.WithAttributes(
		attribute.String("note.name", name),
		attribute.Bool("note.password_supplied", in.Password != ""),
		attribute.Bool("note.expiry_supplied", in.ExpiresInHours != nil),
	))
	defer span.End()

	now := s.now().UTC()
	p := repository.UpsertParams{
		ID:      s.newID(),
		Name:    name,
		Content: in.Content,
		Now:     now,
	}
	if in.ExpiresInHours != nil {
		exp := now.Add(time.Duration(*in.ExpiresInHours) * time.Hour)
		p.ExpiresAt = &exp
	}
	if in.Password != "" {
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return nil, err
		}
		p.PasswordHash = &hash
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.repo.Upsert(ctx, p)
	if err != nil {
		span.RecordError(err)
		return nil, storeError("save note", err)
	}
	return &SaveResult{Name: n.Name}, nil
}

func (s *noteService) Get(ctx context.Context, name string) (*model.NoteView, error) {
	ctx, span := tracer.Start(ctx, "NoteService.Get", trace.WithAttributes(attribute.String("note.name", name)))
	defer span.End()

	n, err := s.findLive(ctx, name)
	if err != nil {
		return nil, err
	}

	hasPassword := n.HasPassword()
	view := &model.NoteView{
		Name:        n.Name,
		HasPassword: &hasPassword,
		CreatedAt:   n.CreatedAt,
		ExpiresAt:   n.ExpiresAt,
	}
	if !hasPassword {
		content := n.Content
		view.Content = &content
	}
	return view, nil
}

func (s *noteService) Access(ctx context.Context, name, password string) (*model.NoteView, error) {
	ctx, span := tracer.Start(ctx, "NoteService.Access", trace.WithAttributes(attribute.String("note.name", name)))
	defer span.End()

	n, err := s.findLive(ctx, name)
	if err != nil {
		return nil, err
	}
	if !n.HasPassword() {
		return nil, ErrNoPassword
	}
	if !s.hasher.Compare(*n.PasswordHash, password) {
		return nil, ErrUnauthorized
	}

	content := n.Content
	return &model.NoteView{
		Name:      n.Name,
		Content:   &content,
		CreatedAt: n.CreatedAt,
		ExpiresAt: n.ExpiresAt,
	}, nil
}

// findLive loads the named note and treats an expired one as absent,
// deleting it on a best-effort basis.
func (s *noteService) findLive(ctx context.Context, name string) (*model.Note, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNotFound
	}

	findCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.repo.FindByName(findCtx, name)
	if err != nil {
		return nil, storeError("find note", err)
	}

	now := s.now().UTC()
	if n.IsExpired(now) {
		s.purge(ctx, name, now)
		return nil, ErrNotFound
	}
	return n, nil
}

func (s *noteService) purge(ctx context.Context, name string, now time.Time) {
	// The read already failed as not found; a cancelled request must not abort the cleanup.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.repo.DeleteIfExpired(ctx, name, now); err != nil {
		level := zerolog.ErrorLevel
		if errors.Is(err, repository.ErrUnavailable) {
			level = zerolog.WarnLevel
		}
		s.log.WithLevel(level).Err(err).Str("note", name).Msg("expired note cleanup failed")
		return
	}
	s.log.Debug().Str("note", name).Msg("expired note deleted on read")
}
