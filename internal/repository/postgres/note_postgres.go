package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"textshare/internal/model"
	"textshare/internal/repository"
)

// NotePostgres is a PostgreSQL implementation of repository.NoteRepository.
// It uses database/sql with parameterized queries and contains no business logic.
// Upsert is a single INSERT ... ON CONFLICT statement, so concurrent saves of the
// same name serialize on the row without application-level locking.
type NotePostgres struct {
	db *sql.DB
}

// NewNotePostgres creates a new NotePostgres repository.
func NewNotePostgres(db *sql.DB) *NotePostgres {
	return &NotePostgres{db: db}
}

var _ repository.NoteRepository = (*NotePostgres)(nil)

const noteColumns = `id, name, content, password_hash, created_at, expires_at`

// Upsert inserts the note or updates the existing row in place.
// An existing row that already expired at p.Now is overwritten as a fresh note.
func (r *NotePostgres) Upsert(ctx context.Context, p repository.UpsertParams) (*model.Note, error) {
	const q = `
		INSERT INTO notes (id, name, content, password_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			content = EXCLUDED.content,
			password_hash = CASE
				WHEN notes.expires_at IS NOT NULL AND notes.expires_at < EXCLUDED.created_at THEN EXCLUDED.password_hash
				ELSE COALESCE(EXCLUDED.password_hash, notes.password_hash)
			END,
			expires_at = CASE
				WHEN notes.expires_at IS NOT NULL AND notes.expires_at < EXCLUDED.created_at THEN EXCLUDED.expires_at
				ELSE COALESCE(EXCLUDED.expires_at, notes.expires_at)
			END,
			created_at = CASE
				WHEN notes.expires_at IS NOT NULL AND notes.expires_at < EXCLUDED.created_at THEN EXCLUDED.created_at
				ELSE notes.created_at
			END
		RETURNING ` + noteColumns

	row := r.db.QueryRowContext(ctx, q,
		p.ID,
		p.Name,
		p.Content,
		nullString(p.PasswordHash),
		p.Now,
		nullTime(p.ExpiresAt),
	)
	n, err := scanNote(row)
	if err != nil {
		return nil, classify(err)
	}
	return n, nil
}

// FindByName fetches a single note by its unique name.
func (r *NotePostgres) FindByName(ctx context.Context, name string) (*model.Note, error) {
	const q = `SELECT ` + noteColumns + ` FROM notes WHERE name = $1`
	n, err := scanNote(r.db.QueryRowContext(ctx, q, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNoteNotFound
		}
		return nil, classify(err)
	}
	return n, nil
}

// DeleteIfExpired removes the named note only when it is past its expiry.
func (r *NotePostgres) DeleteIfExpired(ctx context.Context, name string, now time.Time) error {
	const q = `DELETE FROM notes WHERE name = $1 AND expires_at IS NOT NULL AND expires_at < $2`
	if _, err := r.db.ExecContext(ctx, q, name, now); err != nil {
		return classify(err)
	}
	return nil
}

// DeleteExpired removes all notes past their expiry.
func (r *NotePostgres) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM notes WHERE expires_at IS NOT NULL AND expires_at < $1`
	res, err := r.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Ping checks database connectivity.
func (r *NotePostgres) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return classify(err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*model.Note, error) {
	var (
		n         model.Note
		hash      sql.NullString
		expiresAt sql.NullTime
	)
	if err := row.Scan(&n.ID, &n.Name, &n.Content, &hash, &n.CreatedAt, &expiresAt); err != nil {
		return nil, err
	}
	if hash.Valid {
		n.PasswordHash = &hash.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		n.ExpiresAt = &t
	}
	return &n, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// classify wraps timeouts and connection-level failures with repository.ErrUnavailable.
// Other errors are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if isUnavailable(err) {
		return fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	return err
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsConnectionException(pgErr.Code) ||
			pgerrcode.IsInsufficientResources(pgErr.Code) ||
			pgErr.Code == pgerrcode.AdminShutdown ||
			pgErr.Code == pgerrcode.CannotConnectNow
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
