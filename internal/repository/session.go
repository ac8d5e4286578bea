package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/facefind/internal/domain"
)

// SessionRecord is the persisted summary of a session. Photos, reference
// images and encodings are never stored.
type SessionRecord struct {
	ID            uuid.UUID
	Method        domain.Method
	SourceName    string
	Scanned       int
	Matched       int
	Skipped       int
	FailedFetches int
	Reason        string
	RecognitionMs int64
	TotalMs       int64
	CreatedAt     time.Time
}

func RecordFromSession(s *domain.Session) *SessionRecord {
	return &SessionRecord{
		ID:            s.ID,
		Method:        s.Method,
		SourceName:    s.SourceName,
		Scanned:       s.Scanned,
		Matched:       len(s.Matches),
		Skipped:       s.Skipped,
		FailedFetches: s.FailedFetches,
		Reason:        s.Reason,
		RecognitionMs: s.Recognition.Milliseconds(),
		TotalMs:       s.Total.Milliseconds(),
	}
}

type SessionRepository struct {
	pool PgxPool
}

func NewSessionRepository(pool PgxPool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create inserts a session summary
func (r *SessionRepository) Create(ctx context.Context, rec *SessionRecord) error {
	query := `
		INSERT INTO sessions (
			id, method, source_name, scanned, matched, skipped,
			failed_fetches, reason, recognition_ms, total_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING created_at
	`

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, query,
		rec.ID,
		string(rec.Method),
		rec.SourceName,
		rec.Scanned,
		rec.Matched,
		rec.Skipped,
		rec.FailedFetches,
		rec.Reason,
		rec.RecognitionMs,
		rec.TotalMs,
	).Scan(&rec.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create session %s: duplicate id: %w", rec.ID, err)
		}
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

// GetByID retrieves a session summary
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*SessionRecord, error) {
	query := `
		SELECT id, method, source_name, scanned, matched, skipped,
		       failed_fetches, reason, recognition_ms, total_ms, created_at
		FROM sessions
		WHERE id = $1
	`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	return rec, nil
}

// ListRecent returns the newest sessions first
func (r *SessionRepository) ListRecent(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, method, source_name, scanned, matched, skipped,
		       failed_fetches, reason, recognition_ms, total_ms, created_at
		FROM sessions
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return records, nil
}

func scanRecord(row pgx.Row) (*SessionRecord, error) {
	var rec SessionRecord
	var method string

	err := row.Scan(
		&rec.ID,
		&method,
		&rec.SourceName,
		&rec.Scanned,
		&rec.Matched,
		&rec.Skipped,
		&rec.FailedFetches,
		&rec.Reason,
		&rec.RecognitionMs,
		&rec.TotalMs,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Method = domain.Method(method)
	return &rec, nil
}
