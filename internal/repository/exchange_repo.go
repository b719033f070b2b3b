package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatrelay-backend/internal/models"
)

// ExchangeRepo stores prompt/response pairs. There is deliberately no
// Update or Delete: an exchange is immutable once written.
type ExchangeRepo struct {
	pool *pgxpool.Pool
}

func NewExchangeRepo(pool *pgxpool.Pool) *ExchangeRepo {
	return &ExchangeRepo{pool: pool}
}

const exchangeColumns = `id, user_id, session_id, prompt, response, summary, backend, created_at`

func (r *ExchangeRepo) Create(ctx context.Context, e *models.Exchange) error {
	query := `
		INSERT INTO exchanges (id, user_id, session_id, prompt, response, summary, backend)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	e.ID = uuid.New()

	return r.pool.QueryRow(ctx, query,
		e.ID, e.UserID, e.SessionID, e.Prompt, e.Response, e.Summary, e.Backend,
	).Scan(&e.CreatedAt)
}

// ListRecent returns up to limit of the user's newest exchanges, newest
// first. A nil sessionID spans every session of the user.
func (r *ExchangeRepo) ListRecent(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, limit int) ([]models.Exchange, error) {
	if limit <= 0 {
		return []models.Exchange{}, nil
	}

	var (
		rows pgx.Rows
		err  error
	)
	if sessionID != nil {
		rows, err = r.pool.Query(ctx, `SELECT `+exchangeColumns+`
			FROM exchanges
			WHERE user_id = $1 AND session_id = $2
			ORDER BY created_at DESC
			LIMIT $3`, userID, *sessionID, limit)
	} else {
		rows, err = r.pool.Query(ctx, `SELECT `+exchangeColumns+`
			FROM exchanges
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2`, userID, limit)
	}
	if err != nil {
		return nil, err
	}
	return scanExchanges(rows)
}

// ListBySession returns the whole session, oldest first.
func (r *ExchangeRepo) ListBySession(ctx context.Context, userID, sessionID uuid.UUID) ([]models.Exchange, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+exchangeColumns+`
		FROM exchanges
		WHERE user_id = $1 AND session_id = $2
		ORDER BY created_at ASC`, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return scanExchanges(rows)
}

// ListSessions groups the user's exchanges by session id, most recently
// active first. The label of a session is the summary of its first exchange.
func (r *ExchangeRepo) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.SessionInfo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			session_id,
			(ARRAY_AGG(summary ORDER BY created_at ASC))[1] AS summary,
			COUNT(*) AS exchange_count,
			MIN(created_at) AS started_at,
			MAX(created_at) AS last_activity_at
		FROM exchanges
		WHERE user_id = $1
		GROUP BY session_id
		ORDER BY last_activity_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.SessionInfo, 0)
	for rows.Next() {
		var s models.SessionInfo
		if err := rows.Scan(&s.SessionID, &s.Summary, &s.ExchangeCount, &s.StartedAt, &s.LastActivityAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// SessionSummary returns the label of an existing session, or "" when the
// session has no exchanges yet.
func (r *ExchangeRepo) SessionSummary(ctx context.Context, userID, sessionID uuid.UUID) (string, error) {
	var summary string
	err := r.pool.QueryRow(ctx, `
		SELECT summary FROM exchanges
		WHERE user_id = $1 AND session_id = $2
		ORDER BY created_at ASC
		LIMIT 1`, userID, sessionID).Scan(&summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return summary, err
}

func scanExchanges(rows pgx.Rows) ([]models.Exchange, error) {
	defer rows.Close()

	exchanges := make([]models.Exchange, 0)
	for rows.Next() {
		var e models.Exchange
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.SessionID, &e.Prompt, &e.Response, &e.Summary, &e.Backend, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		exchanges = append(exchanges, e)
	}
	return exchanges, rows.Err()
}
