package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-admin-api/internal/models"
)

const sessionColumns = `id, user_id, token_jti, refresh_token_hash, expires_at, ip_address, user_agent, device, last_activity, created_at`

// SessionRepository persists login sessions.
type SessionRepository struct {
	base
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{base{db: db}}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.LastActivity = now
	query := `INSERT INTO sessions (id, user_id, token_jti, refresh_token_hash, expires_at, ip_address, user_agent, device, last_activity, created_at)
VALUES (:id, :user_id, :token_jti, :refresh_token_hash, :expires_at, :ip_address, :user_agent, :device, :last_activity, :created_at)`
	if err := r.namedExec(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindByID fetches a session.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := r.get(ctx, &session, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByRefreshHash fetches the session owning a refresh token hash.
func (r *SessionRepository) FindByRefreshHash(ctx context.Context, hash string) (*models.Session, error) {
	var session models.Session
	if err := r.get(ctx, &session, `SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = $1`, hash); err != nil {
		return nil, err
	}
	return &session, nil
}

// Rotate replaces the token identifiers of a session after a refresh.
func (r *SessionRepository) Rotate(ctx context.Context, id, jti, refreshHash string, expiresAt time.Time) error {
	query := `UPDATE sessions SET token_jti = $2, refresh_token_hash = $3, expires_at = $4, last_activity = NOW() WHERE id = $1`
	if _, err := r.exec(ctx, query, id, jti, refreshHash, expiresAt); err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	return nil
}

// Touch updates last_activity.
func (r *SessionRepository) Touch(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `UPDATE sessions SET last_activity = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// ListByUser returns unexpired sessions for a user, newest first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]models.Session, error) {
	var sessions []models.Session
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 AND expires_at > NOW() ORDER BY last_activity DESC`
	if err := r.selectAll(ctx, &sessions, query, userID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes a session.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteForUser removes a session only if it belongs to userID.
func (r *SessionRepository) DeleteForUser(ctx context.Context, userID, id string) (bool, error) {
	affected, err := r.exec(ctx, `DELETE FROM sessions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return affected > 0, nil
}

// DeleteByUser removes every session of a user.
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	affected, err := r.exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	return affected, nil
}

// DeleteExpired purges sessions past their refresh expiry.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	affected, err := r.exec(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return affected, nil
}
