package session

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL session repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// AddMember adds a device to a session.
func (r *PostgresRepository) AddMember(ctx context.Context, sessionCode, deviceToken string, joinedAt time.Time) error {
	query := `
		INSERT INTO session_members (session_code, device_token, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_code, device_token) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query, sessionCode, deviceToken, joinedAt)
	return err
}

// SessionsForDevice returns the device's session codes, newest first.
func (r *PostgresRepository) SessionsForDevice(ctx context.Context, deviceToken string) ([]string, error) {
	query := `
		SELECT session_code
		FROM session_members
		WHERE device_token = $1
		ORDER BY joined_at DESC, session_code
	`

	rows, err := r.pool.Query(ctx, query, deviceToken)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return codes, nil
}

// Members returns the members of a session ordered by join time.
func (r *PostgresRepository) Members(ctx context.Context, sessionCode string) ([]Membership, error) {
	query := `
		SELECT session_code, device_token, joined_at
		FROM session_members
		WHERE session_code = $1
		ORDER BY joined_at, device_token
	`

	rows, err := r.pool.Query(ctx, query, sessionCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.SessionCode, &m.DeviceToken, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(members) == 0 {
		return nil, ErrSessionNotFound
	}
	return members, nil
}

// RemoveDevice removes the device from every session.
func (r *PostgresRepository) RemoveDevice(ctx context.Context, deviceToken string) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM session_members WHERE device_token = $1`, deviceToken)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Ping checks the database connection.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
