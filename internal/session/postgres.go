package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// PostgresStore keeps sessions in the sessions table.
type PostgresStore struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

func NewPostgresStore(db *sql.DB, logger logrus.FieldLogger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) Save(ctx context.Context, id string, p Principal, ttl time.Duration) error {
	const q = `INSERT INTO sessions (id, username, expires_at) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, expires_at = EXCLUDED.expires_at`
	s.logger.Debugf("sql: %s", q)
	if _, err := s.db.ExecContext(ctx, q, id, p.Username, time.Now().Add(ttl)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (Principal, error) {
	const q = `SELECT username FROM sessions WHERE id = $1 AND expires_at > now()`
	s.logger.Debugf("sql: %s", q)
	var p Principal
	err := s.db.QueryRowContext(ctx, q, id).Scan(&p.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return Principal{}, ErrNotFound
	}
	if err != nil {
		return Principal{}, fmt.Errorf("load session: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	const q = `DELETE FROM sessions WHERE expires_at <= now()`
	s.logger.Debugf("sql: %s", q)
	res, err := s.db.ExecContext(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
