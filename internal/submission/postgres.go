package submission

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PostgresStore keeps submissions in the submissions table.
type PostgresStore struct {
	db     *sql.DB
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewPostgresStore(db *sql.DB, logger logrus.FieldLogger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger, now: time.Now}
}

const insertSQL = `INSERT INTO submissions (id, filepath, type, body, timeslot, person, email, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const selectAllSQL = `SELECT id, filepath, type, body, timeslot, person, email, created_at, updated_at
FROM submissions ORDER BY created_at`

// Create validates in and inserts it with a fresh id and timestamps.
func (s *PostgresStore) Create(ctx context.Context, in Input) (*Submission, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	sub := &Submission{
		ID:        uuid.New(),
		Filepath:  in.Filepath,
		Type:      in.Type,
		Body:      in.Body,
		Timeslot:  in.Timeslot,
		Person:    in.Person,
		Email:     in.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.logger.WithField("id", sub.ID).Debugf("sql: %s", insertSQL)
	_, err := s.db.ExecContext(ctx, insertSQL,
		sub.ID, sub.Filepath, sub.Type, sub.Body, sub.Timeslot,
		sub.Person, sub.Email, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	return sub, nil
}

// All returns every stored submission.
func (s *PostgresStore) All(ctx context.Context) ([]Submission, error) {
	s.logger.Debugf("sql: %s", selectAllSQL)
	rows, err := s.db.QueryContext(ctx, selectAllSQL)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	subs := make([]Submission, 0)
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(&sub.ID, &sub.Filepath, &sub.Type, &sub.Body, &sub.Timeslot,
			&sub.Person, &sub.Email, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return subs, nil
}
