package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Subicson333/verify/internal/domain"
)

const casesSchema = `
CREATE TABLE IF NOT EXISTS background_check_cases (
	case_id        TEXT PRIMARY KEY,
	order_id       TEXT NOT NULL UNIQUE,
	owner          TEXT NOT NULL,
	overall_status TEXT NOT NULL,
	start_date     TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	version        BIGINT NOT NULL,
	document       JSONB NOT NULL
)`

// PostgresStore keeps each case as a JSONB document with its indexed attributes in columns.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing handle.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, casesSchema); err != nil {
		return fmt.Errorf("create cases table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, caseID string) (domain.Case, error) {
	var doc []byte
	row := s.db.QueryRowContext(ctx, `
		SELECT document
		FROM background_check_cases
		WHERE case_id = $1
	`, caseID)
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Case{}, domain.ErrCaseNotFound
		}
		return domain.Case{}, err
	}
	return decodeCase(doc)
}

// Put inserts a case at version 1 and otherwise updates the row only while it
// still holds the previous version. A missed row is a version conflict.
func (s *PostgresStore) Put(ctx context.Context, c domain.Case) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode case %s: %w", c.CaseID, err)
	}

	var res sql.Result
	if c.Version <= 1 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO background_check_cases (case_id, order_id, owner, overall_status, start_date, created_at, updated_at, version, document)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)
			ON CONFLICT (case_id) DO NOTHING
		`, c.CaseID, c.OrderID, c.Owner, string(c.OverallStatus), c.StartDate, c.CreatedAt, c.UpdatedAt, c.Version, string(doc))
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE background_check_cases SET
				order_id = $2,
				owner = $3,
				overall_status = $4,
				start_date = $5,
				updated_at = $6,
				version = $7,
				document = $8::jsonb
			WHERE case_id = $1 AND version = $9
		`, c.CaseID, c.OrderID, c.Owner, string(c.OverallStatus), c.StartDate, c.UpdatedAt, c.Version, string(doc), c.Version-1)
	}
	if err != nil {
		if isUniqueViolation(err, "background_check_cases_order_id_key") {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateOrder, c.OrderID)
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s at version %d", domain.ErrVersionConflict, c.CaseID, c.Version)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]domain.Case, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document
		FROM background_check_cases
		ORDER BY created_at ASC, case_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cases := make([]domain.Case, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		c, err := decodeCase(doc)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cases, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505" && pqErr.Constraint == constraint
}

func decodeCase(doc []byte) (domain.Case, error) {
	var c domain.Case
	if err := json.Unmarshal(doc, &c); err != nil {
		return domain.Case{}, fmt.Errorf("decode case: %w", err)
	}
	return c, nil
}
