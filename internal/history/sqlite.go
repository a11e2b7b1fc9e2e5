package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DoyleJ11/raffle-backend/internal/engine"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS draw_record (
    id TEXT PRIMARY KEY,
    session_code TEXT NOT NULL,
    sequence INTEGER NOT NULL,
    requested INTEGER NOT NULL,
    pool_size INTEGER NOT NULL,
    drawn_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_draw_record_session ON draw_record(session_code, sequence);

CREATE TABLE IF NOT EXISTS draw_winner (
    record_id TEXT NOT NULL REFERENCES draw_record(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    participant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    PRIMARY KEY (record_id, position)
);
`

type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and ensures the schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite history: empty dsn")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time; also keeps ":memory:" databases on one connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO draw_record (id, session_code, sequence, requested, pool_size, drawn_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID.String(), rec.SessionCode, rec.Sequence, rec.Requested, rec.PoolSize, rec.DrawnAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert draw record: %w", err)
	}

	for i, w := range rec.Winners {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO draw_winner (record_id, position, participant_id, name)
			VALUES (?, ?, ?, ?)
		`, rec.ID.String(), i, w.ID, w.Name)
		if err != nil {
			return fmt.Errorf("insert draw winner: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) List(ctx context.Context, sessionCode string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.sequence, r.requested, r.pool_size, r.drawn_at, w.participant_id, w.name
		FROM draw_record r
		LEFT JOIN draw_winner w ON w.record_id = r.id
		WHERE r.session_code = ?
		ORDER BY r.sequence, r.id, w.position
	`, sessionCode)
	if err != nil {
		return nil, fmt.Errorf("query draw records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			id            string
			rec           Record
			drawnAt       int64
			participantID sql.NullString
			name          sql.NullString
		)
		if err := rows.Scan(&id, &rec.Sequence, &rec.Requested, &rec.PoolSize, &drawnAt, &participantID, &name); err != nil {
			return nil, err
		}

		if n := len(records); n == 0 || records[n-1].ID.String() != id {
			rec.ID, err = uuid.Parse(id)
			if err != nil {
				return nil, fmt.Errorf("bad record id %q: %w", id, err)
			}
			rec.SessionCode = sessionCode
			rec.DrawnAt = time.Unix(0, drawnAt).UTC()
			rec.Winners = []engine.Participant{}
			records = append(records, rec)
		}
		if participantID.Valid {
			last := &records[len(records)-1]
			last.Winners = append(last.Winners, engine.Participant{ID: participantID.String, Name: name.String})
		}
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
