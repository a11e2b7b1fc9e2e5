// Package history keeps an append-only ledger of completed draws.
package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/DoyleJ11/raffle-backend/internal/engine"
	"github.com/google/uuid"
)

var ErrUnknownDriver = errors.New("unknown history driver")

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Record is one completed draw. Winners are in announcement order.
type Record struct {
	ID          uuid.UUID            `json:"id"`
	SessionCode string               `json:"session_code"`
	Sequence    int                  `json:"sequence"`
	Requested   int                  `json:"requested"`
	PoolSize    int                  `json:"pool_size"`
	Winners     []engine.Participant `json:"winners"`
	DrawnAt     time.Time            `json:"drawn_at"`
}

type Store interface {
	Append(ctx context.Context, rec Record) error
	// List returns the records of one session ordered by sequence.
	List(ctx context.Context, sessionCode string) ([]Record, error)
	Close() error
}

func NewRecord(sessionCode string, sequence, poolSize int, winners []engine.Participant, at time.Time) Record {
	return Record{
		ID:          uuid.New(),
		SessionCode: sessionCode,
		Sequence:    sequence,
		Requested:   len(winners),
		PoolSize:    poolSize,
		Winners:     slices.Clone(winners),
		DrawnAt:     at.UTC(),
	}
}

// Open builds the store named by driver. dsn is ignored for memory.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		store, err := OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverPostgres:
		store, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
