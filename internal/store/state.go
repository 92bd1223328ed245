package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/erazemk/inventario/internal/state"
)

// ErrConcurrencyConflict is returned by Save when another writer committed
// a newer version of the state since it was loaded.
var ErrConcurrencyConflict = state.ErrConflict

// StateStore persists state snapshots as one JSON payload per bucket, plus
// the domain events emitted by each commit.
type StateStore struct {
	db *sql.DB
}

// NewStateStore returns a state persister backed by db.
func NewStateStore(db *sql.DB) *StateStore {
	return &StateStore{db: db}
}

// Load reads the persisted state. Buckets are decoded over the defaults; if
// any bucket cannot be parsed the error is logged and the default state is
// returned.
func (s *StateStore) Load(ctx context.Context) (*state.State, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}
	defer rows.Close()

	buckets := make(map[state.Bucket][]byte)
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return nil, fmt.Errorf("scanning state bucket: %w", err)
		}
		buckets[state.Bucket(bucket)] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}

	version, err := s.version(ctx, s.db)
	if err != nil {
		return nil, err
	}

	st, err := state.DecodeBuckets(buckets)
	if err != nil {
		slog.Error("persisted state is unreadable, starting from defaults", "error", err)
		st = state.Default()
	}
	st.Version = version
	return st, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *StateStore) version(ctx context.Context, q queryer) (int64, error) {
	var v int64
	err := q.QueryRowContext(ctx, `SELECT version FROM state_meta WHERE id = 1`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying state version: %w", err)
	}
	return v, nil
}

// Save writes the dirty buckets of st and appends events in one transaction.
// The stored version must be exactly st.Version-1.
func (s *StateStore) Save(ctx context.Context, st *state.State, dirty []state.Bucket, events []state.Event) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning state transaction: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	current, err := s.version(ctx, tx)
	if err != nil {
		return err
	}
	if current != st.Version-1 {
		return fmt.Errorf("saving version %d over stored version %d: %w", st.Version, current, ErrConcurrencyConflict)
	}

	for _, b := range dirty {
		payload, err := state.EncodeBucket(st, b)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO state (bucket, payload) VALUES (?, ?)
			 ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP`,
			string(b), payload,
		)
		if err != nil {
			return fmt.Errorf("upserting bucket %s: %w", b, err)
		}
	}

	for _, e := range events {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO events (id, kind, subject, subject_id, actor, at, version, data)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID.String(), e.Kind, e.Subject, e.SubjectID, e.Actor, e.At.UTC(), st.Version, []byte(e.Data),
		)
		if err != nil {
			return fmt.Errorf("appending %s event: %w", e.Kind, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO state_meta (id, version) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version = excluded.version`,
		st.Version,
	)
	if err != nil {
		return fmt.Errorf("storing state version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing state: %w", err)
	}
	return nil
}
