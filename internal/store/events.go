package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/erazemk/inventario/internal/state"
)

// EventFilter narrows ListEvents. Zero values match everything.
type EventFilter struct {
	Subject   string
	SubjectID int64
	Limit     int
}

// ListEvents returns logged events, newest first.
func ListEvents(ctx context.Context, db *sql.DB, f EventFilter) ([]state.Event, error) {
	query := `SELECT id, kind, subject, subject_id, actor, at, data FROM events WHERE 1 = 1`
	var args []any
	if f.Subject != "" {
		query += ` AND subject = ?`
		args = append(args, f.Subject)
	}
	if f.SubjectID != 0 {
		query += ` AND subject_id = ?`
		args = append(args, f.SubjectID)
	}
	query += ` ORDER BY seq DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	events := []state.Event{}
	for rows.Next() {
		var e state.Event
		var id string
		var data []byte
		if err := rows.Scan(&id, &e.Kind, &e.Subject, &e.SubjectID, &e.Actor, &e.At, &data); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing event id %q: %w", id, err)
		}
		if len(data) > 0 {
			e.Data = json.RawMessage(data)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
