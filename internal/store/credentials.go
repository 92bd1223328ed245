package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/inventario/internal/model"
)

// SetPasswordHash stores the password hash for a user.
func SetPasswordHash(ctx context.Context, db *sql.DB, userID int64, hash string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO credentials (user_id, password_hash) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET password_hash = excluded.password_hash, updated_at = CURRENT_TIMESTAMP`,
		userID, hash,
	)
	if err != nil {
		return fmt.Errorf("storing password hash: %w", err)
	}
	return nil
}

// GetPasswordHash returns the stored password hash, or "" when the user has
// no credentials.
func GetPasswordHash(ctx context.Context, db *sql.DB, userID int64) (string, error) {
	var hash string
	err := db.QueryRowContext(ctx,
		`SELECT password_hash FROM credentials WHERE user_id = ?`, userID,
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting password hash: %w", err)
	}
	return hash, nil
}

// DeleteCredentials removes a user's stored password.
func DeleteCredentials(ctx context.Context, db *sql.DB, userID int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM credentials WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("deleting credentials: %w", err)
	}
	return nil
}

// RekeyCredentials moves stored passwords from the users in before to the
// users in after, matching them by normalized email. Passwords of users
// missing from after are dropped.
func RekeyCredentials(ctx context.Context, db *sql.DB, before, after []model.User) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT user_id, password_hash FROM credentials`)
	if err != nil {
		return fmt.Errorf("listing credentials: %w", err)
	}
	emails := make(map[int64]string, len(before))
	for _, u := range before {
		emails[u.ID] = model.NormalizeEmail(u.Email)
	}
	byEmail := make(map[string]string)
	for rows.Next() {
		var id int64
		var hash string
		if err := rows.Scan(&id, &hash); err != nil {
			rows.Close()
			return fmt.Errorf("scanning credentials: %w", err)
		}
		if email, ok := emails[id]; ok {
			byEmail[email] = hash
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("listing credentials: %w", err)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	for _, u := range after {
		hash, ok := byEmail[model.NormalizeEmail(u.Email)]
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO credentials (user_id, password_hash) VALUES (?, ?)`, u.ID, hash,
		); err != nil {
			return fmt.Errorf("storing password hash: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing credentials: %w", err)
	}
	return nil
}
