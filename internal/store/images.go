package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SetItemImage sets an item's photo.
func SetItemImage(ctx context.Context, db *sql.DB, itemID int64, image []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO item_images (item_id, image, image_mime) VALUES (?, ?, ?)
		 ON CONFLICT(item_id) DO UPDATE SET image = excluded.image, image_mime = excluded.image_mime,
		     updated_at = CURRENT_TIMESTAMP`,
		itemID, image, mime,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return nil
}

// GetItemImage returns an item's photo and MIME type. A nil image means the
// item has none.
func GetItemImage(ctx context.Context, db *sql.DB, itemID int64) ([]byte, string, error) {
	var image []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM item_images WHERE item_id = ?`, itemID,
	).Scan(&image, &mime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime, nil
}

// DeleteItemImage removes an item's photo.
func DeleteItemImage(ctx context.Context, db *sql.DB, itemID int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM item_images WHERE item_id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("deleting item image: %w", err)
	}
	return nil
}
