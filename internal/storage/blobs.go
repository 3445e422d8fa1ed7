package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned for a missing blob key.
var ErrNotFound = errors.New("blob not found")

// Blob is a stored object.
type Blob struct {
	Key         string
	ContentType string
	Data        []byte
	UpdatedAt   time.Time
}

// BlobInfo describes a blob without its content.
type BlobInfo struct {
	Key         string    `json:"key"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PutBlob stores data under key, replacing any previous content. It reports
// whether the key was new.
func (db *DB) PutBlob(ctx context.Context, key, contentType string, data []byte) (bool, error) {
	if data == nil {
		data = []byte{}
	}
	var created bool
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM blobs WHERE key = ?`, key).Scan(&one)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			created = true
		case err != nil:
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO blobs (key, content_type, data, size, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				content_type = excluded.content_type,
				data = excluded.data,
				size = excluded.size,
				updated_at = excluded.updated_at`,
			key, contentType, data, len(data), time.Now().UnixMilli())
		return err
	})
	if err != nil {
		return false, fmt.Errorf("put blob %s: %w", key, err)
	}
	return created, nil
}

// GetBlob loads the blob stored under key.
func (db *DB) GetBlob(ctx context.Context, key string) (*Blob, error) {
	var (
		b       Blob
		updated int64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT key, content_type, data, updated_at FROM blobs WHERE key = ?`, key,
	).Scan(&b.Key, &b.ContentType, &b.Data, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get blob %s: %w", key, err)
	}
	b.UpdatedAt = time.UnixMilli(updated)
	return &b, nil
}

// DeleteBlob removes key and reports whether it existed.
func (db *DB) DeleteBlob(ctx context.Context, key string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM blobs WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete blob %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListBlobs describes every blob whose key starts with prefix, ordered by key.
func (db *DB) ListBlobs(ctx context.Context, prefix string) ([]BlobInfo, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT key, content_type, size, updated_at FROM blobs
		WHERE substr(key, 1, length(?)) = ?
		ORDER BY key`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	defer rows.Close()

	infos := []BlobInfo{}
	for rows.Next() {
		var (
			info    BlobInfo
			updated int64
		)
		if err := rows.Scan(&info.Key, &info.ContentType, &info.Size, &updated); err != nil {
			return nil, err
		}
		info.UpdatedAt = time.UnixMilli(updated)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}
