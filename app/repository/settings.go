package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SettingsRepository stores named configuration blobs.
type SettingsRepository struct {
	db DBTX
}

func NewSettingsRepository(db DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the stored value and whether the setting exists.
func (r *SettingsRepository) Get(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *SettingsRepository) Set(ctx context.Context, name, value string) error {
	query := `
		INSERT INTO settings (name, value, updated_at)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)
	`
	_, err := r.db.ExecContext(ctx, query, name, value, time.Now().UTC())
	return err
}
