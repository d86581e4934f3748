package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pavelanni/maaspractice/internal/model"
)

// SetMetadata upserts a key-value pair in the archive_metadata table.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO archive_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM archive_metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetArchiveInfo records the settings attempts are being archived under.
func (s *Store) SetArchiveInfo(ctx context.Context, info model.ArchiveInfo) error {
	pairs := []struct{ k, v string }{
		{"app_name", info.AppName},
		{"llm_model", info.Model},
		{"cases_dir", info.CasesDir},
	}
	for _, p := range pairs {
		if err := s.SetMetadata(ctx, p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}

// GetArchiveInfo reads the archive settings from metadata.
func (s *Store) GetArchiveInfo(ctx context.Context) (model.ArchiveInfo, error) {
	var info model.ArchiveInfo
	var err error

	if info.AppName, err = s.GetMetadata(ctx, "app_name"); err != nil {
		return info, err
	}
	if info.Model, err = s.GetMetadata(ctx, "llm_model"); err != nil {
		return info, err
	}
	if info.CasesDir, err = s.GetMetadata(ctx, "cases_dir"); err != nil {
		return info, err
	}
	return info, nil
}
