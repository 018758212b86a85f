package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Backup writes a consistent copy of the open database to dst. dst must not
// exist yet.
func (db *DB) Backup(ctx context.Context, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("backup target %s already exists", dst)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat backup target: %w", err)
	}
	if _, err := db.conn.ExecContext(ctx, `VACUUM INTO ?`, dst); err != nil {
		return fmt.Errorf("vacuum into %s: %w", dst, err)
	}
	db.logger.Info("database backup written", slog.String("path", dst))
	return nil
}

// VerifyBackup opens path, runs an integrity check and
// returns how many migrations it has recorded.
func VerifyBackup(ctx context.Context, path string) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("stat backup: %w", err)
	}
	d, err := New(ctx, path, nil)
	if err != nil {
		return 0, err
	}
	defer d.Close()

	var result string
	if err := d.QueryRow(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return 0, fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return 0, fmt.Errorf("integrity check failed: %s", result)
	}

	var applied int
	if err := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations`).Scan(&applied); err != nil {
		return 0, fmt.Errorf("backup has no migration history: %w", err)
	}
	return applied, nil
}

// Restore verifies src and copies it over dst. The copy goes through a
// temporary file in dst's directory and is renamed into place.
func Restore(ctx context.Context, src, dst string) error {
	if _, err := VerifyBackup(ctx, src); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".restore-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("copy backup: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync restore: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close restore: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	return nil
}
