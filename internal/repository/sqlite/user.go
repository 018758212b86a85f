package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/garnizeh/qaforum/pkg/models"
	"github.com/garnizeh/qaforum/pkg/repository"
)

const userColumns = `u.id, u.username, u.password_hash, u.first_name, u.last_name, u.email, u.otp_hash, u.must_change_password, u.created, u.updated, COALESCE(GROUP_CONCAT(r.role, ','), '')`

func (r *SQLiteRepo) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	if u == nil {
		return 0, fmt.Errorf("user is nil")
	}

	var id int64
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = insertUser(ctx, tx, u)
		return err
	})
	if err != nil {
		return 0, err
	}
	u.ID = id
	return id, nil
}

func (r *SQLiteRepo) CreateUserWithInvitation(ctx context.Context, u *models.User, code string, at time.Time) (int64, error) {
	if u == nil {
		return 0, fmt.Errorf("user is nil")
	}

	var id int64
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		ok, err := markInvitationUsed(ctx, tx, code, u.Username, at)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrInvitationUnavailable
		}
		id, err = insertUser(ctx, tx, u)
		return err
	})
	if err != nil {
		return 0, err
	}
	u.ID = id
	r.logger.Info("invitation redeemed", "code", code, "username", u.Username)
	return id, nil
}

func insertUser(ctx context.Context, tx *sql.Tx, u *models.User) (int64, error) {
	ts := now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, first_name, last_name, email, otp_hash, must_change_password, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.PasswordHash, u.FirstName, u.LastName, u.Email, u.OneTimePassword, boolInt(u.MustChangePassword), ts, ts)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	for _, role := range u.Roles {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO user_roles (username, role) VALUES (?, ?)`, u.Username, role); err != nil {
			return 0, fmt.Errorf("insert role %s: %w", role, err)
		}
	}
	u.Created, u.Updated = fromMillis(ts), fromMillis(ts)
	return res.LastInsertId()
}

func (r *SQLiteRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users u LEFT JOIN user_roles r ON r.username = u.username WHERE u.username = ? GROUP BY u.id`, username)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func (r *SQLiteRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+userColumns+` FROM users u LEFT JOIN user_roles r ON r.username = u.username GROUP BY u.id ORDER BY u.username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM users`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *SQLiteRepo) UpdateUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}

	_, err := r.conn.Exec(ctx, `UPDATE users SET first_name = ?, last_name = ?, email = ?, updated = ? WHERE username = ?`, u.FirstName, u.LastName, u.Email, now(), u.Username)
	return err
}

func (r *SQLiteRepo) UpdateCredentials(ctx context.Context, username, passwordHash, otpHash string, mustChange bool) error {
	_, err := r.conn.Exec(ctx, `UPDATE users SET password_hash = ?, otp_hash = ?, must_change_password = ?, updated = ? WHERE username = ?`, passwordHash, otpHash, boolInt(mustChange), now(), username)
	return err
}

func (r *SQLiteRepo) DeleteUser(ctx context.Context, username string) error {
	return r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE username = ?`, username); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
		return err
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.User, error) {
	var (
		u          models.User
		mustChange int
		created    int64
		updated    int64
		roles      string
	)
	if err := s.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Email, &u.OneTimePassword, &mustChange, &created, &updated, &roles); err != nil {
		return nil, err
	}
	u.MustChangePassword = mustChange != 0
	u.Created, u.Updated = fromMillis(created), fromMillis(updated)
	u.Roles = splitRoles(roles)
	return &u, nil
}

func splitRoles(s string) []string {
	if s == "" {
		return []string{}
	}
	roles := strings.Split(s, ",")
	slices.Sort(roles)
	return roles
}
