package sqlite

import (
	"context"
	"strings"
)

func (r *SQLiteRepo) GetRoles(ctx context.Context, username string) ([]string, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT role FROM user_roles WHERE username = ? ORDER BY role`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) AddRole(ctx context.Context, username, role string) error {
	_, err := r.conn.Exec(ctx, `INSERT OR IGNORE INTO user_roles (username, role) VALUES (?, ?)`, username, strings.ToLower(role))
	return err
}

func (r *SQLiteRepo) RemoveRole(ctx context.Context, username, role string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM user_roles WHERE username = ? AND role = ?`, username, strings.ToLower(role))
	return err
}

func (r *SQLiteRepo) CountUsersWithRole(ctx context.Context, role string) (int64, error) {
	var n int64
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM user_roles WHERE role = ?`, strings.ToLower(role)).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
