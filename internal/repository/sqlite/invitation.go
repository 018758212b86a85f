package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garnizeh/qaforum/pkg/models"
)

func (r *SQLiteRepo) CreateInvitation(ctx context.Context, c *models.InvitationCode) error {
	if c == nil {
		return fmt.Errorf("invitation is nil")
	}

	_, err := r.conn.Exec(ctx, `INSERT INTO invitation_codes (code, created_by, deadline, used, used_by, created) VALUES (?, ?, ?, 0, '', ?)`,
		c.Code, c.CreatedBy, c.Deadline.UTC().UnixMilli(), toMillis(c.Created))
	return err
}

func (r *SQLiteRepo) GetInvitation(ctx context.Context, code string) (*models.InvitationCode, error) {
	row := r.conn.QueryRow(ctx, `SELECT code, created_by, deadline, used, used_by, used_at, created FROM invitation_codes WHERE code = ?`, code)
	var (
		c        models.InvitationCode
		deadline int64
		used     int
		usedAt   sql.NullInt64
		created  int64
	)
	if err := row.Scan(&c.Code, &c.CreatedBy, &deadline, &used, &c.UsedBy, &usedAt, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.Deadline = fromMillis(deadline)
	c.Used = used != 0
	c.Created = fromMillis(created)
	if usedAt.Valid {
		t := fromMillis(usedAt.Int64)
		c.UsedAt = &t
	}
	return &c, nil
}

func (r *SQLiteRepo) MarkInvitationUsed(ctx context.Context, code, usedBy string, usedAt time.Time) (bool, error) {
	var ok bool
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		ok, err = markInvitationUsed(ctx, tx, code, usedBy, usedAt)
		return err
	})
	return ok, err
}

// markInvitationUsed claims the code with a conditional update so two
// concurrent redemptions cannot both succeed.
func markInvitationUsed(ctx context.Context, tx *sql.Tx, code, usedBy string, usedAt time.Time) (bool, error) {
	ts := usedAt.UTC().UnixMilli()
	res, err := tx.ExecContext(ctx, `UPDATE invitation_codes SET used = 1, used_by = ?, used_at = ? WHERE code = ? AND used = 0 AND deadline > ?`, usedBy, ts, code, ts)
	if err != nil {
		return false, fmt.Errorf("redeem invitation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *SQLiteRepo) DeleteExpiredInvitations(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.conn.Exec(ctx, `DELETE FROM invitation_codes WHERE used = 0 AND deadline <= ?`, now.UTC().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
