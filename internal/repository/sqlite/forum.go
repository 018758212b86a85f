package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/qaforum/pkg/models"
)

// ApplyForumChange deletes children before parents, then upserts parents
// before children, all in one transaction.
func (r *SQLiteRepo) ApplyForumChange(ctx context.Context, c models.ForumChange) error {
	if c.Empty() {
		return nil
	}

	return r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		for _, id := range c.DeletedReplies {
			if _, err := tx.ExecContext(ctx, `DELETE FROM replies WHERE id = ?`, id); err != nil {
				return fmt.Errorf("delete reply %s: %w", id, err)
			}
		}
		for _, id := range c.DeletedAnswers {
			if _, err := tx.ExecContext(ctx, `DELETE FROM replies WHERE answer_id = ?`, id); err != nil {
				return fmt.Errorf("delete replies of answer %s: %w", id, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE id = ?`, id); err != nil {
				return fmt.Errorf("delete answer %s: %w", id, err)
			}
		}
		for _, id := range c.DeletedQuestions {
			if _, err := tx.ExecContext(ctx, `DELETE FROM replies WHERE answer_id IN (SELECT id FROM answers WHERE question_id = ?)`, id); err != nil {
				return fmt.Errorf("delete replies of question %s: %w", id, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE question_id = ?`, id); err != nil {
				return fmt.Errorf("delete answers of question %s: %w", id, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, id); err != nil {
				return fmt.Errorf("delete question %s: %w", id, err)
			}
		}

		for _, q := range c.Questions {
			_, err := tx.ExecContext(ctx, `INSERT INTO questions (id, title, body, author, resolved, resolved_answer_id, total_answers, new_answers, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET title=excluded.title, body=excluded.body, resolved=excluded.resolved, resolved_answer_id=excluded.resolved_answer_id, total_answers=excluded.total_answers, new_answers=excluded.new_answers, updated=excluded.updated`,
				q.ID, q.Title, q.Body, q.Author, boolInt(q.Resolved), q.ResolvedAnswerID, q.TotalAnswers, q.NewAnswers, toMillis(q.CreatedAt), toMillis(q.UpdatedAt))
			if err != nil {
				return fmt.Errorf("upsert question %s: %w", q.ID, err)
			}
		}
		for _, a := range c.Answers {
			_, err := tx.ExecContext(ctx, `INSERT INTO answers (id, question_id, content, author, marked_as_resolved, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET content=excluded.content, marked_as_resolved=excluded.marked_as_resolved, updated=excluded.updated`,
				a.ID, a.QuestionID, a.Content, a.Author, boolInt(a.MarkedAsResolved), toMillis(a.CreatedAt), toMillis(a.UpdatedAt))
			if err != nil {
				return fmt.Errorf("upsert answer %s: %w", a.ID, err)
			}
		}
		for _, rp := range c.Replies {
			_, err := tx.ExecContext(ctx, `INSERT INTO replies (id, answer_id, content, author, created, updated) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET content=excluded.content, updated=excluded.updated`,
				rp.ID, rp.AnswerID, rp.Content, rp.Author, toMillis(rp.CreatedAt), toMillis(rp.UpdatedAt))
			if err != nil {
				return fmt.Errorf("upsert reply %s: %w", rp.ID, err)
			}
		}
		return nil
	})
}

// LoadForum reads every forum row ordered by creation so replaying them
// reproduces the original insertion order.
func (r *SQLiteRepo) LoadForum(ctx context.Context) (models.ForumSnapshot, error) {
	var snap models.ForumSnapshot
	var err error

	if snap.Questions, err = r.loadQuestions(ctx); err != nil {
		return models.ForumSnapshot{}, err
	}
	if snap.Answers, err = r.loadAnswers(ctx); err != nil {
		return models.ForumSnapshot{}, err
	}
	if snap.Replies, err = r.loadReplies(ctx); err != nil {
		return models.ForumSnapshot{}, err
	}
	r.logger.Debug("forum snapshot loaded", "questions", len(snap.Questions), "answers", len(snap.Answers), "replies", len(snap.Replies))
	return snap, nil
}

func (r *SQLiteRepo) loadQuestions(ctx context.Context) ([]models.Question, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, title, body, author, resolved, resolved_answer_id, total_answers, new_answers, created, updated FROM questions ORDER BY created, rowid`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var out []models.Question
	for rows.Next() {
		var (
			q                models.Question
			resolved         int
			created, updated int64
		)
		if err := rows.Scan(&q.ID, &q.Title, &q.Body, &q.Author, &resolved, &q.ResolvedAnswerID, &q.TotalAnswers, &q.NewAnswers, &created, &updated); err != nil {
			return nil, err
		}
		q.Resolved = resolved != 0
		q.CreatedAt, q.UpdatedAt = fromMillis(created), fromMillis(updated)
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) loadAnswers(ctx context.Context) ([]models.Answer, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, question_id, content, author, marked_as_resolved, created, updated FROM answers ORDER BY created, rowid`)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	defer rows.Close()

	var out []models.Answer
	for rows.Next() {
		var (
			a                models.Answer
			marked           int
			created, updated int64
		)
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Content, &a.Author, &marked, &created, &updated); err != nil {
			return nil, err
		}
		a.MarkedAsResolved = marked != 0
		a.CreatedAt, a.UpdatedAt = fromMillis(created), fromMillis(updated)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) loadReplies(ctx context.Context) ([]models.Reply, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, answer_id, content, author, created, updated FROM replies ORDER BY created, rowid`)
	if err != nil {
		return nil, fmt.Errorf("load replies: %w", err)
	}
	defer rows.Close()

	var out []models.Reply
	for rows.Next() {
		var (
			rp               models.Reply
			created, updated int64
		)
		if err := rows.Scan(&rp.ID, &rp.AnswerID, &rp.Content, &rp.Author, &created, &updated); err != nil {
			return nil, err
		}
		rp.CreatedAt, rp.UpdatedAt = fromMillis(created), fromMillis(updated)
		out = append(out, rp)
	}
	return out, rows.Err()
}
