package forum

import (
	"fmt"
	"strings"

	"github.com/garnizeh/qaforum/pkg/models"
)

func requireActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return fmt.Errorf("%w: no acting user", ErrUnauthorized)
	}
	return nil
}

func requireAuthor(kind, author, actor string) error {
	if author != actor {
		return fmt.Errorf("%w: only the author may modify this %s", ErrUnauthorized, kind)
	}
	return nil
}

// requireOpen rejects changes to a resolved question.
func requireOpen(q models.Question) error {
	if q.Resolved {
		return fmt.Errorf("%w: question %s is resolved", ErrUnauthorized, q.ID)
	}
	return nil
}

func requireNotSelfAnswer(q models.Question, actor string) error {
	if q.Author == actor {
		return fmt.Errorf("%w: you cannot answer your own question", ErrUnauthorized)
	}
	return nil
}

// requireAnswerOpen rejects changes to the answer that resolved its question.
func requireAnswerOpen(a models.Answer) error {
	if a.MarkedAsResolved {
		return fmt.Errorf("%w: answer %s is marked as resolved", ErrUnauthorized, a.ID)
	}
	return nil
}

func validationError(msg string) error {
	if msg == "" {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func validateQuestion(title, body string) error {
	if err := validationError(models.ValidateTitle(title)); err != nil {
		return err
	}
	return validationError(models.ValidateBody(body))
}

func isDuplicateQuestion(existing []models.Question, title, body, exceptID string) bool {
	for _, q := range existing {
		if q.ID != exceptID && strings.EqualFold(q.Title, title) && strings.EqualFold(q.Body, body) {
			return true
		}
	}
	return false
}

func isDuplicateAnswer(existing []models.Answer, content, exceptID string) bool {
	for _, a := range existing {
		if a.ID != exceptID && strings.EqualFold(a.Content, content) {
			return true
		}
	}
	return false
}
