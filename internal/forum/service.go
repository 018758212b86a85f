package forum

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/qaforum/pkg/models"
)

// Journal persists the rows touched by one forum operation. An error aborts
// the operation before any in-memory state changes.
type Journal interface {
	ApplyForumChange(ctx context.Context, change models.ForumChange) error
}

// ResolvedAnswerPolicy decides what DeleteAnswer does with the answer that
// resolved its question.
type ResolvedAnswerPolicy string

const (
	// PolicyKeep deletes the answer and leaves the question resolved with a
	// dangling ResolvedAnswerID.
	PolicyKeep ResolvedAnswerPolicy = "keep"
	// PolicyForbid refuses to delete the resolving answer.
	PolicyForbid ResolvedAnswerPolicy = "forbid"
	// PolicyUnresolve deletes the answer and reopens the question.
	PolicyUnresolve ResolvedAnswerPolicy = "unresolve"
)

// ParseResolvedAnswerPolicy maps a config value to a policy. Empty means keep.
func ParseResolvedAnswerPolicy(s string) (ResolvedAnswerPolicy, error) {
	switch p := ResolvedAnswerPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyKeep, nil
	case PolicyKeep, PolicyForbid, PolicyUnresolve:
		return p, nil
	default:
		return "", fmt.Errorf("unknown resolved answer policy %q", s)
	}
}

// Service owns the question, answer and reply stores and is the only code
// allowed to mutate them. All methods are safe for concurrent use.
type Service struct {
	mu        sync.RWMutex
	questions *QuestionStore
	answers   *AnswerStore
	replies   *ReplyStore

	journal Journal
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
	policy  ResolvedAnswerPolicy
}

type Option func(*Service)

func WithJournal(j Journal) Option { return func(s *Service) { s.journal = j } }

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithIDGenerator(gen func() string) Option { return func(s *Service) { s.newID = gen } }

func WithResolvedAnswerPolicy(p ResolvedAnswerPolicy) Option {
	return func(s *Service) { s.policy = p }
}

func NewService(opts ...Option) *Service {
	s := &Service{
		questions: NewQuestionStore(),
		answers:   NewAnswerStore(),
		replies:   NewReplyStore(),
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		policy:    PolicyKeep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DeleteResult reports what a cascading delete removed besides the target.
type DeleteResult struct {
	Answers int `json:"answers"`
	Replies int `json:"replies"`
}

// commit journals change and, on success, runs apply. Callers hold s.mu.
func (s *Service) commit(ctx context.Context, op string, change models.ForumChange, apply func()) error {
	if s.journal != nil && !change.Empty() {
		if err := s.journal.ApplyForumChange(ctx, change); err != nil {
			s.logger.Error("persist forum change", slog.String("op", op), slog.Any("err", err))
			return fmt.Errorf("%s: persist: %w", op, err)
		}
	}
	apply()
	return nil
}

// Ask creates a question authored by actor.
func (s *Service) Ask(ctx context.Context, title, body, actor string) (models.Question, error) {
	if err := requireActor(actor); err != nil {
		return models.Question{}, err
	}
	title, body = strings.TrimSpace(title), strings.TrimSpace(body)
	if err := validateQuestion(title, body); err != nil {
		return models.Question{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if isDuplicateQuestion(s.questions.All(), title, body, "") {
		return models.Question{}, fmt.Errorf("%w: a question with this title and body already exists", ErrDuplicate)
	}

	now := s.now()
	q := models.Question{
		ID:        s.newID(),
		Title:     title,
		Body:      body,
		Author:    actor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.commit(ctx, "ask", models.ForumChange{Questions: []models.Question{q}}, func() {
		s.questions.Create(q)
	})
	if err != nil {
		return models.Question{}, err
	}

	s.logger.Info("question created", slog.String("question_id", q.ID), slog.String("author", actor))
	return q, nil
}

// EditQuestion replaces title and body of an open question.
func (s *Service) EditQuestion(ctx context.Context, id, title, body, actor string) (models.Question, error) {
	if err := requireActor(actor); err != nil {
		return models.Question{}, err
	}
	title, body = strings.TrimSpace(title), strings.TrimSpace(body)

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions.Get(id)
	if !ok {
		return models.Question{}, fmt.Errorf("%w: question %s", ErrNotFound, id)
	}
	if err := requireAuthor("question", q.Author, actor); err != nil {
		return models.Question{}, err
	}
	if err := requireOpen(q); err != nil {
		return models.Question{}, err
	}
	if err := validateQuestion(title, body); err != nil {
		return models.Question{}, err
	}
	if isDuplicateQuestion(s.questions.All(), title, body, q.ID) {
		return models.Question{}, fmt.Errorf("%w: a question with this title and body already exists", ErrDuplicate)
	}

	q.Title, q.Body, q.UpdatedAt = title, body, s.now()
	err := s.commit(ctx, "edit question", models.ForumChange{Questions: []models.Question{q}}, func() {
		s.questions.Update(q)
	})
	if err != nil {
		return models.Question{}, err
	}
	return q, nil
}

// DeleteQuestion removes the question with all its answers and their replies.
func (s *Service) DeleteQuestion(ctx context.Context, id, actor string) (DeleteResult, error) {
	if err := requireActor(actor); err != nil {
		return DeleteResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions.Get(id)
	if !ok {
		return DeleteResult{}, fmt.Errorf("%w: question %s", ErrNotFound, id)
	}
	if err := requireAuthor("question", q.Author, actor); err != nil {
		return DeleteResult{}, err
	}

	change := models.ForumChange{DeletedQuestions: []string{q.ID}}
	answers := s.answers.ForQuestion(q.ID)
	for _, a := range answers {
		change.DeletedAnswers = append(change.DeletedAnswers, a.ID)
		for _, r := range s.replies.ForAnswer(a.ID) {
			change.DeletedReplies = append(change.DeletedReplies, r.ID)
		}
	}

	var res DeleteResult
	err := s.commit(ctx, "delete question", change, func() {
		for _, a := range answers {
			res.Replies += s.replies.DeleteAllForAnswer(a.ID)
		}
		res.Answers = s.answers.DeleteAllForQuestion(q.ID)
		s.questions.Delete(q.ID)
	})
	if err != nil {
		return DeleteResult{}, err
	}

	s.logger.Info("question deleted",
		slog.String("question_id", q.ID),
		slog.Int("answers", res.Answers),
		slog.Int("replies", res.Replies),
	)
	return res, nil
}

// Answer posts content as an answer to questionID.
func (s *Service) Answer(ctx context.Context, questionID, content, actor string) (models.Answer, error) {
	if err := requireActor(actor); err != nil {
		return models.Answer{}, err
	}
	content = strings.TrimSpace(content)

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions.Get(questionID)
	if !ok {
		return models.Answer{}, fmt.Errorf("%w: question %s", ErrNotFound, questionID)
	}
	if err := requireNotSelfAnswer(q, actor); err != nil {
		return models.Answer{}, err
	}
	if err := requireOpen(q); err != nil {
		return models.Answer{}, err
	}
	if err := validationError(models.ValidateAnswerContent(content)); err != nil {
		return models.Answer{}, err
	}
	if isDuplicateAnswer(s.answers.ForQuestion(q.ID), content, "") {
		return models.Answer{}, fmt.Errorf("%w: this answer was already posted", ErrDuplicate)
	}

	now := s.now()
	a := models.Answer{
		ID:         s.newID(),
		QuestionID: q.ID,
		Content:    content,
		Author:     actor,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	q.TotalAnswers++
	// Only answers the author has not written count as unseen.
	if actor != q.Author {
		q.NewAnswers++
	}
	q.UpdatedAt = now

	change := models.ForumChange{Questions: []models.Question{q}, Answers: []models.Answer{a}}
	err := s.commit(ctx, "answer", change, func() {
		s.answers.Create(a)
		s.questions.Update(q)
	})
	if err != nil {
		return models.Answer{}, err
	}

	s.logger.Info("answer created",
		slog.String("answer_id", a.ID),
		slog.String("question_id", q.ID),
		slog.String("author", actor),
	)
	return a, nil
}

// EditAnswer replaces the content of an answer that has not resolved its question.
func (s *Service) EditAnswer(ctx context.Context, id, content, actor string) (models.Answer, error) {
	if err := requireActor(actor); err != nil {
		return models.Answer{}, err
	}
	content = strings.TrimSpace(content)

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.answers.Get(id)
	if !ok {
		return models.Answer{}, fmt.Errorf("%w: answer %s", ErrNotFound, id)
	}
	if err := requireAuthor("answer", a.Author, actor); err != nil {
		return models.Answer{}, err
	}
	if err := requireAnswerOpen(a); err != nil {
		return models.Answer{}, err
	}
	if err := validationError(models.ValidateAnswerContent(content)); err != nil {
		return models.Answer{}, err
	}
	if isDuplicateAnswer(s.answers.ForQuestion(a.QuestionID), content, a.ID) {
		return models.Answer{}, fmt.Errorf("%w: this answer was already posted", ErrDuplicate)
	}

	a.Content, a.UpdatedAt = content, s.now()
	err := s.commit(ctx, "edit answer", models.ForumChange{Answers: []models.Answer{a}}, func() {
		s.answers.Update(a)
	})
	if err != nil {
		return models.Answer{}, err
	}
	return a, nil
}

// DeleteAnswer removes the answer and its replies and decrements the
// question's answer count. What happens to a resolved question whose
// resolving answer is deleted depends on the configured policy.
func (s *Service) DeleteAnswer(ctx context.Context, id, actor string) (DeleteResult, error) {
	if err := requireActor(actor); err != nil {
		return DeleteResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.answers.Get(id)
	if !ok {
		return DeleteResult{}, fmt.Errorf("%w: answer %s", ErrNotFound, id)
	}
	if err := requireAuthor("answer", a.Author, actor); err != nil {
		return DeleteResult{}, err
	}

	q, hasQuestion := s.questions.Get(a.QuestionID)
	resolving := a.MarkedAsResolved || (hasQuestion && q.Resolved && q.ResolvedAnswerID == a.ID)
	if resolving && s.policy == PolicyForbid {
		return DeleteResult{}, fmt.Errorf("%w: answer %s resolved its question", ErrUnauthorized, a.ID)
	}

	change := models.ForumChange{DeletedAnswers: []string{a.ID}}
	for _, r := range s.replies.ForAnswer(a.ID) {
		change.DeletedReplies = append(change.DeletedReplies, r.ID)
	}
	if hasQuestion {
		if q.TotalAnswers > 0 {
			q.TotalAnswers--
		}
		if q.NewAnswers > q.TotalAnswers {
			q.NewAnswers = q.TotalAnswers
		}
		if resolving && s.policy == PolicyUnresolve && q.ResolvedAnswerID == a.ID {
			q.Resolved, q.ResolvedAnswerID = false, ""
		}
		q.UpdatedAt = s.now()
		change.Questions = []models.Question{q}
	}

	var res DeleteResult
	err := s.commit(ctx, "delete answer", change, func() {
		res.Replies = s.replies.DeleteAllForAnswer(a.ID)
		s.answers.Delete(a.ID)
		res.Answers = 1
		if hasQuestion {
			s.questions.Update(q)
		}
	})
	if err != nil {
		return DeleteResult{}, err
	}

	if resolving && hasQuestion && q.Resolved {
		s.logger.Warn("resolving answer deleted, question keeps a dangling resolved answer",
			slog.String("question_id", q.ID),
			slog.String("answer_id", a.ID),
		)
	}
	return res, nil
}

// Resolve marks answerID as the answer that resolved questionID.
func (s *Service) Resolve(ctx context.Context, questionID, answerID, actor string) (models.Question, error) {
	if err := requireActor(actor); err != nil {
		return models.Question{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions.Get(questionID)
	if !ok {
		return models.Question{}, fmt.Errorf("%w: question %s", ErrNotFound, questionID)
	}
	if err := requireAuthor("question", q.Author, actor); err != nil {
		return models.Question{}, err
	}
	if q.Resolved {
		return models.Question{}, fmt.Errorf("%w: question %s is already resolved", ErrConflict, q.ID)
	}
	a, ok := s.answers.Get(answerID)
	if !ok || a.QuestionID != q.ID {
		return models.Question{}, fmt.Errorf("%w: answer %s on question %s", ErrNotFound, answerID, q.ID)
	}

	now := s.now()
	a.MarkedAsResolved, a.UpdatedAt = true, now
	q.Resolved, q.ResolvedAnswerID, q.UpdatedAt = true, a.ID, now

	change := models.ForumChange{Questions: []models.Question{q}, Answers: []models.Answer{a}}
	err := s.commit(ctx, "resolve", change, func() {
		s.answers.Update(a)
		s.questions.Update(q)
	})
	if err != nil {
		return models.Question{}, err
	}

	s.logger.Info("question resolved", slog.String("question_id", q.ID), slog.String("answer_id", a.ID))
	return q, nil
}

// Unresolve reopens a resolved question and unmarks its resolving answer when
// that answer still exists.
func (s *Service) Unresolve(ctx context.Context, questionID, actor string) (models.Question, error) {
	if err := requireActor(actor); err != nil {
		return models.Question{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions.Get(questionID)
	if !ok {
		return models.Question{}, fmt.Errorf("%w: question %s", ErrNotFound, questionID)
	}
	if err := requireAuthor("question", q.Author, actor); err != nil {
		return models.Question{}, err
	}
	if !q.Resolved {
		return models.Question{}, fmt.Errorf("%w: question %s is not resolved", ErrConflict, q.ID)
	}

	now := s.now()
	change := models.ForumChange{}
	a, hasAnswer := s.answers.Get(q.ResolvedAnswerID)
	if hasAnswer {
		a.MarkedAsResolved, a.UpdatedAt = false, now
		change.Answers = []models.Answer{a}
	}
	q.Resolved, q.ResolvedAnswerID, q.UpdatedAt = false, "", now
	change.Questions = []models.Question{q}

	err := s.commit(ctx, "unresolve", change, func() {
		if hasAnswer {
			s.answers.Update(a)
		}
		s.questions.Update(q)
	})
	if err != nil {
		return models.Question{}, err
	}
	return q, nil
}

// Reply attaches a reply to answerID. Any authenticated actor may reply.
func (s *Service) Reply(ctx context.Context, answerID, content, actor string) (models.Reply, error) {
	if err := requireActor(actor); err != nil {
		return models.Reply{}, err
	}
	content = strings.TrimSpace(content)
	if err := validationError(models.ValidateReplyContent(content)); err != nil {
		return models.Reply{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.answers.Exists(answerID) {
		return models.Reply{}, fmt.Errorf("%w: answer %s", ErrNotFound, answerID)
	}

	now := s.now()
	r := models.Reply{
		ID:        s.newID(),
		AnswerID:  answerID,
		Content:   content,
		Author:    actor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.commit(ctx, "reply", models.ForumChange{Replies: []models.Reply{r}}, func() {
		s.replies.Create(r)
	})
	if err != nil {
		return models.Reply{}, err
	}
	return r, nil
}

func (s *Service) EditReply(ctx context.Context, id, content, actor string) (models.Reply, error) {
	if err := requireActor(actor); err != nil {
		return models.Reply{}, err
	}
	content = strings.TrimSpace(content)

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.replies.Get(id)
	if !ok {
		return models.Reply{}, fmt.Errorf("%w: reply %s", ErrNotFound, id)
	}
	if err := requireAuthor("reply", r.Author, actor); err != nil {
		return models.Reply{}, err
	}
	if err := validationError(models.ValidateReplyContent(content)); err != nil {
		return models.Reply{}, err
	}

	r.Content, r.UpdatedAt = content, s.now()
	err := s.commit(ctx, "edit reply", models.ForumChange{Replies: []models.Reply{r}}, func() {
		s.replies.Update(r)
	})
	if err != nil {
		return models.Reply{}, err
	}
	return r, nil
}

func (s *Service) DeleteReply(ctx context.Context, id, actor string) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.replies.Get(id)
	if !ok {
		return fmt.Errorf("%w: reply %s", ErrNotFound, id)
	}
	if err := requireAuthor("reply", r.Author, actor); err != nil {
		return err
	}
	return s.commit(ctx, "delete reply", models.ForumChange{DeletedReplies: []string{r.ID}}, func() {
		s.replies.Delete(r.ID)
	})
}

// MarkViewed records that actor has seen the question's answers. Only the
// author's view resets the new-answer counter; other viewers change nothing.
func (s *Service) MarkViewed(ctx context.Context, questionID, actor string) (models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions.Get(questionID)
	if !ok {
		return models.Question{}, fmt.Errorf("%w: question %s", ErrNotFound, questionID)
	}
	if actor != q.Author || q.NewAnswers == 0 {
		return q, nil
	}

	q.NewAnswers = 0
	err := s.commit(ctx, "mark viewed", models.ForumChange{Questions: []models.Question{q}}, func() {
		s.questions.Update(q)
	})
	if err != nil {
		return models.Question{}, err
	}
	return q, nil
}

// Load replaces the in-memory state with snap. Rows whose owner is missing
// are skipped and logged.
func (s *Service) Load(snap models.ForumSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.questions.Clear()
	s.answers.Clear()
	s.replies.Clear()

	for _, q := range snap.Questions {
		s.questions.Create(q)
	}
	for _, a := range snap.Answers {
		if !s.questions.Exists(a.QuestionID) {
			s.logger.Warn("skipping orphan answer", slog.String("answer_id", a.ID))
			continue
		}
		s.answers.Create(a)
	}
	for _, r := range snap.Replies {
		if !s.answers.Exists(r.AnswerID) {
			s.logger.Warn("skipping orphan reply", slog.String("reply_id", r.ID))
			continue
		}
		s.replies.Create(r)
	}

	s.logger.Info("forum loaded",
		slog.Int("questions", s.questions.Count()),
		slog.Int("answers", s.answers.Count()),
		slog.Int("replies", s.replies.Count()),
	)
}
