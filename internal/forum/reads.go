package forum

import (
	"fmt"
	"strings"

	"github.com/garnizeh/qaforum/pkg/models"
)

// AnswerThread is an answer with its replies.
type AnswerThread struct {
	models.Answer
	Replies []models.Reply `json:"replies"`
}

// Thread is a question with its answers, resolved answer first.
type Thread struct {
	Question models.Question `json:"question"`
	Answers  []AnswerThread  `json:"answers"`
}

// Stats summarises the forum.
type Stats struct {
	Questions  int `json:"questions"`
	Unresolved int `json:"unresolved"`
	Resolved   int `json:"resolved"`
	Unanswered int `json:"unanswered"`
	Answers    int `json:"answers"`
	Replies    int `json:"replies"`
}

func (s *Service) GetQuestion(id string) (models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.questions.Get(id)
	if !ok {
		return models.Question{}, fmt.Errorf("%w: question %s", ErrNotFound, id)
	}
	return q, nil
}

func (s *Service) GetAnswer(id string) (models.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.answers.Get(id)
	if !ok {
		return models.Answer{}, fmt.Errorf("%w: answer %s", ErrNotFound, id)
	}
	return a, nil
}

func (s *Service) GetReply(id string) (models.Reply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.replies.Get(id)
	if !ok {
		return models.Reply{}, fmt.Errorf("%w: reply %s", ErrNotFound, id)
	}
	return r, nil
}

// Questions lists questions newest first, narrowed by filter.
func (s *Service) Questions(filter string) []models.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch strings.ToLower(strings.TrimSpace(filter)) {
	case FilterUnresolved:
		return s.questions.Unresolved()
	case FilterResolved:
		return s.questions.Resolved()
	case FilterAnswered:
		return s.questions.Answered()
	case FilterUnanswered:
		return s.questions.Unanswered()
	default:
		return s.questions.SortedByRecency()
	}
}

func (s *Service) Search(query, filter string) []models.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.questions.SearchWithFilter(query, filter)
}

func (s *Service) QuestionsByAuthor(author string) []models.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.questions.ByAuthor(author)
}

func (s *Service) MyUnresolved(author string) []models.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.questions.MyUnresolved(author)
}

// AnswersFor lists the question's answers with the resolving one first.
func (s *Service) AnswersFor(questionID string) ([]models.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.questions.Get(questionID)
	if !ok {
		return nil, fmt.Errorf("%w: question %s", ErrNotFound, questionID)
	}
	return s.answers.ForQuestionResolvedFirst(q.ID, q.ResolvedAnswerID), nil
}

func (s *Service) AnswersByAuthor(author string) []models.Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.answers.ByAuthor(author)
}

func (s *Service) RepliesFor(answerID string) ([]models.Reply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.answers.Exists(answerID) {
		return nil, fmt.Errorf("%w: answer %s", ErrNotFound, answerID)
	}
	return s.replies.ForAnswer(answerID), nil
}

// Thread returns the question, its answers and their replies as one
// consistent view.
func (s *Service) Thread(questionID string) (Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.questions.Get(questionID)
	if !ok {
		return Thread{}, fmt.Errorf("%w: question %s", ErrNotFound, questionID)
	}
	answers := s.answers.ForQuestionResolvedFirst(q.ID, q.ResolvedAnswerID)
	t := Thread{Question: q, Answers: make([]AnswerThread, 0, len(answers))}
	for _, a := range answers {
		t.Answers = append(t.Answers, AnswerThread{Answer: a, Replies: s.replies.ForAnswer(a.ID)})
	}
	return t, nil
}

func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Questions: s.questions.Count(),
		Answers:   s.answers.Count(),
		Replies:   s.replies.Count(),
	}
	for _, q := range s.questions.All() {
		if q.Resolved {
			st.Resolved++
		} else {
			st.Unresolved++
		}
		if q.TotalAnswers == 0 {
			st.Unanswered++
		}
	}
	return st
}
