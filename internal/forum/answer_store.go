package forum

import (
	"slices"
	"strings"

	"github.com/garnizeh/qaforum/pkg/models"
)

// AnswerStore keeps answers by ID plus a question → answer IDs index in
// insertion order. It never updates the owning question; Service does that.
type AnswerStore struct {
	byID       map[string]models.Answer
	byQuestion map[string][]string
	order      []string
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{
		byID:       make(map[string]models.Answer),
		byQuestion: make(map[string][]string),
	}
}

func (s *AnswerStore) Create(a models.Answer) bool {
	if a.ID == "" {
		return false
	}
	if _, ok := s.byID[a.ID]; ok {
		return false
	}
	s.byID[a.ID] = a
	s.byQuestion[a.QuestionID] = append(s.byQuestion[a.QuestionID], a.ID)
	s.order = append(s.order, a.ID)
	return true
}

func (s *AnswerStore) Get(id string) (models.Answer, bool) {
	a, ok := s.byID[id]
	return a, ok
}

func (s *AnswerStore) All() []models.Answer {
	out := make([]models.Answer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Update replaces an existing answer. The owning question is kept from the
// stored copy so the index cannot drift.
func (s *AnswerStore) Update(a models.Answer) bool {
	old, ok := s.byID[a.ID]
	if !ok || a.ID == "" {
		return false
	}
	a.QuestionID = old.QuestionID
	s.byID[a.ID] = a
	return true
}

func (s *AnswerStore) Delete(id string) bool {
	a, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })

	ids := slices.DeleteFunc(s.byQuestion[a.QuestionID], func(v string) bool { return v == id })
	if len(ids) == 0 {
		delete(s.byQuestion, a.QuestionID)
	} else {
		s.byQuestion[a.QuestionID] = ids
	}
	return true
}

// ForQuestion returns the question's answers, oldest first.
func (s *AnswerStore) ForQuestion(questionID string) []models.Answer {
	ids := s.byQuestion[questionID]
	out := make([]models.Answer, 0, len(ids))
	for _, id := range ids {
		if a, ok := s.byID[id]; ok {
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Answer) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

// ForQuestionResolvedFirst is ForQuestion with resolvedAnswerID, when present,
// moved to the front. The other answers keep their order.
func (s *AnswerStore) ForQuestionResolvedFirst(questionID, resolvedAnswerID string) []models.Answer {
	answers := s.ForQuestion(questionID)
	if resolvedAnswerID == "" {
		return answers
	}
	i := slices.IndexFunc(answers, func(a models.Answer) bool { return a.ID == resolvedAnswerID })
	if i <= 0 {
		return answers
	}
	resolved := answers[i]
	copy(answers[1:i+1], answers[:i])
	answers[0] = resolved
	return answers
}

func (s *AnswerStore) CountForQuestion(questionID string) int {
	return len(s.byQuestion[questionID])
}

func (s *AnswerStore) HasAnswers(questionID string) bool {
	return s.CountForQuestion(questionID) > 0
}

// ByAuthor returns the author's answers, newest first.
func (s *AnswerStore) ByAuthor(author string) []models.Answer {
	out := []models.Answer{}
	if strings.TrimSpace(author) == "" {
		return out
	}
	for i := len(s.order) - 1; i >= 0; i-- {
		if a := s.byID[s.order[i]]; a.Author == author {
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Answer) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// DeleteAllForQuestion removes every answer of the question and returns how
// many were removed. Replies are not touched.
func (s *AnswerStore) DeleteAllForQuestion(questionID string) int {
	ids := slices.Clone(s.byQuestion[questionID])
	n := 0
	for _, id := range ids {
		if s.Delete(id) {
			n++
		}
	}
	return n
}

func (s *AnswerStore) Exists(id string) bool {
	_, ok := s.byID[id]
	return ok
}

func (s *AnswerStore) Count() int { return len(s.byID) }

func (s *AnswerStore) Clear() {
	s.byID = make(map[string]models.Answer)
	s.byQuestion = make(map[string][]string)
	s.order = nil
}
