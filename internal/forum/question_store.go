package forum

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/garnizeh/qaforum/pkg/models"
)

// Search filters accepted by SearchWithFilter.
const (
	FilterAll        = "all"
	FilterUnresolved = "unresolved"
	FilterResolved   = "resolved"
	FilterAnswered   = "answered"
	FilterUnanswered = "unanswered"
)

// QuestionStore keeps questions by ID in insertion order.
// It is not safe for concurrent use; Service serialises access.
type QuestionStore struct {
	byID  map[string]models.Question
	order []string
}

func NewQuestionStore() *QuestionStore {
	return &QuestionStore{byID: make(map[string]models.Question)}
}

// Create adds q. It fails when the ID is empty or already present.
func (s *QuestionStore) Create(q models.Question) bool {
	if q.ID == "" {
		return false
	}
	if _, ok := s.byID[q.ID]; ok {
		return false
	}
	s.byID[q.ID] = q
	s.order = append(s.order, q.ID)
	return true
}

func (s *QuestionStore) Get(id string) (models.Question, bool) {
	q, ok := s.byID[id]
	return q, ok
}

// All returns every question in insertion order.
func (s *QuestionStore) All() []models.Question {
	out := make([]models.Question, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Update replaces an existing question; the ID cannot change.
func (s *QuestionStore) Update(q models.Question) bool {
	if _, ok := s.byID[q.ID]; !ok || q.ID == "" {
		return false
	}
	s.byID[q.ID] = q
	return true
}

func (s *QuestionStore) Delete(id string) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return true
}

func (s *QuestionStore) Exists(id string) bool {
	_, ok := s.byID[id]
	return ok
}

func (s *QuestionStore) Count() int { return len(s.byID) }

func (s *QuestionStore) Clear() {
	s.byID = make(map[string]models.Question)
	s.order = nil
}

// SortedByRecency returns all questions, newest first. Questions created at
// the same instant are ordered by most recent insertion.
func (s *QuestionStore) SortedByRecency() []models.Question {
	return s.filter(nil)
}

func (s *QuestionStore) Unresolved() []models.Question {
	return s.filter(func(q models.Question) bool { return !q.Resolved })
}

func (s *QuestionStore) Resolved() []models.Question {
	return s.filter(func(q models.Question) bool { return q.Resolved })
}

// Answered returns questions with at least one answer.
func (s *QuestionStore) Answered() []models.Question {
	return s.filter(func(q models.Question) bool { return q.TotalAnswers > 0 })
}

func (s *QuestionStore) Unanswered() []models.Question {
	return s.filter(func(q models.Question) bool { return q.TotalAnswers == 0 })
}

func (s *QuestionStore) ByAuthor(author string) []models.Question {
	if strings.TrimSpace(author) == "" {
		return []models.Question{}
	}
	return s.filter(func(q models.Question) bool { return q.Author == author })
}

func (s *QuestionStore) MyUnresolved(author string) []models.Question {
	if strings.TrimSpace(author) == "" {
		return []models.Question{}
	}
	return s.filter(func(q models.Question) bool { return q.Author == author && !q.Resolved })
}

// Search matches any whitespace-separated keyword against title and body,
// ignoring case. Blank or over-long queries match nothing.
func (s *QuestionStore) Search(query string) []models.Question {
	query = strings.TrimSpace(query)
	if query == "" || utf8.RuneCountInString(query) > models.MaxSearchQueryLength {
		return []models.Question{}
	}
	keywords := strings.Fields(strings.ToLower(query))
	return s.filter(func(q models.Question) bool {
		title := strings.ToLower(q.Title)
		body := strings.ToLower(q.Body)
		for _, k := range keywords {
			if strings.Contains(title, k) || strings.Contains(body, k) {
				return true
			}
		}
		return false
	})
}

// SearchWithFilter narrows Search results. Unknown filters behave like "all".
func (s *QuestionStore) SearchWithFilter(query, filter string) []models.Question {
	results := s.Search(query)
	keep := filterPredicate(filter)
	if keep == nil {
		return results
	}
	return slices.DeleteFunc(results, func(q models.Question) bool { return !keep(q) })
}

func filterPredicate(filter string) func(models.Question) bool {
	switch strings.ToLower(strings.TrimSpace(filter)) {
	case FilterUnresolved:
		return func(q models.Question) bool { return !q.Resolved }
	case FilterResolved:
		return func(q models.Question) bool { return q.Resolved }
	case FilterAnswered:
		return func(q models.Question) bool { return q.TotalAnswers > 0 }
	case FilterUnanswered:
		return func(q models.Question) bool { return q.TotalAnswers == 0 }
	default:
		return nil
	}
}

func (s *QuestionStore) filter(keep func(models.Question) bool) []models.Question {
	out := make([]models.Question, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		q := s.byID[s.order[i]]
		if keep == nil || keep(q) {
			out = append(out, q)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Question) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}
