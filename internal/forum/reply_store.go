package forum

import (
	"slices"

	"github.com/garnizeh/qaforum/pkg/models"
)

// ReplyStore keeps replies by ID plus an answer → reply IDs index.
type ReplyStore struct {
	byID     map[string]models.Reply
	byAnswer map[string][]string
	order    []string
}

func NewReplyStore() *ReplyStore {
	return &ReplyStore{
		byID:     make(map[string]models.Reply),
		byAnswer: make(map[string][]string),
	}
}

func (s *ReplyStore) Create(r models.Reply) bool {
	if r.ID == "" {
		return false
	}
	if _, ok := s.byID[r.ID]; ok {
		return false
	}
	s.byID[r.ID] = r
	s.byAnswer[r.AnswerID] = append(s.byAnswer[r.AnswerID], r.ID)
	s.order = append(s.order, r.ID)
	return true
}

func (s *ReplyStore) Get(id string) (models.Reply, bool) {
	r, ok := s.byID[id]
	return r, ok
}

func (s *ReplyStore) All() []models.Reply {
	out := make([]models.Reply, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *ReplyStore) Update(r models.Reply) bool {
	old, ok := s.byID[r.ID]
	if !ok || r.ID == "" {
		return false
	}
	r.AnswerID = old.AnswerID
	s.byID[r.ID] = r
	return true
}

func (s *ReplyStore) Delete(id string) bool {
	r, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })

	ids := slices.DeleteFunc(s.byAnswer[r.AnswerID], func(v string) bool { return v == id })
	if len(ids) == 0 {
		delete(s.byAnswer, r.AnswerID)
	} else {
		s.byAnswer[r.AnswerID] = ids
	}
	return true
}

// ForAnswer returns the answer's replies in insertion order.
func (s *ReplyStore) ForAnswer(answerID string) []models.Reply {
	ids := s.byAnswer[answerID]
	out := make([]models.Reply, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.byID[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

func (s *ReplyStore) CountForAnswer(answerID string) int {
	return len(s.byAnswer[answerID])
}

func (s *ReplyStore) DeleteAllForAnswer(answerID string) int {
	ids := slices.Clone(s.byAnswer[answerID])
	n := 0
	for _, id := range ids {
		if s.Delete(id) {
			n++
		}
	}
	return n
}

func (s *ReplyStore) Exists(id string) bool {
	_, ok := s.byID[id]
	return ok
}

func (s *ReplyStore) Count() int { return len(s.byID) }

func (s *ReplyStore) Clear() {
	s.byID = make(map[string]models.Reply)
	s.byAnswer = make(map[string][]string)
	s.order = nil
}
