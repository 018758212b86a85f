package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/garnizeh/qaforum/internal/forum"
	"github.com/garnizeh/qaforum/pkg/models"
)

// ForumHandler exposes the question, answer and reply operations. The acting
// user is always the token subject.
type ForumHandler struct {
	svc *forum.Service
}

func NewForumHandler(svc *forum.Service) *ForumHandler {
	return &ForumHandler{svc: svc}
}

type questionRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type contentRequest struct {
	Content string `json:"content"`
}

type resolveRequest struct {
	AnswerID string `json:"answer_id"`
}

// ListQuestions serves the dashboard collections. Query parameters:
// q (search text), filter (all, resolved, unresolved, answered, unanswered),
// author, and mine=unresolved for the caller's open questions.
func (h *ForumHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	qv := r.URL.Query()
	query := strings.TrimSpace(qv.Get("q"))
	filter := qv.Get("filter")

	var out []models.Question
	switch {
	case qv.Get("mine") == forum.FilterUnresolved:
		out = h.svc.MyUnresolved(currentUser(r))
	case qv.Get("author") != "":
		out = h.svc.QuestionsByAuthor(qv.Get("author"))
	case query != "":
		if len([]rune(query)) > models.MaxSearchQueryLength {
			writeError(w, models.MsgLimitExceeded, http.StatusBadRequest)
			return
		}
		out = h.svc.Search(query, filter)
	default:
		out = h.svc.Questions(filter)
	}
	if out == nil {
		out = []models.Question{}
	}
	writeJSON(w, out, http.StatusOK)
}

func (h *ForumHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decodeBody(r, "question", &req); err != nil {
		respondError(w, r, err)
		return
	}
	q, err := h.svc.Ask(r.Context(), req.Title, req.Body, currentUser(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, q, http.StatusCreated)
}

func (h *ForumHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Thread(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, t, http.StatusOK)
}

func (h *ForumHandler) EditQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decodeBody(r, "question", &req); err != nil {
		respondError(w, r, err)
		return
	}
	q, err := h.svc.EditQuestion(r.Context(), mux.Vars(r)["id"], req.Title, req.Body, currentUser(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, q, http.StatusOK)
}

func (h *ForumHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.DeleteQuestion(r.Context(), mux.Vars(r)["id"], currentUser(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}

func (h *ForumHandler) MarkViewed(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.MarkViewed(r.Context(), mux.Vars(r)["id"], currentUser(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, q, http.StatusOK)
}

func (h *ForumHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeBody(r, "resolve", &req); err != nil {
		respondError(w, r, err)
		return
	}
	q, err := h.svc.Resolve(r.Context(), mux.Vars(r)["id"], req.AnswerID, currentUser(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, q, http.StatusOK)
}

func (h *ForumHandler) Unresolve(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.Unresolve(r.Context(), mux.Vars(r)["id"], currentUser(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, q, http.StatusOK)
}

func (h *ForumHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.Stats(), http.StatusOK)
}
