package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/qaforum/pkg/models"
)

func (h *ForumHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := decodeBody(r, "content", &req); err != nil {
		respondError(w, r, err)
		return
	}
	a, err := h.svc.Answer(r.Context(), mux.Vars(r)["id"], req.Content, currentUser(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, a, http.StatusCreated)
}

// ListAnswers returns the answers written by ?author=, defaulting to the
// caller.
func (h *ForumHandler) ListAnswers(w http.ResponseWriter, r *http.Request) {
	author := r.URL.Query().Get("author")
	if author == "" {
		author = currentUser(r)
	}
	out := h.svc.AnswersByAuthor(author)
	if out == nil {
		out = []models.Answer{}
	}
	writeJSON(w, out, http.StatusOK)
}

func (h *ForumHandler) EditAnswer(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := decodeBody(r, "content", &req); err != nil {
		respondError(w, r, err)
		return
	}
	a, err := h.svc.EditAnswer(r.Context(), mux.Vars(r)["id"], req.Content, currentUser(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, a, http.StatusOK)
}

func (h *ForumHandler) DeleteAnswer(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.DeleteAnswer(r.Context(), mux.Vars(r)["id"], currentUser(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}

func (h *ForumHandler) ListReplies(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.RepliesFor(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	if out == nil {
		out = []models.Reply{}
	}
	writeJSON(w, out, http.StatusOK)
}

func (h *ForumHandler) Reply(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := decodeBody(r, "content", &req); err != nil {
		respondError(w, r, err)
		return
	}
	rep, err := h.svc.Reply(r.Context(), mux.Vars(r)["id"], req.Content, currentUser(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, rep, http.StatusCreated)
}

func (h *ForumHandler) EditReply(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := decodeBody(r, "content", &req); err != nil {
		respondError(w, r, err)
		return
	}
	rep, err := h.svc.EditReply(r.Context(), mux.Vars(r)["id"], req.Content, currentUser(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, rep, http.StatusOK)
}

func (h *ForumHandler) DeleteReply(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteReply(r.Context(), mux.Vars(r)["id"], currentUser(r)); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
