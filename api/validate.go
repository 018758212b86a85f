package api

import (
	"net/http"

	"github.com/garnizeh/qaforum/internal/validate"
)

// ValidateHandler gives live feedback while a user types a username or
// password.
type ValidateHandler struct{}

type usernameCheck struct {
	Valid      bool   `json:"valid"`
	Message    string `json:"message,omitempty"`
	ErrorIndex int    `json:"error_index"`
}

type passwordCheck struct {
	Valid bool `json:"valid"`
	validate.PasswordResult
}

func (h *ValidateHandler) Username(w http.ResponseWriter, r *http.Request) {
	res := validate.CheckUsernameDetail(r.URL.Query().Get("value"))
	writeJSON(w, usernameCheck{Valid: res.Valid(), Message: res.Message, ErrorIndex: res.ErrorIndex}, http.StatusOK)
}

func (h *ValidateHandler) Password(w http.ResponseWriter, r *http.Request) {
	res := validate.CheckPassword(r.URL.Query().Get("value"))
	writeJSON(w, passwordCheck{Valid: res.Valid(), PasswordResult: res}, http.StatusOK)
}
