package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/qaforum/internal/identity"
)

// UserHandler serves the signed-in user's account and the admin endpoints.
type UserHandler struct {
	provider       *identity.Provider
	invitationDays int
}

func NewUserHandler(p *identity.Provider, invitationDays int) *UserHandler {
	if invitationDays <= 0 {
		invitationDays = 7
	}
	return &UserHandler{provider: p, invitationDays: invitationDays}
}

type passwordRequest struct {
	Password string `json:"password"`
}

type roleRequest struct {
	Role string `json:"role"`
}

type invitationRequest struct {
	DaysValid int `json:"days_valid"`
}

type otpResponse struct {
	Username        string `json:"username"`
	OneTimePassword string `json:"one_time_password"`
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.provider.GetUser(r.Context(), currentUser(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, u, http.StatusOK)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req identity.Profile
	if err := decodeBody(r, "profile", &req); err != nil {
		respondError(w, r, err)
		return
	}
	u, err := h.provider.UpdateUser(r.Context(), currentUser(r), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, u, http.StatusOK)
}

func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeBody(r, "password", &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.provider.UpdatePassword(r.Context(), currentUser(r), req.Password); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.provider.ListUsers(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, users, http.StatusOK)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.provider.DeleteUser(r.Context(), mux.Vars(r)["username"], currentUser(r)); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) AddRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeBody(r, "role", &req); err != nil {
		respondError(w, r, err)
		return
	}
	username := mux.Vars(r)["username"]
	if err := h.provider.AddRoleToUser(r.Context(), username, req.Role); err != nil {
		respondError(w, r, err)
		return
	}
	h.writeRoles(w, r, username)
}

func (h *UserHandler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.provider.RemoveRoleFromUser(r.Context(), vars["username"], vars["role"], currentUser(r)); err != nil {
		respondError(w, r, err)
		return
	}
	h.writeRoles(w, r, vars["username"])
}

func (h *UserHandler) writeRoles(w http.ResponseWriter, r *http.Request, username string) {
	roles, err := h.provider.GetUserRoles(r.Context(), username)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"username": username, "roles": roles}, http.StatusOK)
}

func (h *UserHandler) SetOneTimePassword(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	otp, err := h.provider.SetOneTimePassword(r.Context(), username)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, otpResponse{Username: username, OneTimePassword: otp}, http.StatusCreated)
}

// GenerateInvitation accepts an empty body, which uses the configured
// validity.
func (h *UserHandler) GenerateInvitation(w http.ResponseWriter, r *http.Request) {
	req := invitationRequest{DaysValid: h.invitationDays}
	if r.ContentLength != 0 {
		if err := decodeBody(r, "invitation", &req); err != nil {
			respondError(w, r, err)
			return
		}
		if req.DaysValid == 0 {
			req.DaysValid = h.invitationDays
		}
	}
	code, err := h.provider.GenerateInvitationCode(r.Context(), currentUser(r), req.DaysValid)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, code, http.StatusCreated)
}
