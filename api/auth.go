package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/garnizeh/qaforum/internal/identity"
	"github.com/garnizeh/qaforum/pkg/models"
)

type AuthHandler struct {
	provider      *identity.Provider
	jwtSecret     string
	tokenDuration time.Duration
}

// NewAuthHandler creates a new AuthHandler with required dependencies.
func NewAuthHandler(p *identity.Provider, jwtSecret string, tokenDuration time.Duration) *AuthHandler {
	return &AuthHandler{provider: p, jwtSecret: jwtSecret, tokenDuration: tokenDuration}
}

type signupRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	InvitationCode string `json:"invitation_code"`
}

type signinRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type authResponse struct {
	Token              string      `json:"token"`
	ExpiresAt          time.Time   `json:"expires_at"`
	MustChangePassword bool        `json:"must_change_password"`
	User               models.User `json:"user"`
}

// Signup redeems an invitation code. Without a code it bootstraps the first
// account as admin, which fails once any account exists.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeBody(r, "signup", &req); err != nil {
		respondError(w, r, err)
		return
	}

	reg := identity.Registration{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	}

	var (
		u   models.User
		err error
	)
	if code := strings.TrimSpace(req.InvitationCode); code != "" {
		u, err = h.provider.RegisterWithInvitation(r.Context(), code, reg)
	} else {
		u, err = h.provider.Bootstrap(r.Context(), reg)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	h.respondWithToken(w, r, u, http.StatusCreated)
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := decodeBody(r, "signin", &req); err != nil {
		respondError(w, r, err)
		return
	}

	u, err := h.provider.Authenticate(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		logger.Info("sign-in refused", slog.String("username", req.Username))
		respondError(w, r, err)
		return
	}

	h.respondWithToken(w, r, u, http.StatusOK)
}

func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	// For stateless JWT, signout is client-side (just delete token)
	writeJSON(w, map[string]string{"message": "signed out"}, http.StatusOK)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, u models.User, status int) {
	exp := time.Now().Add(h.tokenDuration)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   u.Username,
		"roles": u.Roles,
		"iat":   time.Now().Unix(),
		"exp":   exp.Unix(),
	})
	tokenStr, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, authResponse{
		Token:              tokenStr,
		ExpiresAt:          exp.UTC().Truncate(time.Second),
		MustChangePassword: u.MustChangePassword,
		User:               u,
	}, status)
}
