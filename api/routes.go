package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/qaforum/internal/config"
	"github.com/garnizeh/qaforum/internal/forum"
	"github.com/garnizeh/qaforum/internal/identity"
	"github.com/garnizeh/qaforum/pkg/models"
)

func SetupRoutes(cfg *config.Config, version, buildTime string, svc *forum.Service, provider *identity.Provider) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(TimeoutMiddleware(cfg.APITimeout))

	// Create handlers
	systemHandler := &SystemHandler{}
	validateHandler := &ValidateHandler{}
	authHandler := NewAuthHandler(provider, cfg.JWTSecret, cfg.TokenDuration)
	userHandler := NewUserHandler(provider, cfg.Identity.InvitationDays)
	forumHandler := NewForumHandler(svc)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods(http.MethodGet)
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/auth/signup", authHandler.Signup).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/signin", authHandler.Signin).Methods(http.MethodPost)
	r.HandleFunc("/v1/validate/username", validateHandler.Username).Methods(http.MethodGet)
	r.HandleFunc("/v1/validate/password", validateHandler.Password).Methods(http.MethodGet)

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))
	apiV1.Use(AccountMiddleware(provider))

	// Auth endpoints
	authV1 := apiV1.PathPrefix("/auth").Subrouter()
	authV1.HandleFunc("/signout", authHandler.Signout).Methods(http.MethodPost)

	// Account endpoints
	apiV1.HandleFunc("/me", userHandler.Me).Methods(http.MethodGet)
	apiV1.HandleFunc("/me", userHandler.UpdateMe).Methods(http.MethodPut)
	apiV1.HandleFunc("/me/password", userHandler.UpdatePassword).Methods(http.MethodPut)

	// Admin endpoints
	admin := apiV1.PathPrefix("/admin").Subrouter()
	admin.Use(RequireRole(models.RoleAdmin))
	admin.HandleFunc("/users", userHandler.ListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users/{username}", userHandler.DeleteUser).Methods(http.MethodDelete)
	admin.HandleFunc("/users/{username}/roles", userHandler.AddRole).Methods(http.MethodPost)
	admin.HandleFunc("/users/{username}/roles/{role}", userHandler.RemoveRole).Methods(http.MethodDelete)
	admin.HandleFunc("/users/{username}/otp", userHandler.SetOneTimePassword).Methods(http.MethodPost)
	admin.HandleFunc("/invitations", userHandler.GenerateInvitation).Methods(http.MethodPost)

	// Forum endpoints
	apiV1.HandleFunc("/questions", forumHandler.ListQuestions).Methods(http.MethodGet)
	apiV1.HandleFunc("/questions", forumHandler.Ask).Methods(http.MethodPost)
	apiV1.HandleFunc("/questions/{id}", forumHandler.GetThread).Methods(http.MethodGet)
	apiV1.HandleFunc("/questions/{id}", forumHandler.EditQuestion).Methods(http.MethodPut)
	apiV1.HandleFunc("/questions/{id}", forumHandler.DeleteQuestion).Methods(http.MethodDelete)
	apiV1.HandleFunc("/questions/{id}/viewed", forumHandler.MarkViewed).Methods(http.MethodPost)
	apiV1.HandleFunc("/questions/{id}/resolve", forumHandler.Resolve).Methods(http.MethodPost)
	apiV1.HandleFunc("/questions/{id}/unresolve", forumHandler.Unresolve).Methods(http.MethodPost)
	apiV1.HandleFunc("/questions/{id}/answers", forumHandler.Answer).Methods(http.MethodPost)
	apiV1.HandleFunc("/answers", forumHandler.ListAnswers).Methods(http.MethodGet)
	apiV1.HandleFunc("/answers/{id}", forumHandler.EditAnswer).Methods(http.MethodPut)
	apiV1.HandleFunc("/answers/{id}", forumHandler.DeleteAnswer).Methods(http.MethodDelete)
	apiV1.HandleFunc("/answers/{id}/replies", forumHandler.ListReplies).Methods(http.MethodGet)
	apiV1.HandleFunc("/answers/{id}/replies", forumHandler.Reply).Methods(http.MethodPost)
	apiV1.HandleFunc("/replies/{id}", forumHandler.EditReply).Methods(http.MethodPut)
	apiV1.HandleFunc("/replies/{id}", forumHandler.DeleteReply).Methods(http.MethodDelete)
	apiV1.HandleFunc("/stats", forumHandler.Stats).Methods(http.MethodGet)

	return r
}
