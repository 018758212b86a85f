package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/garnizeh/qaforum/api"
	"github.com/garnizeh/qaforum/internal/identity"
	"github.com/garnizeh/qaforum/pkg/models"
)

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	api.SetLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { api.SetLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))) })

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	handler := api.LoggingMiddleware(next)
	req := httptest.NewRequest(http.MethodPost, "/v1/questions", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)
	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusTeapot {
		t.Fatalf("expected status 418, got %d", res.StatusCode)
	}
	var entry struct {
		Msg    string `json:"msg"`
		Method string `json:"method"`
		Path   string `json:"path"`
		Status int    `json:"status"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry.Msg != "request" || entry.Method != http.MethodPost || entry.Path != "/v1/questions" || entry.Status != http.StatusTeapot {
		t.Fatalf("unexpected log entry %+v", entry)
	}
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := api.CORSMiddleware(next)

	// OPTIONS should return 204 and not call next
	reqOpt := httptest.NewRequest(http.MethodOptions, "/cors", nil)
	wOpt := httptest.NewRecorder()
	handler.ServeHTTP(wOpt, reqOpt)
	resOpt := wOpt.Result()
	defer resOpt.Body.Close()
	if resOpt.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for OPTIONS, got %d", resOpt.StatusCode)
	}
	if got := resOpt.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected CORS header set, got %q", got)
	}

	// GET should pass through and set headers
	reqGet := httptest.NewRequest(http.MethodGet, "/cors", nil)
	wGet := httptest.NewRecorder()
	handler.ServeHTTP(wGet, reqGet)
	resGet := wGet.Result()
	defer resGet.Body.Close()
	if resGet.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for GET, got %d", resGet.StatusCode)
	}
	if got := resGet.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(got, "GET") {
		t.Fatalf("expected Allow-Methods to include GET, got %q", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	// handler that panics
	pan := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := api.RecoveryMiddleware(pan)
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	res := w.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 from panic recovery, got %d", res.StatusCode)
	}
	b, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(b), "internal server error") {
		t.Fatalf("unexpected body for recovery: %s", string(b))
	}

	// normal handler should pass through
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler2 := api.RecoveryMiddleware(ok)
	w2 := httptest.NewRecorder()
	handler2.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w2.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for normal path, got %d", w2.Result().StatusCode)
	}
}

func TestJWTAuthMiddlewareWithSecret(t *testing.T) {
	secret := "s3cr3t"
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mw := api.JWTAuthMiddlewareWithSecret(secret)
	handler := mw(next)

	cases := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{name: "MissingHeader", authHeader: "", wantStatus: http.StatusUnauthorized},
		{name: "EmptyBearer", authHeader: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "BadToken", authHeader: "Bearer bad.token.here", wantStatus: http.StatusUnauthorized},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/jwt", nil)
			if c.authHeader != "" {
				req.Header.Set("Authorization", c.authHeader)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Result().StatusCode != c.wantStatus {
				t.Fatalf("%s: want %d got %d", c.name, c.wantStatus, w.Result().StatusCode)
			}
		})
	}

	sign := func(claims jwt.MapClaims, key string) string {
		tokStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		return tokStr
	}
	exp := time.Now().Add(time.Hour).Unix()

	rejected := []struct {
		name  string
		token string
	}{
		{"NoSubject", sign(jwt.MapClaims{"exp": exp}, secret)},
		{"NoExpiry", sign(jwt.MapClaims{"sub": "alice"}, secret)},
		{"Expired", sign(jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(-time.Minute).Unix()}, secret)},
		{"WrongSecret", sign(jwt.MapClaims{"sub": "alice", "exp": exp}, "other")},
	}
	for _, c := range rejected {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/jwt", nil)
			req.Header.Set("Authorization", "Bearer "+c.token)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Result().StatusCode != http.StatusUnauthorized {
				t.Fatalf("%s: want 401 got %d", c.name, w.Result().StatusCode)
			}
		})
	}

	// now test valid token
	tokStr := sign(jwt.MapClaims{"sub": "alice", "roles": []string{"student", "admin"}, "exp": exp}, secret)
	var gotUser string
	var gotRoles []string
	capture := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = r.Context().Value(api.CtxUsername).(string)
		gotRoles, _ = r.Context().Value(api.CtxRoles).([]string)
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/jwt", nil)
	req.Header.Set("Authorization", "Bearer "+tokStr)
	w := httptest.NewRecorder()
	capture.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("valid token: expected 200 got %d", w.Result().StatusCode)
	}
	if gotUser != "alice" || len(gotRoles) != 2 || gotRoles[1] != "admin" {
		t.Fatalf("claims not propagated: user=%q roles=%v", gotUser, gotRoles)
	}
}

func TestRequireRole(t *testing.T) {
	secret := "s3cr3t"
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := api.JWTAuthMiddlewareWithSecret(secret)(api.RequireRole("admin")(ok))

	cases := []struct {
		name       string
		roles      []string
		wantStatus int
	}{
		{"Admin", []string{"admin"}, http.StatusOK},
		{"Student", []string{"student"}, http.StatusForbidden},
		{"NoRoles", nil, http.StatusForbidden},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			claims := jwt.MapClaims{"sub": "u", "exp": time.Now().Add(time.Hour).Unix()}
			if c.roles != nil {
				claims["roles"] = c.roles
			}
			tokStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
			if err != nil {
				t.Fatalf("sign: %v", err)
			}
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+tokStr)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Result().StatusCode != c.wantStatus {
				t.Fatalf("want %d got %d", c.wantStatus, w.Result().StatusCode)
			}
		})
	}
}

func TestTimeoutMiddleware(t *testing.T) {
	var deadlineSet bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, deadlineSet = r.Context().Deadline()
		w.WriteHeader(http.StatusOK)
	})
	api.TimeoutMiddleware(time.Second)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !deadlineSet {
		t.Fatalf("expected request context to carry a deadline")
	}
}

type accountsFunc func(ctx context.Context, username string) (models.User, error)

func (f accountsFunc) GetUser(ctx context.Context, username string) (models.User, error) {
	return f(ctx, username)
}

func TestAccountMiddleware(t *testing.T) {
	secret := "s3cr3t"
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	cases := []struct {
		name       string
		lookup     accountsFunc
		wantStatus int
	}{
		{"CurrentAdmin", func(context.Context, string) (models.User, error) {
			return models.User{Username: "u", Roles: []string{"admin"}}, nil
		}, http.StatusOK},
		{"RoleRevoked", func(context.Context, string) (models.User, error) {
			return models.User{Username: "u", Roles: []string{"student"}}, nil
		}, http.StatusForbidden},
		{"AccountDeleted", func(_ context.Context, name string) (models.User, error) {
			return models.User{}, fmt.Errorf("%w: %s", identity.ErrUserNotFound, name)
		}, http.StatusUnauthorized},
		{"StoreDown", func(context.Context, string) (models.User, error) {
			return models.User{}, errors.New("database is locked")
		}, http.StatusInternalServerError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			handler := api.JWTAuthMiddlewareWithSecret(secret)(api.AccountMiddleware(c.lookup)(api.RequireRole("admin")(ok)))
			tokStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"sub":   "u",
				"roles": []string{"admin"},
				"exp":   time.Now().Add(time.Hour).Unix(),
			}).SignedString([]byte(secret))
			if err != nil {
				t.Fatalf("sign: %v", err)
			}
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+tokStr)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Result().StatusCode != c.wantStatus {
				t.Fatalf("want %d got %d", c.wantStatus, w.Result().StatusCode)
			}
		})
	}
}
