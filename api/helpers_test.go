package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/qaforum/api"
	"github.com/garnizeh/qaforum/internal/config"
	"github.com/garnizeh/qaforum/internal/forum"
	"github.com/garnizeh/qaforum/internal/identity"
	"github.com/garnizeh/qaforum/pkg/models"
	"github.com/garnizeh/qaforum/pkg/repository/mock"
)

const (
	testSecret   = "testsecret"
	testPassword = "Passw0rd!"
)

type testEnv struct {
	router   *mux.Router
	mocks    *mock.Mocks
	provider *identity.Provider
	svc      *forum.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Addr:          ":0",
		JWTSecret:     testSecret,
		APITimeout:    5 * time.Second,
		DatabasePath:  ":memory:",
		TokenDuration: time.Hour,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	m := mock.NewMocks()
	p := identity.New(m.Users, m.Users, m.Invitations, nil, identity.WithHashCost(bcrypt.MinCost))
	svc := forum.NewService(forum.WithJournal(m.Forum))
	return &testEnv{
		router:   api.SetupRoutes(cfg, "test", "now", svc, p),
		mocks:    m,
		provider: p,
		svc:      svc,
	}
}

// addUser registers username with roles and returns a signed token for it.
func (e *testEnv) addUser(t *testing.T, username string, roles ...string) string {
	t.Helper()
	if _, err := e.provider.Register(context.Background(), identity.Registration{Username: username, Password: testPassword, Roles: roles}); err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	if len(roles) == 0 {
		roles = []string{models.RoleStudent}
	}
	return signToken(t, username, roles...)
}

func signToken(t *testing.T, username string, roles ...string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   username,
		"roles": roles,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

// do sends a request through the router. body may be nil, a string sent
// verbatim, or a value encoded as JSON.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	res := w.Result()
	defer res.Body.Close()
	data, _ := io.ReadAll(res.Body)
	return res.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("unmarshal %s: %v", string(data), err)
	}
	return v
}
