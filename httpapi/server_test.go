package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"caseflow/auth"
)

// memUserRepo is an in-memory auth.Repository for handler tests.
type memUserRepo struct {
	users map[string]auth.User // keyed by email
	next  int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]auth.User)}
}

func (m *memUserRepo) CreateUser(_ context.Context, params auth.CreateUserParams) (auth.User, error) {
	if _, ok := m.users[params.Email]; ok {
		return auth.User{}, auth.ErrDuplicateEmail
	}
	m.next++
	u := auth.User{
		ID:           fmt.Sprintf("user-%d", m.next),
		Email:        params.Email,
		FullName:     params.FullName,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
	}
	m.users[params.Email] = u
	return u, nil
}

func (m *memUserRepo) GetUserByEmail(_ context.Context, email string) (auth.User, error) {
	u, ok := m.users[email]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}

func (m *memUserRepo) GetUserByID(_ context.Context, userID string) (auth.User, error) {
	for _, u := range m.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return auth.User{}, auth.ErrUserNotFound
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	authSvc := auth.NewService(newMemUserRepo(), "test-secret")
	srv := NewServer(Deps{Auth: authSvc})
	return srv.Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, router *gin.Engine, email, role string) string {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":"correct-horse","full_name":"Test User","role":%q}`, email, role)
	if w := doJSON(t, router, http.MethodPost, "/api/auth/register", body, ""); w.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", w.Code, w.Body.String())
	}
	login := fmt.Sprintf(`{"email":%q,"password":"correct-horse"}`, email)
	w := doJSON(t, router, http.MethodPost, "/api/auth/login", login, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a token in the login response")
	}
	return resp.Token
}

func TestRegister(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/auth/register",
		`{"email":"a@example.com","password":"long-enough","full_name":"Alice Adviser"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if user.Email != "a@example.com" || user.Role != "adviser" {
		t.Errorf("unexpected user response: %+v", user)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Error("response must not leak password material")
	}

	// duplicate email
	w = doJSON(t, router, http.MethodPost, "/api/auth/register",
		`{"email":"a@example.com","password":"long-enough","full_name":"Alice Again"}`, "")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", w.Code)
	}

	// weak password
	w = doJSON(t, router, http.MethodPost, "/api/auth/register",
		`{"email":"b@example.com","password":"short","full_name":"Bob"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for weak password, got %d", w.Code)
	}
}

func TestLogin(t *testing.T) {
	router := newTestRouter(t)
	registerAndLogin(t, router, "a@example.com", "adviser")

	w := doJSON(t, router, http.MethodPost, "/api/auth/login",
		`{"email":"a@example.com","password":"wrong-password"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong password, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/auth/login",
		`{"email":"nobody@example.com","password":"correct-horse"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown email, got %d", w.Code)
	}
}

func TestRequireAuth(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/cases", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/cases", "", "not-a-jwt")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a garbage token, got %d", w.Code)
	}
}

func TestSweepsRequireAdmin(t *testing.T) {
	router := newTestRouter(t)
	adviserToken := registerAndLogin(t, router, "adviser@example.com", "adviser")

	w := doJSON(t, router, http.MethodPost, "/api/sweeps/chase", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/sweeps/chase", "", adviserToken)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for adviser role, got %d", w.Code)
	}
}
