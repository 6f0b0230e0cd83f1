package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cafeline/api/internal/auth"
	"github.com/cafeline/api/internal/database"
	"github.com/cafeline/api/internal/enum"
	"github.com/cafeline/api/internal/handler"
	"github.com/cafeline/api/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

// --- Mock store ---

type mockAuthStore struct {
	userByEmail map[string]database.User
	userByID    map[uuid.UUID]database.User
}

func newMockStore() *mockAuthStore {
	return &mockAuthStore{
		userByEmail: make(map[string]database.User),
		userByID:    make(map[uuid.UUID]database.User),
	}
}

func (m *mockAuthStore) addUser(u database.User) {
	m.userByEmail[u.Email] = u
	m.userByID[u.ID] = u
}

func (m *mockAuthStore) GetUserByEmail(_ context.Context, email string) (database.User, error) {
	u, ok := m.userByEmail[email]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *mockAuthStore) GetUserByID(_ context.Context, id uuid.UUID) (database.User, error) {
	u, ok := m.userByID[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

// --- Helpers ---

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(h)
}

func makeTestUser(t *testing.T) database.User {
	t.Helper()
	return database.User{
		ID:           uuid.New(),
		CafeID:       pgtype.UUID{Bytes: testCafeID, Valid: true},
		Email:        "cashier@test.com",
		PasswordHash: hashPassword(t, "correct-password"),
		Name:         "Test Cashier",
		Role:         enum.RoleCashier,
		Status:       enum.UserStatusActive,
	}
}

func setupAuthRouter(store handler.AuthStore) *chi.Mux {
	h := handler.NewAuthHandler(store, testSecret, logger.Discard())
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

// --- Login tests ---

func TestLogin_ValidCredentials(t *testing.T) {
	store := newMockStore()
	store.addUser(makeTestUser(t))

	rr := postJSON(t, setupAuthRouter(store), "/auth/login", map[string]string{
		"email":    "cashier@test.com",
		"password": "correct-password",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["access_token"] == nil || resp["access_token"] == "" {
		t.Error("expected non-empty access_token")
	}
	if resp["refresh_token"] == nil || resp["refresh_token"] == "" {
		t.Error("expected non-empty refresh_token")
	}

	userResp, ok := resp["user"].(map[string]interface{})
	if !ok {
		t.Fatal("expected user object in response")
	}
	if userResp["email"] != "cashier@test.com" {
		t.Errorf("user email: got %v, want cashier@test.com", userResp["email"])
	}
	if userResp["role"] != "cashier" {
		t.Errorf("user role: got %v, want cashier", userResp["role"])
	}
	if userResp["cafe_id"] != testCafeID.String() {
		t.Errorf("user cafe: got %v, want %s", userResp["cafe_id"], testCafeID)
	}
}

func TestLogin_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"wrong password", map[string]string{"email": "cashier@test.com", "password": "wrong-password"}, http.StatusUnauthorized},
		{"unknown user", map[string]string{"email": "nobody@test.com", "password": "password"}, http.StatusUnauthorized},
		{"missing password", map[string]string{"email": "cashier@test.com"}, http.StatusBadRequest},
	}
	store := newMockStore()
	store.addUser(makeTestUser(t))
	router := setupAuthRouter(store)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(t, router, "/auth/login", tt.body)
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestLogin_InactiveUser(t *testing.T) {
	store := newMockStore()
	user := makeTestUser(t)
	user.Status = enum.UserStatusSuspended
	store.addUser(user)

	rr := postJSON(t, setupAuthRouter(store), "/auth/login", map[string]string{
		"email":    "cashier@test.com",
		"password": "correct-password",
	})
	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestLogin_PlatformUserHasNoCafe(t *testing.T) {
	store := newMockStore()
	user := makeTestUser(t)
	user.Email = "root@test.com"
	user.CafeID = pgtype.UUID{}
	user.Role = enum.RoleSuperAdmin
	store.addUser(user)

	rr := postJSON(t, setupAuthRouter(store), "/auth/login", map[string]string{
		"email":    "root@test.com",
		"password": "correct-password",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	userResp := resp["user"].(map[string]interface{})
	if userResp["cafe_id"] != nil {
		t.Errorf("cafe_id: got %v, want null", userResp["cafe_id"])
	}

	claims, err := auth.ValidateToken(testSecret, resp["access_token"].(string))
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if !claims.Identity().IsPlatform() {
		t.Error("expected platform identity")
	}
}

func TestLogin_ReturnsValidAccessToken(t *testing.T) {
	store := newMockStore()
	user := makeTestUser(t)
	store.addUser(user)

	rr := postJSON(t, setupAuthRouter(store), "/auth/login", map[string]string{
		"email":    "cashier@test.com",
		"password": "correct-password",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decodeResponse(t, rr)
	accessToken, ok := resp["access_token"].(string)
	if !ok || accessToken == "" {
		t.Fatal("expected non-empty access_token string")
	}
	claims, err := auth.ValidateToken(testSecret, accessToken)
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("user id: got %s, want %s", claims.UserID, user.ID)
	}
	if claims.CafeID != testCafeID {
		t.Errorf("cafe id: got %s, want %s", claims.CafeID, testCafeID)
	}
	if claims.Role != enum.RoleCashier {
		t.Errorf("role: got %s, want cashier", claims.Role)
	}
}

// --- Refresh tests ---

func TestRefresh_ValidToken(t *testing.T) {
	store := newMockStore()
	user := makeTestUser(t)
	store.addUser(user)

	refreshToken, err := auth.GenerateRefreshToken(testSecret, user.ID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	rr := postJSON(t, setupAuthRouter(store), "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["access_token"] == nil || resp["access_token"] == "" {
		t.Error("expected non-empty access_token")
	}
	if resp["refresh_token"] == nil || resp["refresh_token"] == "" {
		t.Error("expected non-empty refresh_token")
	}
}

func TestRefresh_PicksUpRoleChange(t *testing.T) {
	store := newMockStore()
	user := makeTestUser(t)
	store.addUser(user)
	refreshToken, err := auth.GenerateRefreshToken(testSecret, user.ID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	user.Role = enum.RoleManager
	store.addUser(user)

	rr := postJSON(t, setupAuthRouter(store), "/auth/refresh", map[string]string{"refresh_token": refreshToken})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	claims, err := auth.ValidateToken(testSecret, decodeResponse(t, rr)["access_token"].(string))
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if claims.Role != enum.RoleManager {
		t.Errorf("role: got %s, want manager", claims.Role)
	}
}

func TestRefresh_Rejections(t *testing.T) {
	store := newMockStore()
	user := makeTestUser(t)
	store.addUser(user)

	deleted, err := auth.GenerateRefreshToken(testSecret, uuid.New())
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}
	foreign, err := auth.GenerateRefreshToken("other-secret", user.ID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}
	access, err := auth.GenerateToken(testSecret, auth.Identity{UserID: user.ID, CafeID: testCafeID, Role: enum.RoleCashier, Status: enum.UserStatusActive})
	if err != nil {
		t.Fatalf("generate access token: %v", err)
	}

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"garbage", "not-a-valid-token", http.StatusUnauthorized},
		{"deleted user", deleted, http.StatusUnauthorized},
		{"wrong secret", foreign, http.StatusUnauthorized},
		{"access token", access, http.StatusUnauthorized},
		{"missing", "", http.StatusBadRequest},
	}
	router := setupAuthRouter(store)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(t, router, "/auth/refresh", map[string]string{"refresh_token": tt.token})
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}
