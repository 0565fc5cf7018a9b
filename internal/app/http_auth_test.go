package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"inkwell/api/internal/store"
)

// userStore backs the fake with a real user map so signup and signin
// round-trip through bcrypt.
func userBackedStore() *fakeStore {
	var mu sync.Mutex
	users := make(map[string]store.User)
	fs := &fakeStore{}
	fs.CreateUserFn = func(ctx context.Context, email, displayName, passwordHash string) (store.User, error) {
		mu.Lock()
		defer mu.Unlock()
		user := store.User{ID: "usr_" + email, Email: email, DisplayName: displayName, PasswordHash: passwordHash}
		users[email] = user
		return user, nil
	}
	fs.GetUserByEmailFn = func(ctx context.Context, email string) (store.User, error) {
		mu.Lock()
		defer mu.Unlock()
		user, ok := users[email]
		if !ok {
			return store.User{}, sql.ErrNoRows
		}
		return user, nil
	}
	fs.GetUserByIDFn = func(ctx context.Context, userID string) (store.User, error) {
		mu.Lock()
		defer mu.Unlock()
		for _, user := range users {
			if user.ID == userID {
				return user, nil
			}
		}
		return store.User{}, sql.ErrNoRows
	}
	return fs
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

func signUp(t *testing.T, handler http.Handler, email string) (accessToken, refreshToken string) {
	t.Helper()
	rec, body := doJSON(t, handler, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":       email,
		"password":    "correct-horse",
		"displayName": "Test Writer",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, body %s", rec.Code, rec.Body.String())
	}
	access, _ := body["accessToken"].(string)
	refresh, _ := body["refreshToken"].(string)
	if access == "" || refresh == "" {
		t.Fatalf("signup did not return tokens: %v", body)
	}
	return access, refresh
}

func TestHealth(t *testing.T) {
	svc, _ := newTestService(&fakeStore{})
	handler := NewHTTPServer(svc, "*").Handler()

	rec, body := doJSON(t, handler, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if body["ok"] != true {
		t.Errorf("health body = %v", body)
	}
}

func TestReadyReportsDatabaseDown(t *testing.T) {
	fs := &fakeStore{
		PingFn: func(ctx context.Context) error { return errors.New("connection refused") },
	}
	svc, _ := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()

	rec, body := doJSON(t, handler, http.MethodGet, "/api/ready", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready status = %d", rec.Code)
	}
	if body["status"] != "not_ready" {
		t.Errorf("ready body = %v", body)
	}
}

func TestSignUpAndSignIn(t *testing.T) {
	svc, _ := newTestService(userBackedStore())
	handler := NewHTTPServer(svc, "*").Handler()

	token, _ := signUp(t, handler, "mara@example.com")

	rec, _ := doJSON(t, handler, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":       "mara@example.com",
		"password":    "correct-horse",
		"displayName": "Test Writer",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate signup status = %d", rec.Code)
	}

	rec, _ = doJSON(t, handler, http.MethodPost, "/api/auth/signin", "", map[string]any{
		"email":    "mara@example.com",
		"password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password status = %d", rec.Code)
	}

	rec, body := doJSON(t, handler, http.MethodPost, "/api/auth/signin", "", map[string]any{
		"email":    "mara@example.com",
		"password": "correct-horse",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("signin status = %d, body %s", rec.Code, rec.Body.String())
	}
	if body["accessToken"] == "" {
		t.Errorf("signin returned no access token")
	}

	rec, body = doJSON(t, handler, http.MethodGet, "/api/session", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("session status = %d", rec.Code)
	}
	if body["authenticated"] != true {
		t.Errorf("session body = %v", body)
	}
	if body["userName"] != "Test Writer" {
		t.Errorf("session userName = %v", body["userName"])
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, _ := newTestService(userBackedStore())
	handler := NewHTTPServer(svc, "*").Handler()

	_, refresh := signUp(t, handler, "mara@example.com")

	rec, body := doJSON(t, handler, http.MethodPost, "/api/session/refresh", "", map[string]any{
		"refreshToken": refresh,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", rec.Code, rec.Body.String())
	}
	next, _ := body["refreshToken"].(string)
	if next == "" || next == refresh {
		t.Fatalf("refresh token was not rotated")
	}

	rec, _ = doJSON(t, handler, http.MethodPost, "/api/session/refresh", "", map[string]any{
		"refreshToken": refresh,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("reused refresh token status = %d", rec.Code)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	svc, _ := newTestService(userBackedStore())
	handler := NewHTTPServer(svc, "*").Handler()

	_, refresh := signUp(t, handler, "mara@example.com")

	rec, _ := doJSON(t, handler, http.MethodPost, "/api/session/logout", "", map[string]any{
		"refreshToken": refresh,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}

	rec, _ = doJSON(t, handler, http.MethodPost, "/api/session/refresh", "", map[string]any{
		"refreshToken": refresh,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout status = %d", rec.Code)
	}
}

func TestRequiresBearerToken(t *testing.T) {
	svc, _ := newTestService(&fakeStore{})
	handler := NewHTTPServer(svc, "*").Handler()

	rec, body := doJSON(t, handler, http.MethodGet, "/api/projects", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["code"] != "UNAUTHORIZED" {
		t.Errorf("error code = %v", body["code"])
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/api/projects", "not-a-real-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d", rec.Code)
	}
}
