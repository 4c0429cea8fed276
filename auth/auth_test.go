package auth

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc, err := NewService(db, "test-secret")
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	return svc
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if err := svc.Register(ctx, "alice", "hunter2"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	if err := svc.Register(ctx, "alice", "hunter2"); err != ErrUserExists {
		t.Errorf("duplicate Register() error = %v; want ErrUserExists", err)
	}

	token, err := svc.Login(ctx, "alice", "hunter2")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if token == "" {
		t.Fatal("Login() returned empty token")
	}

	claims, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken() error: %v", err)
	}
	if claims.Username != "alice" {
		t.Errorf("claims.Username = %q; want %q", claims.Username, "alice")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if err := svc.Register(ctx, "alice", "hunter2"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	if _, err := svc.Login(ctx, "alice", "wrong"); err != ErrInvalidCreds {
		t.Errorf("Login() with bad password error = %v; want ErrInvalidCreds", err)
	}
	if _, err := svc.Login(ctx, "nobody", "hunter2"); err != ErrInvalidCreds {
		t.Errorf("Login() with unknown user error = %v; want ErrInvalidCreds", err)
	}
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if err := svc.Register(ctx, "alice", "hunter2"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	token, err := svc.Login(ctx, "alice", "hunter2")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	other := newTestService(t)
	other.secret = []byte("different-secret")
	if _, err := other.VerifyToken(token); err != ErrInvalidToken {
		t.Errorf("VerifyToken() error = %v; want ErrInvalidToken", err)
	}
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.VerifyToken("not-a-jwt"); err != ErrInvalidToken {
		t.Errorf("VerifyToken() error = %v; want ErrInvalidToken", err)
	}
}

func TestEnsureDefaultUser(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if err := svc.EnsureDefaultUser(ctx); err != nil {
		t.Fatalf("EnsureDefaultUser() error: %v", err)
	}
	if _, err := svc.Login(ctx, "admin", "admin"); err != nil {
		t.Errorf("default admin login failed: %v", err)
	}

	// A second call must not create another admin.
	if err := svc.EnsureDefaultUser(ctx); err != nil {
		t.Fatalf("EnsureDefaultUser() second call error: %v", err)
	}
	if err := svc.Register(ctx, "admin", "other"); err != ErrUserExists {
		t.Errorf("Register() error = %v; want ErrUserExists", err)
	}
}

func TestMiddleware(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	if err := svc.Register(ctx, "alice", "hunter2"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	token, err := svc.Login(ctx, "alice", "hunter2")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		authHeader string
		cookie     string
		wantStatus int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"bad token", "Bearer garbage", "", http.StatusUnauthorized},
		{"valid header", "Bearer " + token, "", http.StatusNoContent},
		{"valid cookie", "", token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "token", Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d; want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
