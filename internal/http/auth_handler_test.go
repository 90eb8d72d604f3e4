package http

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestSignupAndLogin_Flow(t *testing.T) {
	ts, err := newTestServer()
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	w := doJSON(ts, http.MethodPost, "/v1/auth/signup", map[string]string{
		"email":    "User@Example.org",
		"password": "hunter2hunter2",
	}, "192.0.2.1:1000")
	if w.Code != http.StatusOK {
		t.Fatalf("signup status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Session struct {
			AccessToken string `json:"access_token"`
			UserID      string `json:"user_id"`
		} `json:"session"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Session.AccessToken == "" {
		t.Fatalf("signup should issue a session")
	}

	// El identificador se normaliza: el login con otra caja funciona.
	w = doJSON(ts, http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    "user@example.org",
		"password": "hunter2hunter2",
	}, "192.0.2.1:1000")
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(ts, http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    "user@example.org",
		"password": "wrong-password",
	}, "192.0.2.1:1000")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d, want 401", w.Code)
	}
	var errResp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &errResp)
	if errResp["error"] != "invalid credentials" {
		t.Fatalf("credential errors must stay generic: %v", errResp)
	}
}

func TestSignup_WeakPasswordRejected(t *testing.T) {
	ts, err := newTestServer()
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	w := doJSON(ts, http.MethodPost, "/v1/auth/signup", map[string]string{
		"email":    "short@example.org",
		"password": "short",
	}, "192.0.2.2:1000")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestResetPassword_UniformResponse(t *testing.T) {
	ts, err := newTestServer()
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	existing := doJSON(ts, http.MethodPost, "/v1/auth/signup", map[string]string{
		"email":    "real@example.org",
		"password": "hunter2hunter2",
	}, "192.0.2.3:1000")
	if existing.Code != http.StatusOK {
		t.Fatalf("signup failed: %d", existing.Code)
	}

	a := doJSON(ts, http.MethodPost, "/v1/auth/reset-password", map[string]string{"email": "real@example.org"}, "192.0.2.3:1000")
	b := doJSON(ts, http.MethodPost, "/v1/auth/reset-password", map[string]string{"email": "ghost@example.org"}, "192.0.2.4:1000")
	if a.Code != http.StatusOK || b.Code != http.StatusOK {
		t.Fatalf("status = %d/%d, want 200/200", a.Code, b.Code)
	}
	if a.Body.String() != b.Body.String() {
		t.Fatalf("reset-password must answer identically for existing and unknown accounts")
	}
}

// Independencia de límites: agotar signup (5/h) no toca el bucket de login.
func TestRateLimit_EndpointIndependenceOverHTTP(t *testing.T) {
	ts, err := newTestServer()
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	ip := "192.0.2.50:1000"

	for i := 0; i < 5; i++ {
		w := doJSON(ts, http.MethodPost, "/v1/auth/signup", map[string]string{
			"email":    "a@example.org",
			"password": "short", // 400, pero consume el bucket igual
		}, ip)
		if w.Code == http.StatusTooManyRequests {
			t.Fatalf("hit %d limited early", i+1)
		}
	}
	if w := doJSON(ts, http.MethodPost, "/v1/auth/signup", map[string]string{
		"email": "a@example.org", "password": "short",
	}, ip); w.Code != http.StatusTooManyRequests {
		t.Fatalf("sixth signup status = %d, want 429", w.Code)
	}

	// Login desde la misma IP sigue disponible (3/min).
	for i := 0; i < 3; i++ {
		w := doJSON(ts, http.MethodPost, "/v1/auth/login", map[string]string{
			"email": "a@example.org", "password": "whatever123",
		}, ip)
		if w.Code == http.StatusTooManyRequests {
			t.Fatalf("login hit %d should not be limited by signup's bucket", i+1)
		}
	}
}

func TestUpdatePassword_RequiresAuth(t *testing.T) {
	ts, err := newTestServer()
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	w := doJSON(ts, http.MethodPost, "/v1/auth/update-password", map[string]string{"password": "newpassword1"}, "192.0.2.5:1000")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	ts, err := newTestServer()
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if w := doJSON(ts, http.MethodPost, "/v1/auth/logout", nil, "192.0.2.6:1000"); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
