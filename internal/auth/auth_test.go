package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/draftdesk/draftdesk/internal/apperr"
)

func signToken(t *testing.T, secret string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"username": "tester",
		"iat":      time.Now().Unix(),
		"exp":      time.Now().Add(ttl).Unix(),
	}
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return tokenStr
}

func TestVerifyValidToken(t *testing.T) {
	v := NewVerifier(DomainSession, "session-secret")
	claims, err := v.Verify(signToken(t, "session-secret", time.Hour))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims["username"] != "tester" {
		t.Errorf("username claim = %v, want tester", claims["username"])
	}
}

func TestVerifyDomainIsolation(t *testing.T) {
	session := NewVerifier(DomainSession, "session-secret")
	render := NewVerifier(DomainRender, "render-secret")

	sessionToken := signToken(t, "session-secret", time.Hour)
	renderToken := signToken(t, "render-secret", time.Hour)

	if _, err := render.Verify(sessionToken); !apperr.IsCode(err, apperr.CodeInvalidCredential) {
		t.Errorf("render verifier accepted session token: %v", err)
	}
	if _, err := session.Verify(renderToken); !apperr.IsCode(err, apperr.CodeInvalidCredential) {
		t.Errorf("session verifier accepted render token: %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	v := NewVerifier(DomainSession, "session-secret")
	_, err := v.Verify(signToken(t, "session-secret", -time.Minute))
	if !apperr.IsCode(err, apperr.CodeCredentialExpired) {
		t.Errorf("expected CREDENTIAL_EXPIRED, got %v", err)
	}
}

func TestVerifyMissing(t *testing.T) {
	v := NewVerifier(DomainSession, "session-secret")
	_, err := v.Verify("")
	if !apperr.IsCode(err, apperr.CodeMissingCredential) {
		t.Errorf("expected MISSING_CREDENTIAL, got %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	v := NewVerifier(DomainSession, "session-secret")
	_, err := v.Verify("not-a-jwt")
	if !apperr.IsCode(err, apperr.CodeInvalidCredential) {
		t.Errorf("expected INVALID_CREDENTIAL, got %v", err)
	}
}

func TestExtractTokenHeaderWinsOverQuery(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/attachments/abc?token=query-token", nil)
	r.Header.Set("Authorization", "Bearer header-token")
	if got := ExtractToken(r); got != "header-token" {
		t.Errorf("ExtractToken = %q, want header-token", got)
	}

	r = httptest.NewRequest("GET", "/api/v1/attachments/abc?token=query-token", nil)
	if got := ExtractToken(r); got != "query-token" {
		t.Errorf("ExtractToken = %q, want query-token", got)
	}
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier(DomainSession, "session-secret")
	var seen *Identity
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetIdentity(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+signToken(t, "session-secret", time.Hour))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if seen == nil || seen.Domain != DomainSession {
		t.Fatalf("identity not attached: %+v", seen)
	}

	r = httptest.NewRequest("GET", "/", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", w.Code)
	}
}

func TestUsernameFromContext(t *testing.T) {
	ctx := WithIdentity(context.Background(), &Identity{
		Domain: DomainSession,
		Claims: jwt.MapClaims{"username": "admin"},
	})
	if got := Username(ctx); got != "admin" {
		t.Errorf("Username = %q, want admin", got)
	}
	if got := Username(context.Background()); got != "" {
		t.Errorf("Username of bare context = %q, want empty", got)
	}
}

func newSessionAuth(t *testing.T) *SessionAuth {
	t.Helper()
	s, err := NewSessionAuth("session-secret", "admin", "hunter2", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionAuth: %v", err)
	}
	return s
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling body: %v", err)
	}
	r := httptest.NewRequest("POST", "/", bytes.NewReader(buf))
	w := httptest.NewRecorder()
	handler(w, r)
	return w
}

func TestHandleLogin(t *testing.T) {
	s := newSessionAuth(t)

	w := postJSON(t, s.HandleLogin, map[string]string{"username": "admin", "password": "hunter2"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}
	if _, err := s.Verifier().Verify(resp.Data.Token); err != nil {
		t.Errorf("issued token does not verify: %v", err)
	}

	w = postJSON(t, s.HandleLogin, map[string]string{"username": "admin", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad password status = %d, want 401", w.Code)
	}
	w = postJSON(t, s.HandleLogin, map[string]string{"username": "intruder", "password": "hunter2"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad username status = %d, want 401", w.Code)
	}
}

func TestHandleVerifyAndRefresh(t *testing.T) {
	s := newSessionAuth(t)
	tokenStr, err := s.IssueToken("admin")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	w := postJSON(t, s.HandleVerify, map[string]string{"token": tokenStr})
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d, body %s", w.Code, w.Body.String())
	}

	w = postJSON(t, s.HandleRefresh, map[string]string{"token": tokenStr})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data struct {
			Token    string `json:"token"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding refresh response: %v", err)
	}
	if resp.Data.Username != "admin" {
		t.Errorf("refreshed username = %q, want admin", resp.Data.Username)
	}
	if _, err := s.Verifier().Verify(resp.Data.Token); err != nil {
		t.Errorf("refreshed token does not verify: %v", err)
	}

	w = postJSON(t, s.HandleVerify, map[string]string{"token": "garbage"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("garbage verify status = %d, want 401", w.Code)
	}
}
