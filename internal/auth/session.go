package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/draftdesk/draftdesk/internal/apperr"
	"github.com/draftdesk/draftdesk/internal/logging"
	"github.com/draftdesk/draftdesk/internal/protocol"
)

// SessionAuth issues and refreshes session-domain tokens for the configured
// login credentials.
type SessionAuth struct {
	verifier     *Verifier
	secret       []byte
	username     string
	passwordHash []byte
	ttl          time.Duration
}

// NewSessionAuth creates a session authenticator. The password is bcrypt
// hashed once at startup so the plaintext never sticks around.
func NewSessionAuth(secret, username, password string, ttl time.Duration) (*SessionAuth, error) {
	s := &SessionAuth{
		verifier: NewVerifier(DomainSession, secret),
		secret:   []byte(secret),
		username: username,
		ttl:      ttl,
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		s.passwordHash = hash
	}
	return s, nil
}

// IssueToken signs a session-domain token for username.
func (s *SessionAuth) IssueToken(username string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"username": username,
		"iat":      now.Unix(),
		"exp":      now.Add(s.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// HandleLogin handles POST /api/v1/auth/login.
func (s *SessionAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req protocol.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		protocol.WriteFailure(w, http.StatusBadRequest, "", "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		protocol.WriteFailure(w, http.StatusBadRequest, "", "username and password required")
		return
	}

	if s.passwordHash == nil || req.Username != s.username ||
		bcrypt.CompareHashAndPassword(s.passwordHash, []byte(req.Password)) != nil {
		logging.Warn("login failed", zap.String("username", req.Username))
		protocol.WriteFailure(w, http.StatusUnauthorized, apperr.CodeInvalidCredential,
			"invalid username or password")
		return
	}

	tokenStr, err := s.IssueToken(req.Username)
	if err != nil {
		logging.Error("failed to sign session token", zap.Error(err))
		protocol.WriteFailure(w, http.StatusInternalServerError, "", "failed to generate token")
		return
	}

	logging.Info("login successful", zap.String("username", req.Username))
	protocol.WriteSuccess(w, protocol.LoginResponse{
		Token:     tokenStr,
		ExpiresIn: s.ttl.String(),
		Username:  req.Username,
	}, "login successful")
}

// HandleVerify handles POST /api/v1/auth/verify: reports whether a session
// token is currently valid.
func (s *SessionAuth) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req protocol.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		protocol.WriteFailure(w, http.StatusBadRequest, "", "token required")
		return
	}

	claims, err := s.verifier.Verify(req.Token)
	if err != nil {
		protocol.WriteError(w, err)
		return
	}

	username, _ := claims["username"].(string)
	protocol.WriteSuccess(w, protocol.VerifyResponse{
		Valid:    true,
		Username: username,
	}, "token valid")
}

// HandleRefresh handles POST /api/v1/auth/refresh: exchanges a valid
// session token for a fresh one.
func (s *SessionAuth) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req protocol.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		protocol.WriteFailure(w, http.StatusBadRequest, "", "token required")
		return
	}

	claims, err := s.verifier.Verify(req.Token)
	if err != nil {
		protocol.WriteError(w, err)
		return
	}

	username, _ := claims["username"].(string)
	tokenStr, err := s.IssueToken(username)
	if err != nil {
		logging.Error("failed to sign session token", zap.Error(err))
		protocol.WriteFailure(w, http.StatusInternalServerError, "", "failed to generate token")
		return
	}

	protocol.WriteSuccess(w, protocol.LoginResponse{
		Token:     tokenStr,
		ExpiresIn: s.ttl.String(),
		Username:  username,
	}, "token refreshed")
}

// Verifier returns the session-domain verifier.
func (s *SessionAuth) Verifier() *Verifier {
	return s.verifier
}
