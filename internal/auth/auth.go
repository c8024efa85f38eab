// Package auth provides JWT bearer authorization for the gateway's two
// trust domains.
//
// The session domain covers general login tokens; the render domain covers
// tokens minted by the render-grant issuer for document-server pulls. Each
// domain has its own secret and tokens are never cross-accepted: a grant
// authorizing a single renderer pull can never be replayed as a user
// session, and vice versa.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/draftdesk/draftdesk/internal/apperr"
	"github.com/draftdesk/draftdesk/internal/metrics"
	"github.com/draftdesk/draftdesk/internal/protocol"
)

// Domain names a trust domain.
type Domain string

const (
	DomainSession Domain = "session"
	DomainRender  Domain = "render"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the decoded credential attached to an authorized request.
type Identity struct {
	Domain Domain
	Claims jwt.MapClaims
}

// Verifier validates bearer credentials for one trust domain.
type Verifier struct {
	domain Domain
	secret []byte
}

// NewVerifier creates a verifier for a domain.
func NewVerifier(domain Domain, secret string) *Verifier {
	return &Verifier{domain: domain, secret: []byte(secret)}
}

// Verify checks a credential's signature and expiry, returning its claims.
// Failures carry MissingCredential, InvalidCredential or CredentialExpired
// codes.
func (v *Verifier) Verify(tokenStr string) (jwt.MapClaims, error) {
	if tokenStr == "" {
		return nil, apperr.New(apperr.CodeMissingCredential, "no credential supplied")
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Wrap(apperr.CodeCredentialExpired, "credential expired", err)
		}
		return nil, apperr.Wrap(apperr.CodeInvalidCredential, "invalid credential", err)
	}
	if !token.Valid {
		return nil, apperr.New(apperr.CodeInvalidCredential, "invalid credential")
	}
	return claims, nil
}

// Middleware returns HTTP middleware that authorizes requests against this
// verifier's domain. It always runs before any storage or bridge handler:
// rejected requests never reach them.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := v.Verify(ExtractToken(r))
		if err != nil {
			metrics.RecordAuthAttempt(string(v.domain), false)
			protocol.WriteError(w, err)
			return
		}

		metrics.RecordAuthAttempt(string(v.domain), true)
		identity := &Identity{Domain: v.domain, Claims: claims}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// GetIdentity extracts the identity from the request context.
func GetIdentity(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityContextKey).(*Identity)
	return identity
}

// WithIdentity injects an identity into a context.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// Username returns the username claim of the request's identity, or the
// empty string when the identity carries none.
func Username(ctx context.Context) string {
	identity := GetIdentity(ctx)
	if identity == nil {
		return ""
	}
	name, _ := identity.Claims["username"].(string)
	return name
}

// ExtractToken pulls the credential from the Authorization header or the
// token query parameter. The header wins when both are present.
func ExtractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
