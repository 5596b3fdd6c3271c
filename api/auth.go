package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// =============================================================================
// AUTH - HS256 bearer tokens
// =============================================================================

type contextKey string

const userContextKey contextKey = "user"

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// Claims identify the caller. Name is used as the author of remarks.
type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies tokens. Issuing them belongs to the identity
// provider; IssueToken exists for tests and local tooling.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator returns nil for an empty secret, which disables auth.
func NewAuthenticator(secret string) *Authenticator {
	if secret == "" {
		return nil
	}
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) IssueToken(userID, name, role string, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID: userID,
		Name:   name,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}

var errMissingToken = errors.New("missing bearer token")

// anonymousAdmin is the caller when auth is disabled.
var anonymousAdmin = &Claims{UserID: "anonymous", Name: "Admin", Role: RoleAdmin}

// Middleware rejects requests without a valid bearer token. With a nil
// Authenticator every request runs as anonymousAdmin.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a == nil {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, anonymousAdmin)))
			return
		}

		tokenString := bearerToken(r)
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized", errMissingToken)
			return
		}
		claims, err := a.Validate(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized", err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, claims)))
	})
}

// RequireRole lets through only callers holding one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "Forbidden", nil)
		})
	}
}

func UserFromContext(ctx context.Context) *Claims {
	user, _ := ctx.Value(userContextKey).(*Claims)
	return user
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
