package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/utafrali/brandcatalog/pkg/errors"
	"github.com/utafrali/brandcatalog/pkg/httputil"
	"github.com/utafrali/brandcatalog/pkg/logger"
)

type claimsKey struct{}

// Claims are the JWT claims the catalog reads.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenValidator parses and verifies a bearer token.
type TokenValidator func(token string) (*Claims, error)

// ErrInvalidToken is returned by validators for any unusable token.
var ErrInvalidToken = errors.New("invalid or expired token")

// NewJWTValidator returns a TokenValidator for HS256 tokens signed with
// secret. A non-empty issuer must match the iss claim.
func NewJWTValidator(secret, issuer string) TokenValidator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)
	key := []byte(secret)

	return func(raw string) (*Claims, error) {
		claims := &Claims{}
		tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return key, nil
		})
		if err != nil || !tok.Valid {
			return nil, errors.Join(ErrInvalidToken, err)
		}
		return claims, nil
	}
}

// IssueToken signs an HS256 token. Used by tests and the local admin tooling.
func IssueToken(secret, issuer, subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Auth requires a valid "Authorization: Bearer <token>" header and stores the
// claims in the request context.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
			if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
				httputil.WriteError(w, r, apperrors.Unauthorized("missing or malformed authorization header"), nil)
				return
			}

			claims, err := validate(strings.TrimSpace(token))
			if err != nil {
				logger.FromContext(r.Context()).WarnContext(r.Context(), "rejected token",
					"path", r.URL.Path, "error", err.Error())
				httputil.WriteError(w, r, apperrors.Unauthorized(ErrInvalidToken.Error()), nil)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			ctx = logger.WithSubject(ctx, claims.Subject)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With("subject", claims.Subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose claims carry none of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := ClaimsFromContext(r.Context())
			if c == nil {
				httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), nil)
				return
			}
			if _, ok := allowed[c.Role]; !ok {
				httputil.WriteError(w, r, apperrors.Forbidden("insufficient permissions"), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext returns the claims stored by Auth, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}
