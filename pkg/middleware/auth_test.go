package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/brandcatalog/pkg/httputil"
	"github.com/utafrali/brandcatalog/pkg/logger"
)

const (
	testSecret = "test-secret-with-enough-entropy"
	testIssuer = "brand-catalog"
)

func adminToken(t *testing.T, role string, ttl time.Duration) string {
	t.Helper()
	tok, err := IssueToken(testSecret, testIssuer, "admin-1", role, ttl)
	require.NoError(t, err)
	return tok
}

func protected(roles ...string) http.Handler {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := ClaimsFromContext(r.Context())
		httputil.WriteData(w, http.StatusOK, map[string]string{
			"sub":     c.Subject,
			"subject": logger.SubjectFromContext(r.Context()),
		})
	})
	return Auth(NewJWTValidator(testSecret, testIssuer))(RequireRole(roles...)(h))
}

func call(h http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/brands", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func TestAuth_ValidAdmin(t *testing.T) {
	rec := call(protected("admin"), "Bearer "+adminToken(t, "admin", time.Hour))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"sub":"admin-1","subject":"admin-1"}}`, rec.Body.String())
}

func TestAuth_LowercaseScheme(t *testing.T) {
	rec := call(protected("admin"), "bearer "+adminToken(t, "admin", time.Hour))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_Rejections(t *testing.T) {
	wrongKey, err := IssueToken("other-secret", testIssuer, "x", "admin", time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := IssueToken(testSecret, "someone-else", "x", "admin", time.Hour)
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: testIssuer},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := map[string]string{
		"missing header":  "",
		"wrong scheme":    "Basic dXNlcjpwYXNz",
		"empty token":     "Bearer ",
		"garbage":         "Bearer not.a.jwt",
		"expired":         "Bearer " + adminToken(t, "admin", -time.Hour),
		"wrong key":       "Bearer " + wrongKey,
		"wrong issuer":    "Bearer " + wrongIssuer,
		"no expiry claim": "Bearer " + noExp,
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			rec := call(protected("admin"), header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
		})
	}
}

func TestAuth_RejectsOtherAlgorithms(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	rec := call(protected("admin"), "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole_Forbidden(t *testing.T) {
	rec := call(protected("admin"), "Bearer "+adminToken(t, "customer", time.Hour))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, rec))
}

func TestRequireRole_WithoutAuth(t *testing.T) {
	h := RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := call(h, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewJWTValidator_ErrInvalidToken(t *testing.T) {
	_, err := NewJWTValidator(testSecret, "")("nope")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
