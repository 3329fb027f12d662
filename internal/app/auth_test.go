package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func signed(t *testing.T, method jwt.SigningMethod, secret string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(method, jwt.MapClaims{"sub": "provider", "exp": exp.Unix()})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func authRouter(cfg AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/p", ProviderAuth(cfg), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestProviderAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := AuthConfig{
		StaticTokens:  []string{"static-1"},
		JWTSecret:     "jwt-secret",
		BasicUsername: "provider",
		BasicPassword: "plain-pass",
	}
	hashed := AuthConfig{BasicUsername: "provider", BasicPasswordHash: string(hash)}

	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name   string
		cfg    AuthConfig
		header func(r *http.Request)
		want   int
	}{
		{"no header", cfg, func(r *http.Request) {}, http.StatusUnauthorized},
		{"static token", cfg, func(r *http.Request) { r.Header.Set("Authorization", "Bearer static-1") }, http.StatusNoContent},
		{"lowercase scheme", cfg, func(r *http.Request) { r.Header.Set("Authorization", "bearer static-1") }, http.StatusNoContent},
		{"unknown token", cfg, func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"bad format", cfg, func(r *http.Request) { r.Header.Set("Authorization", "Token static-1") }, http.StatusUnauthorized},
		{"valid jwt", cfg, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed(t, jwt.SigningMethodHS256, "jwt-secret", future))
		}, http.StatusNoContent},
		{"expired jwt", cfg, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed(t, jwt.SigningMethodHS256, "jwt-secret", past))
		}, http.StatusUnauthorized},
		{"jwt wrong secret", cfg, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed(t, jwt.SigningMethodHS256, "other", future))
		}, http.StatusUnauthorized},
		{"jwt wrong alg", cfg, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed(t, jwt.SigningMethodHS512, "jwt-secret", future))
		}, http.StatusUnauthorized},
		{"basic plaintext", cfg, func(r *http.Request) { r.SetBasicAuth("provider", "plain-pass") }, http.StatusNoContent},
		{"basic wrong password", cfg, func(r *http.Request) { r.SetBasicAuth("provider", "nope") }, http.StatusUnauthorized},
		{"basic wrong user", cfg, func(r *http.Request) { r.SetBasicAuth("admin", "plain-pass") }, http.StatusUnauthorized},
		{"basic bcrypt", hashed, func(r *http.Request) { r.SetBasicAuth("provider", "hunter2") }, http.StatusNoContent},
		{"basic bcrypt mismatch", hashed, func(r *http.Request) { r.SetBasicAuth("provider", "hunter3") }, http.StatusUnauthorized},
		{"nothing configured", AuthConfig{}, func(r *http.Request) { r.Header.Set("Authorization", "Bearer anything") }, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := authRouter(tt.cfg)
			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			tt.header(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
