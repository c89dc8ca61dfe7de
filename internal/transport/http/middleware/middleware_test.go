package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bottlestore-service/internal/models"
	"bottlestore-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubTokens struct {
	claims *service.Claims
}

func (s stubTokens) SignAccess(ctx context.Context, sub uuid.UUID, role string, ttl time.Duration) (string, time.Time, error) {
	return "", time.Time{}, errors.New("not used")
}

func (s stubTokens) ParseAndValidateAccess(ctx context.Context, token string) (*service.Claims, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return s.claims, nil
}

func newEngine(tokens service.TokenProvider, mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()))
	chain := append(mw, func(c *gin.Context) {
		uid, ok := service.UserIDFromContext(c.Request.Context())
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, uid.String())
	})
	r.GET("/x", chain...)
	return r
}

func do(r http.Handler, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	uid := uuid.New()
	tokens := stubTokens{claims: &service.Claims{UserID: uid, Role: models.RoleCustomer}}
	r := newEngine(tokens, AuthRequired(tokens, zap.NewNop()))

	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer bad").Code)

	w := do(r, "Bearer good")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uid.String(), w.Body.String())
}

func TestOptionalAuth(t *testing.T) {
	uid := uuid.New()
	tokens := stubTokens{claims: &service.Claims{UserID: uid, Role: models.RoleCustomer}}
	r := newEngine(tokens, OptionalAuth(tokens, zap.NewNop()))

	w := do(r, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer bad").Code)
	assert.Equal(t, uid.String(), do(r, "Bearer good").Body.String())
}

func TestAdminOnly(t *testing.T) {
	customer := stubTokens{claims: &service.Claims{UserID: uuid.New(), Role: models.RoleCustomer}}
	r := newEngine(customer, AuthRequired(customer, zap.NewNop()), AdminOnly())
	assert.Equal(t, http.StatusForbidden, do(r, "Bearer good").Code)

	admin := stubTokens{claims: &service.Claims{UserID: uuid.New(), Role: models.RoleAdmin}}
	r = newEngine(admin, AuthRequired(admin, zap.NewNop()), AdminOnly())
	assert.Equal(t, http.StatusOK, do(r, "Bearer good").Code)
}

func TestExtractBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc.def.ghi":       "abc.def.ghi",
		"bearer abc.def.ghi":       "abc.def.ghi",
		`Bearer "abc.def.ghi"`:     "abc.def.ghi",
		"Bearer abc.def.ghi, more": "abc.def.ghi",
		"Bearer abc.def.ghi extra": "abc.def.ghi",
	}
	for in, want := range cases {
		got, ok := ExtractBearerToken(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ExtractBearerToken("Token abc")
	assert.False(t, ok)
	_, ok = ExtractBearerToken("")
	assert.False(t, ok)
}
