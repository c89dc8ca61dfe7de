package middleware

import (
	"net/http"
	"strings"

	"bottlestore-service/internal/dto"
	"bottlestore-service/internal/models"
	"bottlestore-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys for user info
const (
	CtxUserID   = "user_id"
	CtxUserRole = "user_role"
)

// AuthRequired проверяет Bearer-токен и кладёт пользователя в gin- и request-контекст.
func AuthRequired(tokens service.TokenProvider, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewUnauthorizedError("missing Authorization header"))
			return
		}
		token, ok := ExtractBearerToken(authz)
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewUnauthorizedError("invalid Authorization header"))
			return
		}

		claims, err := tokens.ParseAndValidateAccess(c.Request.Context(), token)
		if err != nil {
			log.Warn("Токен отклонён", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewUnauthorizedError("invalid token"))
			return
		}

		attach(c, claims)
		c.Next()
	}
}

// OptionalAuth: без заголовка запрос идёт анонимно, с неверным токеном — 401.
func OptionalAuth(tokens service.TokenProvider, log *zap.Logger) gin.HandlerFunc {
	required := AuthRequired(tokens, log)
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		required(c)
	}
}

// AdminOnly ставится после AuthRequired.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(CtxUserRole)
		if role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewForbiddenError("admin role required"))
			return
		}
		c.Next()
	}
}

func attach(c *gin.Context, claims *service.Claims) {
	c.Set(CtxUserID, claims.UserID)
	c.Set(CtxUserRole, claims.Role)

	ctx := service.WithUserID(c.Request.Context(), claims.UserID)
	ctx = service.WithRole(ctx, claims.Role)
	c.Request = c.Request.WithContext(ctx)
}

// ExtractBearerToken извлекает токен из заголовка Authorization, устойчиво к лишним символам
// Примеры допустимых значений:
// - "Bearer abc.def.ghi"
// - "Bearer \"abc.def.ghi\""
// - "Bearer abc.def.ghi, extra"
func ExtractBearerToken(authz string) (string, bool) {
	if authz == "" {
		return "", false
	}
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	t := strings.Trim(strings.TrimSpace(parts[1]), " \"'")
	if i := strings.IndexRune(t, ','); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	if i := strings.IndexByte(t, ' '); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return strings.Trim(t, " \"'"), true
}
