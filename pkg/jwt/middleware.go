package jwt

import (
	"errors"
	"strings"

	"peoplegrid/pkg/logger"
	"peoplegrid/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// ContextUserIDKey 用户ID在gin.Context中的键名
	ContextUserIDKey = "user_id"
	// ContextClaimsKey JWT声明在gin.Context中的键名
	ContextClaimsKey = "jwt_claims"
)

// 认证失败提示，每种失败原因各不相同
const (
	MsgMissingHeader   = "Authentication failed! No token provided."
	MsgMalformedHeader = "Authentication failed! Invalid token format."
	MsgInvalidToken    = "Authentication failed! Invalid token."
	MsgExpiredToken    = "Authentication failed! Token has expired. Please login again."
)

// ExtractBearer 从 Authorization 头中取出 token
// 头缺失返回 ok=false；格式错误返回 ok=true 且 token 为空
func ExtractBearer(header string) (token string, present bool) {
	if header == "" {
		return "", false
	}
	scheme, rest, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(rest), true
}

// AuthMiddleware JWT认证中间件
// 从请求头中提取 Authorization: Bearer <token>，校验后将用户ID存入gin.Context
func (s *JWTService) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, present := ExtractBearer(c.GetHeader("Authorization"))
		if !present {
			response.Unauthorized(c, MsgMissingHeader)
			return
		}
		if tokenString == "" {
			response.Unauthorized(c, MsgMalformedHeader)
			return
		}

		claims, err := s.ValidateToken(tokenString)
		if err != nil {
			logger.Warn("JWT验证失败",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
			)
			if errors.Is(err, ErrTokenExpired) {
				response.Unauthorized(c, MsgExpiredToken)
				return
			}
			response.Unauthorized(c, MsgInvalidToken)
			return
		}

		userID, _ := claims.UserID()
		c.Set(ContextUserIDKey, userID)
		c.Set(ContextClaimsKey, claims)

		c.Next()
	}
}

// GetUserID 从gin.Context中获取用户ID
func GetUserID(c *gin.Context) uint {
	if v, exists := c.Get(ContextUserIDKey); exists {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

// GetClaims 从gin.Context中获取JWT声明
func GetClaims(c *gin.Context) *Claims {
	if v, exists := c.Get(ContextClaimsKey); exists {
		if claims, ok := v.(*Claims); ok {
			return claims
		}
	}
	return nil
}
