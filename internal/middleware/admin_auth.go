package middleware

import (
	"net/http"

	"file-share-bot/pkg/token"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware 检查 token 的持有者是否仍是机器人管理员。
// 此中间件必须在 AuthMiddleware 之后使用；管理员列表变化后旧 token 立即失效。
func AdminAuthMiddleware(isAdmin func(userID int64) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(ContextClaims)
		if !exists {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法获取用户信息", "data": nil})
			return
		}
		claims, ok := v.(*token.CustomClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "用户数据类型错误", "data": nil})
			return
		}

		if claims.Role != token.RoleAdmin || !isAdmin(claims.UserID) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": "权限不足，需要管理员权限", "data": nil})
			return
		}
		c.Next()
	}
}
