// Package token 提供了用于生成和验证管理 API 所用 JSON Web Tokens (JWT) 的功能。
package token

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin 是管理 API 唯一接受的角色。
const RoleAdmin = "admin"

// JWTManager 负责管理 JWT 的生成和验证。
type JWTManager struct {
	secretKey      []byte        // secretKey 用于签名和验证 token 的密钥
	accessTokenDur time.Duration // accessTokenDur 定义了 access token 的有效期
}

// CustomClaims 定义了我们想要在 JWT 中存储的自定义数据。
// 它嵌入了 jwt.RegisteredClaims 以包含标准的 JWT 声明（如过期时间）。
type CustomClaims struct {
	UserID int64  `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// NewJWTManager 创建一个新的 JWTManager 实例。
// secret: 用于签名的密钥字符串。
// accessTokenExpireHours: access token 的过期时间（小时）。
func NewJWTManager(secret string, accessTokenExpireHours int) *JWTManager {
	return &JWTManager{
		secretKey:      []byte(secret),
		accessTokenDur: time.Hour * time.Duration(accessTokenExpireHours),
	}
}

// GenerateToken 为 Telegram 用户 userID 生成一个新的 access token。
func (m *JWTManager) GenerateToken(userID int64, role string) (string, error) {
	if len(m.secretKey) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	now := time.Now()
	claims := CustomClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTokenDur)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	// 使用 HS256 签名方法创建新的 token 对象
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// VerifyToken 验证给定的 token 字符串。
// 如果 token 有效，它会返回 CustomClaims 对象。
// 如果 token 无效（例如，签名不匹配或已过期），则返回错误。
func (m *JWTManager) VerifyToken(tokenString string) (*CustomClaims, error) {
	if len(m.secretKey) == 0 {
		return nil, errors.New("jwt secret is not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 检查签名方法是否为 HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
