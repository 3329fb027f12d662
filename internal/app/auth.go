package app

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type AuthConfig struct {
	StaticTokens      []string
	JWTSecret         string
	BasicUsername     string
	BasicPassword     string
	BasicPasswordHash string
}

// ProviderAuth accepts a bearer token (HS256 JWT or static token) or basic
// credentials. With nothing configured every request is rejected.
func ProviderAuth(cfg AuthConfig) gin.HandlerFunc {
	jwtSecret := strings.TrimSpace(cfg.JWTSecret)

	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.Header("WWW-Authenticate", `Basic realm="provider"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		if user, pass, ok := c.Request.BasicAuth(); ok {
			if cfg.checkBasic(user, pass) {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		parts := strings.Fields(auth)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		tokenStr := parts[1]

		if jwtSecret != "" {
			_, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
				return []byte(jwtSecret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(5*time.Second))
			if err == nil {
				c.Next()
				return
			}
		}

		for _, t := range cfg.StaticTokens {
			if t != "" && subtle.ConstantTimeCompare([]byte(tokenStr), []byte(t)) == 1 {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	}
}

func (cfg AuthConfig) checkBasic(user, pass string) bool {
	if cfg.BasicUsername == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.BasicUsername)) == 1

	switch {
	case cfg.BasicPasswordHash != "":
		err := bcrypt.CompareHashAndPassword([]byte(cfg.BasicPasswordHash), []byte(pass))
		return userOK && err == nil
	case cfg.BasicPassword != "":
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(cfg.BasicPassword)) == 1
		return userOK && passOK
	default:
		return false
	}
}
