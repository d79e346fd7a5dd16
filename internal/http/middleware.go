package http

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const moderatorRole = "moderator"

var errNoCredentials = errors.New("no moderator credentials")

// ModeratorClaims is the JWT payload accepted for moderation.
type ModeratorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// moderatorAuth checks a request for either the shared admin token or a
// signed moderator JWT. Either secret may be empty, disabling that method.
type moderatorAuth struct {
	adminToken string
	jwtSecret  []byte
}

func (a moderatorAuth) enabled() bool {
	return a.adminToken != "" || len(a.jwtSecret) > 0
}

func (a moderatorAuth) check(c *gin.Context) error {
	if supplied := c.GetHeader("X-Admin-Token"); supplied != "" {
		if a.adminToken == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(a.adminToken)) != 1 {
			return errors.New("invalid admin token")
		}
		return nil
	}

	header := c.GetHeader("Authorization")
	if header == "" {
		return errNoCredentials
	}
	if !strings.HasPrefix(header, "Bearer ") || len(a.jwtSecret) == 0 {
		return errors.New("invalid authorization format")
	}
	claims, err := a.validateToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return err
	}
	if claims.Role != moderatorRole {
		return fmt.Errorf("role %q may not moderate", claims.Role)
	}
	return nil
}

func (a moderatorAuth) validateToken(tokenString string) (*ModeratorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ModeratorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*ModeratorClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// ModeratorMiddleware admits moderators only. With no secret configured every
// request is refused.
func ModeratorMiddleware(adminToken, jwtSecret string) gin.HandlerFunc {
	auth := moderatorAuth{adminToken: adminToken, jwtSecret: []byte(jwtSecret)}
	if !auth.enabled() {
		log.Println("WARNING: neither X_ADMIN_TOKEN nor MODERATOR_JWT_SECRET is set; moderation is disabled")
	}

	return func(c *gin.Context) {
		if !auth.enabled() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden: moderation is disabled"})
			return
		}
		err := auth.check(c)
		switch {
		case errors.Is(err, errNoCredentials):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: moderator credentials required"})
			return
		case err != nil:
			log.Printf("Moderator auth failed from %s: %v", c.ClientIP(), err)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden: invalid moderator credentials"})
			return
		}
		c.Next()
	}
}

// SecurityHeadersMiddleware adds basic, sensible security headers.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Prevents clickjacking
		c.Header("X-Frame-Options", "DENY")
		// Prevents MIME-type sniffing
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'")
		c.Next()
	}
}
