package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userIDCtxKey = "user_id"

func (s *Server) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()

	ev := s.log.Info()
	if c.Writer.Status() >= http.StatusInternalServerError {
		ev = s.log.Error()
	}
	ev.Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Int("status", c.Writer.Status()).
		Dur("duration", time.Since(start)).
		Msg("request")
}

// authenticate checks the bearer token when a secret is configured and the
// allowlist when a user is configured. The authenticated user id, if any,
// is stored under userIDCtxKey.
func (s *Server) authenticate(c *gin.Context) {
	if s.opts.JWTSecret == "" {
		c.Next()
		return
	}

	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		s.log.Warn().Msg("missing or invalid authorization header")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims, err := s.parseJWTToken(parts[1])
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to parse token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if claims.Subject == "" {
		s.log.Warn().Msg("token has no subject")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if !s.allowed(claims.Subject) {
		s.log.Warn().Str("user_id", claims.Subject).Msg("user not allowed")
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	c.Set(userIDCtxKey, claims.Subject)
	c.Next()
}

func (s *Server) parseJWTToken(tokenString string) (*jwt.RegisteredClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		return []byte(s.opts.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, fmt.Errorf("failed to parse token claims")
	}
	return claims, nil
}

func (s *Server) allowed(userID string) bool {
	return s.opts.AllowedUserID == "" || s.opts.AllowedUserID == userID
}
