package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionCookie is the name of the cookie holding the session token.
const SessionCookie = "session"

type contextKey string

const sessionKey contextKey = "authSession"

// GetSession retrieves the authenticated session from context.
func GetSession(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	if value, ok := ctx.Value(sessionKey).(Session); ok && value.UserID != 0 {
		return value, true
	}
	return Session{}, false
}

// GetUserID retrieves the authenticated user id from context.
func GetUserID(ctx context.Context) (uint, bool) {
	session, ok := GetSession(ctx)
	return session.UserID, ok
}

// SessionMiddleware validates the session token from the session cookie or
// a bearer header and injects the session. revoker may be nil.
func SessionMiddleware(tokens *Tokens, revoker Revoker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := extractToken(c)
		if err != nil {
			unauthorized(c, err.Error())
			return
		}

		session, err := tokens.Parse(tokenString)
		if err != nil {
			unauthorized(c, err.Error())
			return
		}

		if revoker != nil {
			revoked, err := revoker.IsRevoked(c.Request.Context(), session.TokenID)
			if err != nil {
				logger.Error("revocation check failed", zap.Error(err), zap.String("token_id", session.TokenID))
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session check unavailable"})
				return
			}
			if revoked {
				unauthorized(c, "session ended")
				return
			}
		}

		ctx := context.WithValue(c.Request.Context(), sessionKey, session)
		c.Request = c.Request.WithContext(ctx)
		c.Set(string(sessionKey), session)

		c.Next()
	}
}

func extractToken(c *gin.Context) (string, error) {
	if header := c.Request.Header.Get("Authorization"); header != "" {
		return extractBearerToken(header)
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil && strings.TrimSpace(cookie) != "" {
		return strings.TrimSpace(cookie), nil
	}
	return "", errors.New("login required")
}

func extractBearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("token missing")
	}
	return token, nil
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}
