package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Session is the identity carried by a verified token.
type Session struct {
	UserID    uint
	TokenID   string
	ExpiresAt time.Time
}

// Tokens issues and verifies HMAC signed session tokens.
type Tokens struct {
	secret   []byte
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewTokens creates a token manager. audience may be empty.
func NewTokens(secret, audience string, ttl time.Duration) (*Tokens, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("missing JWT secret")
	}
	return &Tokens{
		secret:   []byte(secret),
		audience: strings.TrimSpace(audience),
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// TTL is the lifetime of issued tokens.
func (t *Tokens) TTL() time.Duration { return t.ttl }

// Issue signs a new token for userID.
func (t *Tokens) Issue(userID uint) (string, Session, error) {
	now := t.now()
	session := Session{
		UserID:    userID,
		TokenID:   uuid.NewString(),
		ExpiresAt: now.Add(t.ttl).Truncate(time.Second),
	}
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		ID:        session.TokenID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}
	if t.audience != "" {
		claims.Audience = jwt.ClaimStrings{t.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, session, nil
}

// Parse verifies tokenString and returns its session.
func (t *Tokens) Parse(tokenString string) (Session, error) {
	claims := &jwt.RegisteredClaims{}
	opts := []jwt.ParserOption{jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired()}
	if t.audience != "" {
		opts = append(opts, jwt.WithAudience(t.audience))
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Session{}, errors.New("invalid token")
	}

	if claims.Subject == "" {
		return Session{}, errors.New("missing subject")
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return Session{}, errors.New("invalid subject")
	}
	if claims.ID == "" {
		return Session{}, errors.New("missing token id")
	}

	return Session{
		UserID:    uint(userID),
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
