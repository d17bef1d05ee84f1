package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidSession = errors.New("invalid session token")

// SessionService issues signed tokens that identify an operator session. The
// session id scopes the staged import batch.
type SessionService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewSessionService(secret string, expiry time.Duration) *SessionService {
	return &SessionService{secret: []byte(secret), expiry: expiry, now: time.Now}
}

// NewSessionToken starts a fresh session and returns its signed token and id.
func (s *SessionService) NewSessionToken() (token string, sessionID string, err error) {
	sessionID = uuid.NewString()
	now := s.now()
	claims := jwt.MapClaims{
		"sub": sessionID,
		"exp": now.Add(s.expiry).Unix(),
		"iat": now.Unix(),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", err
	}
	return token, sessionID, nil
}

// ValidateSessionToken returns the session id carried by a valid token.
func (s *SessionService) ValidateSessionToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", errors.Join(ErrInvalidSession, err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		sub, ok := claims["sub"].(string)
		if !ok || sub == "" {
			return "", errors.New("invalid token: 'sub' claim missing or not a string")
		}
		return sub, nil
	}
	return "", ErrInvalidSession
}
