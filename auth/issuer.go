package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"goodmoments/models"

	"github.com/golang-jwt/jwt/v5"
)

// SessionKind tags every credential this service signs. Verification
// rejects signed tokens that carry any other kind.
const SessionKind = "session"

// Claims is the payload of a session credential.
type Claims struct {
	Email string `json:"email"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	jwt.RegisteredClaims
}

var ErrWrongKind = errors.New("token is not a session credential")

// Issuer signs and verifies HS256 session credentials.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (i *Issuer) Issue(user *models.User) (string, error) {
	now := i.now()
	claims := &Claims{
		Email: user.Email,
		ID:    user.ID.Hex(),
		Name:  user.Name,
		Kind:  SessionKind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.Kind != SessionKind {
		return nil, ErrWrongKind
	}
	return claims, nil
}

// maxSessionTokenLen bounds what is treated as a signed credential. Opaque
// provider access tokens issued to early clients are longer.
const maxSessionTokenLen = 500

// IsSessionShaped reports whether a bearer value is structurally a signed
// credential: three dot-separated segments and under 500 characters.
func IsSessionShaped(token string) bool {
	return len(token) < maxSessionTokenLen && len(strings.Split(token, ".")) == 3
}

func newOneTimeToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
