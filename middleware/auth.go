package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"goodmoments/auth"
	"goodmoments/models"
	"goodmoments/repositories"

	"github.com/gin-gonic/gin"
)

// Context keys set on every authenticated request.
const (
	UserIDKey    = "userId"
	UserNameKey  = "userName"
	UserEmailKey = "userEmail"
)

const lookupTimeout = 5 * time.Second

type Verifier interface {
	Verify(token string) (*auth.Claims, error)
}

type UserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*models.User, error)
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": message})
}

// Authenticate resolves the caller from a bearer session credential. When
// legacyHeaders is on, opaque bearer tokens fall back to the X-User-Email
// and X-Google-User-Id headers.
func Authenticate(issuer Verifier, users UserLookup, legacyHeaders bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		// CORS preflight
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if !ok || scheme != "Bearer" || token == "" {
			unauthorized(c, "Unauthenticated")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), lookupTimeout)
		defer cancel()

		var user *models.User
		if auth.IsSessionShaped(token) {
			claims, err := issuer.Verify(token)
			if err != nil {
				log.Printf("[Auth] session credential rejected: %v", err)
				unauthorized(c, "Invalid or expired token")
				return
			}
			user, err = users.FindByID(ctx, claims.ID)
			if err != nil {
				if !errors.Is(err, repositories.ErrNotFound) {
					log.Printf("[Auth] user lookup failed: %v", err)
				}
				unauthorized(c, "User no longer exists")
				return
			}
		} else {
			if !legacyHeaders {
				unauthorized(c, "Unsupported credential")
				return
			}
			user = legacyUser(ctx, c, users)
			if user == nil {
				unauthorized(c, "Unauthenticated")
				return
			}
		}

		c.Set(UserIDKey, user.ID.Hex())
		c.Set(UserNameKey, user.Name)
		c.Set(UserEmailKey, user.Email)
		c.Next()
	}
}

// legacyUser trusts client supplied identity headers. The bearer token itself
// is not verified on this path.
func legacyUser(ctx context.Context, c *gin.Context, users UserLookup) *models.User {
	if email := c.GetHeader("X-User-Email"); email != "" {
		if user, err := users.FindByEmail(ctx, email); err == nil {
			log.Printf("[Auth] WARNING: legacy header auth resolved %s via X-User-Email", user.Email)
			return user
		}
	}
	if googleID := c.GetHeader("X-Google-User-Id"); googleID != "" {
		if user, err := users.FindByGoogleID(ctx, googleID); err == nil {
			log.Printf("[Auth] WARNING: legacy header auth resolved %s via X-Google-User-Id", user.Email)
			return user
		}
	}
	return nil
}
