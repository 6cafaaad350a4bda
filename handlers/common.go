package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"goodmoments/apperr"
	"goodmoments/middleware"
	"goodmoments/models"
	"goodmoments/posts"

	"github.com/gin-gonic/gin"
)

const requestTimeout = 10 * time.Second

// requestContext bounds store calls for a single request.
func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// respondError renders err as {message} with its mapped status. Internal
// causes are logged under tag and never reach the client.
func respondError(c *gin.Context, tag string, err error) {
	e := apperr.From(err)
	if errors.Is(e, apperr.ErrInternal) {
		log.Printf("[%s] %v", tag, err)
		c.JSON(e.Status(), gin.H{"message": "Something went wrong"})
		return
	}
	c.JSON(e.Status(), gin.H{"message": e.Message})
}

func caller(c *gin.Context) posts.Caller {
	return posts.Caller{
		ID:   c.GetString(middleware.UserIDKey),
		Name: c.GetString(middleware.UserNameKey),
	}
}

// sessionBody is the {result, token} shape shared by every sign-in style
// endpoint.
func sessionBody(user *models.User, token string) gin.H {
	return gin.H{"result": user.Profile(), "token": token}
}
