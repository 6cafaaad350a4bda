package routes

import (
	"net/http"
	"slices"
	"time"

	"goodmoments/handlers"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Deps are the handlers and policy switches the router mounts.
type Deps struct {
	Users             *handlers.UserHandler
	Google            *handlers.GoogleOAuthHandler
	Posts             *handlers.PostHandler
	Auth              gin.HandlerFunc
	CORSOrigins       []string
	LegacySetPassword bool
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With",
			"X-User-Email", "X-Google-User-Id", "X-User-Name",
		},
		ExposeHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

// mount registers every API route under prefix.
func mount(r gin.IRouter, prefix string, d Deps) {
	user := r.Group(prefix + "/user")
	user.POST("/signin", d.Users.SignIn)
	user.POST("/signup", d.Users.SignUp)
	user.POST("/google", d.Users.Google)
	user.POST("/request-password-setup", d.Users.RequestPasswordSetup)
	user.POST("/forgot-password", d.Users.ForgotPassword)
	user.POST("/verify-token-set-password", d.Users.VerifyTokenAndSetPassword)
	if d.LegacySetPassword {
		user.POST("/set-password", d.Users.SetPassword)
	}
	user.GET("/google/auth-url", d.Google.AuthURL)
	user.GET("/google/callback", d.Google.Callback)

	posts := r.Group(prefix + "/posts")
	posts.GET("", d.Posts.List)
	posts.GET("/search", d.Posts.Search)
	posts.GET("/creator", d.Posts.ByCreator)
	posts.GET("/:id", d.Posts.Get)

	protected := posts.Group("", d.Auth)
	protected.POST("", d.Posts.Create)
	protected.PATCH("/:id", d.Posts.Update)
	protected.DELETE("/:id", d.Posts.Delete)
	protected.PATCH("/:id/likePost", d.Posts.Like)
	protected.POST("/:id/commentPost", d.Posts.Comment)
}

func SetupRouter(d Deps) *gin.Engine {
	router := gin.Default()
	router.Use(cors.New(corsConfig(d.CORSOrigins)))

	banner := func(c *gin.Context) {
		c.String(http.StatusOK, "Good Moments API is running")
	}
	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
	}
	router.GET("/", banner)
	router.GET("/health", health)
	router.GET("/api", banner)
	router.GET("/api/health", health)

	mount(router, "", d)
	mount(router, "/api", d)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"message": "Endpoint not found",
			"path":    c.Request.URL.Path,
		})
	})

	return router
}
