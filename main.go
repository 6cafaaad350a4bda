package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goodmoments/auth"
	"goodmoments/config"
	"goodmoments/database"
	"goodmoments/handlers"
	"goodmoments/mailer"
	"goodmoments/media"
	"goodmoments/middleware"
	"goodmoments/posts"
	"goodmoments/repositories"
	"goodmoments/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("Starting Good Moments API...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	log.Println("Connecting to MongoDB...")
	db, err := database.ConnectWithRetry(context.Background(), cfg.MongoURI, cfg.MongoDatabase, 3, 2*time.Second)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer db.Disconnect()
	log.Println("MongoDB connected")

	idxCtx, idxCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(idxCtx); err != nil {
		log.Printf("index bootstrap failed: %v", err)
	}
	idxCancel()

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	log.Printf("Running in %s mode", gin.Mode())

	users := repositories.NewMongoUserStore(db.Users)
	postStore := repositories.NewMongoPostStore(db.Posts)
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.SessionTTL)

	mail := mailer.New(cfg.Mail)
	if !mail.Enabled() {
		log.Println("Email delivery disabled, EMAIL_USER/EMAIL_PASSWORD not set")
	}

	authSvc := auth.NewService(users, issuer, mail, auth.Options{
		FrontendURL:    cfg.FrontendURL,
		ResetTokenTTL:  cfg.ResetTokenTTL,
		ExposeDevLinks: cfg.ExposeDevLinks,
	})

	var images posts.ImageStore
	if cfg.Cloudinary.Enabled() {
		uploader, err := media.NewUploader(cfg.Cloudinary)
		if err != nil {
			log.Fatalf("cloudinary: %v", err)
		}
		images = uploader
		log.Println("Post images are offloaded to Cloudinary")
	}
	postSvc := posts.NewService(postStore, images)

	if cfg.LegacyHeaderAuth {
		log.Println("WARNING: LEGACY_HEADER_AUTH is on, opaque bearer tokens are resolved from client identity headers")
	}
	if cfg.ExposeDevLinks {
		log.Println("WARNING: EXPOSE_DEV_LINKS is on, password links are returned in API responses when mail fails")
	}

	router := routes.SetupRouter(routes.Deps{
		Users:             handlers.NewUserHandler(authSvc),
		Google:            handlers.NewGoogleOAuthHandler(cfg.Google, authSvc),
		Posts:             handlers.NewPostHandler(postSvc),
		Auth:              middleware.Authenticate(issuer, users, cfg.LegacyHeaderAuth),
		CORSOrigins:       cfg.CORSOrigins,
		LegacySetPassword: cfg.LegacySetPassword,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server running on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}

	log.Println("Server stopped")
}
