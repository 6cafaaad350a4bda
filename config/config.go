package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is built once at startup and handed to every component that needs
// it. Nothing reads the environment after Load returns.
type Config struct {
	Port    string `env:"PORT" envDefault:"5000"`
	GinMode string `env:"GIN_MODE" envDefault:"debug"`

	MongoURI      string `env:"MONGODB_URI,required,notEmpty"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"goodmoments"`

	JWTSecret     string        `env:"JWT_SECRET,required,notEmpty"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	ResetTokenTTL time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`

	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3001"`

	// Policy switches. All default to off.
	ExposeDevLinks    bool `env:"EXPOSE_DEV_LINKS" envDefault:"false"`
	LegacyHeaderAuth  bool `env:"LEGACY_HEADER_AUTH" envDefault:"false"`
	LegacySetPassword bool `env:"LEGACY_SET_PASSWORD" envDefault:"false"`

	Mail       Mail       `envPrefix:"EMAIL_"`
	Google     Google     `envPrefix:"GOOGLE_"`
	Cloudinary Cloudinary `envPrefix:"CLOUDINARY_"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

type Mail struct {
	Host     string `env:"HOST" envDefault:"smtp.gmail.com"`
	Port     int    `env:"PORT" envDefault:"587"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"`
}

// Enabled reports whether SMTP credentials were supplied.
func (m Mail) Enabled() bool {
	return m.User != "" && m.Password != ""
}

// Sender is the From address, falling back to the SMTP user.
func (m Mail) Sender() string {
	if m.From != "" {
		return m.From
	}
	return m.User
}

type Google struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL" envDefault:"http://localhost:5000/user/google/callback"`
}

func (g Google) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type Cloudinary struct {
	URL    string `env:"URL"`
	Folder string `env:"FOLDER" envDefault:"goodmoments/posts"`
}

func (c Cloudinary) Enabled() bool {
	return c.URL != ""
}

// Load reads an optional .env file and then parses the process environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SessionTTL <= 0 || cfg.ResetTokenTTL <= 0 {
		return Config{}, fmt.Errorf("token lifetimes must be positive")
	}
	return cfg, nil
}
