package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"goodmoments/apperr"
	"goodmoments/auth"
	"goodmoments/config"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	stateCookie       = "oauth_state"
	stateCookieMaxAge = 600
)

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleOAuthHandler runs the server side authorization code flow and hands
// the fetched identity to the account linking resolver.
type GoogleOAuthHandler struct {
	oauth       *oauth2.Config
	auth        *auth.Service
	userInfoURL string
}

// NewGoogleOAuthHandler returns a handler whose endpoints answer 503 when
// the client credentials are not configured.
func NewGoogleOAuthHandler(cfg config.Google, svc *auth.Service) *GoogleOAuthHandler {
	h := &GoogleOAuthHandler{auth: svc, userInfoURL: googleUserInfoURL}
	if !cfg.Enabled() {
		log.Println("[Google] OAuth code flow disabled, GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set")
		return h
	}
	h.oauth = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
	return h
}

func (h *GoogleOAuthHandler) configured(c *gin.Context) bool {
	if h.oauth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Google OAuth not configured"})
		return false
	}
	return true
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (h *GoogleOAuthHandler) AuthURL(c *gin.Context) {
	if !h.configured(c) {
		return
	}
	state, err := newState()
	if err != nil {
		respondError(c, "GoogleAuthURL", apperr.Wrap("Something went wrong", err))
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, stateCookieMaxAge, "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, gin.H{"url": h.oauth.AuthCodeURL(state)})
}

func (h *GoogleOAuthHandler) Callback(c *gin.Context) {
	if !h.configured(c) {
		return
	}
	code := c.Query("code")
	if code == "" {
		respondError(c, "GoogleCallback", apperr.New(apperr.BadRequest, "Authorization code missing"))
		return
	}
	state, err := c.Cookie(stateCookie)
	if err != nil || state == "" || state != c.Query("state") {
		respondError(c, "GoogleCallback", apperr.New(apperr.BadRequest, "Invalid OAuth state"))
		return
	}
	c.SetCookie(stateCookie, "", -1, "/", "", c.Request.TLS != nil, true)

	ctx, cancel := requestContext(c)
	defer cancel()

	token, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		respondError(c, "GoogleCallback", apperr.Wrap("Something went wrong", fmt.Errorf("exchange code: %w", err)))
		return
	}
	resp, err := h.oauth.Client(ctx, token).Get(h.userInfoURL)
	if err != nil {
		respondError(c, "GoogleCallback", apperr.Wrap("Something went wrong", fmt.Errorf("fetch userinfo: %w", err)))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respondError(c, "GoogleCallback", apperr.Wrap("Something went wrong", fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)))
		return
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		respondError(c, "GoogleCallback", apperr.Wrap("Something went wrong", fmt.Errorf("decode userinfo: %w", err)))
		return
	}

	sess, err := h.auth.GoogleAuth(ctx, auth.GoogleIdentity{
		Email:    info.Email,
		GoogleID: info.ID,
		Name:     info.Name,
		Picture:  info.Picture,
	})
	if err != nil {
		respondError(c, "GoogleCallback", err)
		return
	}
	log.Printf("[GoogleCallback] signed in %s", sess.User.Email)
	c.JSON(http.StatusOK, sessionBody(sess.User, sess.Token))
}
