package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"goodmoments/auth"
	"goodmoments/config"
	"goodmoments/mailer"
	"goodmoments/repositories"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type googleFixture struct {
	handler *GoogleOAuthHandler
	users   *repositories.InMemoryUserStore
	router  *gin.Engine
}

func newGoogleFixture(t *testing.T) *googleFixture {
	t.Helper()
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "good-code" {
				http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
		case "/userinfo":
			if r.Header.Get("Authorization") != "Bearer at-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(googleUserInfo{
				ID: "g-42", Email: "g@x.com", VerifiedEmail: true, Name: "Gee Oh",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(provider.Close)

	users := repositories.NewInMemoryUserStore()
	svc := auth.NewService(users, auth.NewIssuer("secret", time.Hour), mailer.New(config.Mail{}), auth.Options{
		HashCost: bcrypt.MinCost,
	})
	h := NewGoogleOAuthHandler(config.Google{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:5000/user/google/callback",
	}, svc)
	h.oauth.Endpoint = oauth2.Endpoint{
		AuthURL:   provider.URL + "/auth",
		TokenURL:  provider.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	h.userInfoURL = provider.URL + "/userinfo"

	r := gin.New()
	r.GET("/auth-url", h.AuthURL)
	r.GET("/callback", h.Callback)
	return &googleFixture{handler: h, users: users, router: r}
}

func (f *googleFixture) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func stateFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == stateCookie {
			return c
		}
	}
	t.Fatal("state cookie not set")
	return nil
}

func TestGoogleAuthURLSetsState(t *testing.T) {
	f := newGoogleFixture(t)
	w := f.get("/auth-url")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	cookie := stateFrom(t, w)

	var body struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	u, err := url.Parse(body.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Query().Get("state") != cookie.Value || u.Query().Get("client_id") != "client" {
		t.Fatalf("unexpected consent url %s", body.URL)
	}
}

func TestGoogleCallbackRejectsBadRequests(t *testing.T) {
	f := newGoogleFixture(t)
	state := stateFrom(t, f.get("/auth-url"))

	if w := f.get("/callback?state=" + state.Value); w.Code != http.StatusBadRequest {
		t.Fatalf("missing code: expected 400, got %d", w.Code)
	}
	if w := f.get("/callback?code=good-code&state=other", state); w.Code != http.StatusBadRequest {
		t.Fatalf("state mismatch: expected 400, got %d", w.Code)
	}
	if w := f.get("/callback?code=good-code&state=" + state.Value); w.Code != http.StatusBadRequest {
		t.Fatalf("missing cookie: expected 400, got %d", w.Code)
	}
}

func TestGoogleCallbackSignsIn(t *testing.T) {
	f := newGoogleFixture(t)
	state := stateFrom(t, f.get("/auth-url"))

	w := f.get("/callback?code=good-code&state="+state.Value, state)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), `"token"`) {
		t.Fatalf("expected session token, got %s", w.Body)
	}

	user, err := f.users.FindByGoogleID(context.Background(), "g-42")
	if err != nil {
		t.Fatalf("expected linked user: %v", err)
	}
	if user.Email != "g@x.com" || user.Name != "Gee Oh" || user.HasPassword() {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestGoogleOAuthDisabled(t *testing.T) {
	h := NewGoogleOAuthHandler(config.Google{}, nil)
	r := gin.New()
	r.GET("/auth-url", h.AuthURL)
	r.GET("/callback", h.Callback)

	for _, path := range []string{"/auth-url", "/callback?code=x"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", path, w.Code)
		}
	}
}
