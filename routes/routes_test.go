package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"goodmoments/auth"
	"goodmoments/config"
	"goodmoments/handlers"
	"goodmoments/mailer"
	"goodmoments/middleware"
	"goodmoments/posts"
	"goodmoments/repositories"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
}

type apiOptions struct {
	exposeDevLinks    bool
	legacySetPassword bool
}

func newTestAPI(t *testing.T, opts apiOptions) *testAPI {
	t.Helper()
	users := repositories.NewInMemoryUserStore()
	issuer := auth.NewIssuer("test-secret", time.Hour)
	authSvc := auth.NewService(users, issuer, mailer.New(config.Mail{}), auth.Options{
		FrontendURL:    "http://localhost:3001",
		ResetTokenTTL:  time.Hour,
		ExposeDevLinks: opts.exposeDevLinks,
		HashCost:       bcrypt.MinCost,
	})
	postSvc := posts.NewService(repositories.NewInMemoryPostStore(), nil)

	router := SetupRouter(Deps{
		Users:             handlers.NewUserHandler(authSvc),
		Google:            handlers.NewGoogleOAuthHandler(config.Google{}, authSvc),
		Posts:             handlers.NewPostHandler(postSvc),
		Auth:              middleware.Authenticate(issuer, users, false),
		CORSOrigins:       []string{"*"},
		LegacySetPassword: opts.legacySetPassword,
	})
	return &testAPI{t: t, router: router}
}

// do sends a JSON request and decodes the JSON response into a map.
func (a *testAPI) do(method, path, token string, body any) (int, map[string]any) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w.Code, out
}

func (a *testAPI) signUp(email, first, last string) (token, id string) {
	a.t.Helper()
	code, body := a.do(http.MethodPost, "/user/signup", "", map[string]string{
		"email": email, "password": "secret1", "firstName": first, "lastName": last,
	})
	if code != http.StatusCreated {
		a.t.Fatalf("signup %s: expected 201, got %d %v", email, code, body)
	}
	result := body["result"].(map[string]any)
	return body["token"].(string), result["_id"].(string)
}

func TestSignUpAndSignIn(t *testing.T) {
	api := newTestAPI(t, apiOptions{})
	api.signUp("a@x.com", "Jo", "Doe")

	code, body := api.do(http.MethodPost, "/api/user/signin", "", map[string]string{"email": "a@x.com", "password": "secret1"})
	if code != http.StatusOK {
		t.Fatalf("signin: expected 200, got %d %v", code, body)
	}
	result := body["result"].(map[string]any)
	if result["name"] != "Jo Doe" || body["token"] == "" {
		t.Fatalf("unexpected signin body %v", body)
	}
	if _, leaked := result["password"]; leaked {
		t.Fatal("password hash must not be serialized")
	}

	code, body = api.do(http.MethodPost, "/user/signin", "", map[string]string{"email": "a@x.com", "password": "wrongpw"})
	if code != http.StatusBadRequest || body["message"] != "Invalid credentials" {
		t.Fatalf("expected invalid credentials, got %d %v", code, body)
	}

	code, _ = api.do(http.MethodPost, "/user/signup", "", map[string]string{"email": "a@x.com", "password": "x"})
	if code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate signup, got %d", code)
	}

	code, _ = api.do(http.MethodPost, "/user/signin", "", map[string]string{"email": "nobody@x.com", "password": "x"})
	if code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", code)
	}
}

func TestGoogleAccountNeedsPasswordThenSetsIt(t *testing.T) {
	api := newTestAPI(t, apiOptions{exposeDevLinks: true})

	code, body := api.do(http.MethodPost, "/user/google", "", map[string]string{
		"email": "g@x.com", "googleId": "g-1", "name": "Gee",
	})
	if code != http.StatusOK || body["token"] == nil {
		t.Fatalf("google auth: %d %v", code, body)
	}

	code, body = api.do(http.MethodPost, "/user/signin", "", map[string]string{"email": "g@x.com", "password": "whatever"})
	if code != http.StatusOK || body["needsPassword"] != true || body["token"] != nil {
		t.Fatalf("expected needsPassword, got %d %v", code, body)
	}

	code, body = api.do(http.MethodPost, "/user/request-password-setup", "", map[string]string{"email": "g@x.com"})
	if code != http.StatusOK || body["emailSent"] != false {
		t.Fatalf("request setup: %d %v", code, body)
	}
	link, ok := body["devLink"].(string)
	if !ok {
		t.Fatalf("expected devLink with mail disabled and flag on, got %v", body)
	}
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse devLink: %v", err)
	}
	token := u.Query().Get("token")

	req := map[string]string{"token": token, "email": "g@x.com", "password": "newpass"}
	code, body = api.do(http.MethodPost, "/user/verify-token-set-password", "", req)
	if code != http.StatusOK || body["message"] != "Password set successfully" {
		t.Fatalf("verify token: %d %v", code, body)
	}
	code, _ = api.do(http.MethodPost, "/user/verify-token-set-password", "", req)
	if code != http.StatusBadRequest {
		t.Fatalf("expected reused token to fail, got %d", code)
	}

	code, body = api.do(http.MethodPost, "/user/signin", "", map[string]string{"email": "g@x.com", "password": "newpass"})
	if code != http.StatusOK || body["token"] == nil {
		t.Fatalf("signin after setup: %d %v", code, body)
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	api := newTestAPI(t, apiOptions{})
	code, _ := api.do(http.MethodPost, "/user/forgot-password", "", map[string]string{"email": "nobody@x.com"})
	if code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	code, body := api.do(http.MethodPost, "/user/request-password-setup", "", map[string]string{"email": "nobody@x.com"})
	if code != http.StatusOK || body["devLink"] != nil {
		t.Fatalf("expected generic response, got %d %v", code, body)
	}
}

func TestLegacySetPasswordRoute(t *testing.T) {
	body := map[string]string{"email": "a@x.com", "password": "pw"}

	off := newTestAPI(t, apiOptions{})
	if code, _ := off.do(http.MethodPost, "/user/set-password", "", body); code != http.StatusNotFound {
		t.Fatalf("expected route absent without flag, got %d", code)
	}

	on := newTestAPI(t, apiOptions{legacySetPassword: true})
	if code, _ := on.do(http.MethodPost, "/user/set-password", "", body); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", code)
	}
	on.do(http.MethodPost, "/user/google", "", map[string]string{"email": "a@x.com", "googleId": "g", "name": "A"})
	if code, resp := on.do(http.MethodPost, "/user/set-password", "", body); code != http.StatusOK || resp["token"] == nil {
		t.Fatalf("expected password set, got %d %v", code, resp)
	}
}

func TestPostLifecycle(t *testing.T) {
	api := newTestAPI(t, apiOptions{})
	aliceToken, aliceID := api.signUp("alice@x.com", "Alice", "A")
	bobToken, bobID := api.signUp("bob@x.com", "Bob", "B")

	newPost := map[string]any{"title": "Sunset", "message": "m", "tags": []string{"#beach"}, "creator": bobID}
	if code, _ := api.do(http.MethodPost, "/posts", "", newPost); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}

	code, post := api.do(http.MethodPost, "/api/posts", aliceToken, newPost)
	if code != http.StatusCreated {
		t.Fatalf("create: %d %v", code, post)
	}
	if post["creator"] != aliceID || post["name"] != "Alice A" {
		t.Fatalf("creator must come from the caller, got %v", post)
	}
	id := post["_id"].(string)

	if code, _ := api.do(http.MethodPatch, "/posts/"+id, bobToken, map[string]any{"title": "Mine now"}); code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-creator update, got %d", code)
	}
	if code, _ := api.do(http.MethodDelete, "/posts/"+id, bobToken, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-creator delete, got %d", code)
	}

	code, updated := api.do(http.MethodPatch, "/posts/"+id, aliceToken, map[string]any{"title": "Sunrise", "message": "m2", "tags": []string{"#sky"}})
	if code != http.StatusOK || updated["title"] != "Sunrise" {
		t.Fatalf("update: %d %v", code, updated)
	}

	code, liked := api.do(http.MethodPatch, "/posts/"+id+"/likePost", bobToken, nil)
	if code != http.StatusOK || len(liked["likes"].([]any)) != 1 {
		t.Fatalf("like: %d %v", code, liked)
	}
	_, liked = api.do(http.MethodPatch, "/posts/"+id+"/likePost", bobToken, nil)
	if len(liked["likes"].([]any)) != 0 {
		t.Fatalf("second like should remove it, got %v", liked["likes"])
	}

	code, commented := api.do(http.MethodPost, "/posts/"+id+"/commentPost", bobToken, map[string]string{"value": "lovely"})
	if code != http.StatusOK {
		t.Fatalf("comment: %d %v", code, commented)
	}
	comments := commented["comments"].([]any)
	first := comments[0].(map[string]any)
	if len(comments) != 1 || first["comment"] != "lovely" || first["user"] != "Bob B" || first["userId"] != bobID {
		t.Fatalf("unexpected comments %v", comments)
	}

	code, page := api.do(http.MethodGet, "/posts?page=1", "", nil)
	if code != http.StatusOK || page["currentPage"] != float64(1) || page["numberOfPages"] != float64(1) {
		t.Fatalf("list: %d %v", code, page)
	}

	code, found := api.do(http.MethodGet, "/posts/search?searchQuery=none&tags=sky", "", nil)
	if code != http.StatusOK || len(found["data"].([]any)) != 1 {
		t.Fatalf("search: %d %v", code, found)
	}

	code, byName := api.do(http.MethodGet, "/posts/creator?name="+url.QueryEscape("Alice A"), "", nil)
	if code != http.StatusOK || len(byName["data"].([]any)) != 1 {
		t.Fatalf("by creator: %d %v", code, byName)
	}

	code, deleted := api.do(http.MethodDelete, "/posts/"+id, aliceToken, nil)
	if code != http.StatusOK || deleted["message"] != "Post deleted successfully." {
		t.Fatalf("delete: %d %v", code, deleted)
	}
	if code, _ := api.do(http.MethodGet, "/posts/"+id, "", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", code)
	}
	if code, _ := api.do(http.MethodGet, "/posts/not-an-id", "", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for malformed id, got %d", code)
	}
}

func TestServiceRoutes(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	if code, _ := api.do(http.MethodGet, "/health", "", nil); code != http.StatusOK {
		t.Fatalf("health: %d", code)
	}
	code, body := api.do(http.MethodGet, "/nope", "", nil)
	if code != http.StatusNotFound || body["message"] != "Endpoint not found" {
		t.Fatalf("expected JSON 404, got %d %v", code, body)
	}
	if code, _ := api.do(http.MethodGet, "/user/google/auth-url", "", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without Google credentials, got %d", code)
	}
}
