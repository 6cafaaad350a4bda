package handlers

import (
	"net/http"

	"goodmoments/apperr"
	"goodmoments/auth"

	"github.com/gin-gonic/gin"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type googleRequest struct {
	Email    string `json:"email"`
	GoogleID string `json:"googleId"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type setPasswordRequest struct {
	Token    string `json:"token"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserHandler serves the /user endpoints.
type UserHandler struct {
	auth *auth.Service
}

func NewUserHandler(svc *auth.Service) *UserHandler {
	return &UserHandler{auth: svc}
}

// bind decodes the JSON body; field validation is left to the service so
// messages stay consistent.
func bind(c *gin.Context, tag string, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, tag, apperr.New(apperr.BadRequest, "Invalid request body"))
		return false
	}
	return true
}

func (h *UserHandler) SignIn(c *gin.Context) {
	var req signInRequest
	if !bind(c, "SignIn", &req) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.auth.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		respondError(c, "SignIn", err)
		return
	}
	if res.NeedsPassword {
		c.JSON(http.StatusOK, gin.H{
			"needsPassword": true,
			"message":       res.Message,
			"emailSent":     res.EmailSent,
		})
		return
	}
	c.JSON(http.StatusOK, sessionBody(res.Session.User, res.Session.Token))
}

func (h *UserHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if !bind(c, "SignUp", &req) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	sess, err := h.auth.SignUp(ctx, req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		respondError(c, "SignUp", err)
		return
	}
	status := http.StatusOK
	if sess.Created {
		status = http.StatusCreated
	}
	c.JSON(status, sessionBody(sess.User, sess.Token))
}

func (h *UserHandler) Google(c *gin.Context) {
	var req googleRequest
	if !bind(c, "GoogleAuth", &req) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	sess, err := h.auth.GoogleAuth(ctx, auth.GoogleIdentity{
		Email:    req.Email,
		GoogleID: req.GoogleID,
		Name:     req.Name,
		Picture:  req.Picture,
	})
	if err != nil {
		respondError(c, "GoogleAuth", err)
		return
	}
	c.JSON(http.StatusOK, sessionBody(sess.User, sess.Token))
}

func linkBody(res *auth.LinkResult) gin.H {
	body := gin.H{"message": res.Message, "emailSent": res.EmailSent}
	if res.DevLink != "" {
		body["devLink"] = res.DevLink
	}
	return body
}

func (h *UserHandler) RequestPasswordSetup(c *gin.Context) {
	var req emailRequest
	if !bind(c, "RequestPasswordSetup", &req) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.auth.RequestPasswordSetup(ctx, req.Email)
	if err != nil {
		respondError(c, "RequestPasswordSetup", err)
		return
	}
	c.JSON(http.StatusOK, linkBody(res))
}

func (h *UserHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !bind(c, "ForgotPassword", &req) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.auth.ForgotPassword(ctx, req.Email)
	if err != nil {
		respondError(c, "ForgotPassword", err)
		return
	}
	c.JSON(http.StatusOK, linkBody(res))
}

func (h *UserHandler) VerifyTokenAndSetPassword(c *gin.Context) {
	var req setPasswordRequest
	if !bind(c, "VerifyTokenAndSetPassword", &req) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.auth.VerifyTokenAndSetPassword(ctx, req.Token, req.Email, req.Password)
	if err != nil {
		respondError(c, "VerifyTokenAndSetPassword", err)
		return
	}
	body := sessionBody(res.Session.User, res.Session.Token)
	body["message"] = "Password set successfully"
	if res.Reset {
		body["message"] = "Password reset successfully"
	}
	c.JSON(http.StatusOK, body)
}

// SetPassword is only routed when LEGACY_SET_PASSWORD is on.
func (h *UserHandler) SetPassword(c *gin.Context) {
	var req setPasswordRequest
	if !bind(c, "SetPassword", &req) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	sess, err := h.auth.SetPassword(ctx, req.Email, req.Password)
	if err != nil {
		respondError(c, "SetPassword", err)
		return
	}
	body := sessionBody(sess.User, sess.Token)
	body["message"] = "Password set successfully"
	c.JSON(http.StatusOK, body)
}
