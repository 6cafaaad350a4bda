package auth

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"goodmoments/apperr"
	"goodmoments/mailer"
	"goodmoments/models"
	"goodmoments/repositories"

	"golang.org/x/crypto/bcrypt"
)

const (
	defaultHashCost   = 12
	minPasswordLength = 6

	msgSomethingWrong = "Something went wrong"
	msgGenericSetup   = "If an account exists with this email, we've sent a password setup link."
)

// PasswordMailer delivers password setup and reset links.
type PasswordMailer interface {
	Enabled() bool
	SendPasswordLink(ctx context.Context, link mailer.PasswordLink) error
}

type Options struct {
	FrontendURL    string
	ResetTokenTTL  time.Duration
	ExposeDevLinks bool
	// HashCost defaults to 12.
	HashCost int
}

// Service implements password and Google sign-in on top of a UserStore.
type Service struct {
	users  repositories.UserStore
	issuer *Issuer
	mail   PasswordMailer
	opts   Options
	now    func() time.Time
}

func NewService(users repositories.UserStore, issuer *Issuer, mail PasswordMailer, opts Options) *Service {
	if opts.HashCost == 0 {
		opts.HashCost = defaultHashCost
	}
	if opts.ResetTokenTTL == 0 {
		opts.ResetTokenTTL = time.Hour
	}
	return &Service{
		users:  users,
		issuer: issuer,
		mail:   mail,
		opts:   opts,
		now:    time.Now,
	}
}

// Session is a user plus a freshly signed credential for them.
type Session struct {
	User    *models.User
	Token   string
	Created bool
}

// SignInResult holds either a Session or, for accounts without a password,
// the NeedsPassword outcome.
type SignInResult struct {
	Session       *Session
	NeedsPassword bool
	Message       string
	EmailSent     bool
}

// LinkResult describes a password setup or reset request.
type LinkResult struct {
	Message   string
	EmailSent bool
	DevLink   string
}

// PasswordSetResult is returned after a token-verified password change.
type PasswordSetResult struct {
	Session *Session
	Reset   bool
}

type GoogleIdentity struct {
	Email    string
	GoogleID string
	Name     string
	Picture  string
}

// normalizeEmail strips surrounding whitespace so stored and looked up
// addresses always agree.
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

func (s *Service) findByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(msgSomethingWrong, err)
	}
	return user, nil
}

func (s *Service) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.HashCost)
	if err != nil {
		return "", apperr.Wrap(msgSomethingWrong, err)
	}
	return string(hashed), nil
}

func (s *Service) session(user *models.User, created bool) (*Session, error) {
	token, err := s.issuer.Issue(user)
	if err != nil {
		return nil, apperr.Wrap(msgSomethingWrong, err)
	}
	return &Session{User: user, Token: token, Created: created}, nil
}

func (s *Service) save(ctx context.Context, user *models.User) error {
	if err := s.users.Save(ctx, user); err != nil {
		return apperr.Wrap(msgSomethingWrong, err)
	}
	return nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	email = normalizeEmail(email)
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.New(apperr.NotFound, "User doesn't exist")
	}

	if !user.HasPassword() {
		link, err := s.issueLink(ctx, user, mailer.PasswordSetup)
		if err != nil {
			return nil, err
		}
		return &SignInResult{
			NeedsPassword: true,
			Message:       "This account was created with Google login. We've sent you an email with a link to set your password. Please check your inbox.",
			EmailSent:     link.EmailSent,
		}, nil
	}

	if password == "" {
		return nil, apperr.New(apperr.BadRequest, "Password is required")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.New(apperr.BadRequest, "Invalid credentials")
	}

	sess, err := s.session(user, false)
	if err != nil {
		return nil, err
	}
	return &SignInResult{Session: sess}, nil
}

func (s *Service) SignUp(ctx context.Context, email, password, firstName, lastName string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.New(apperr.BadRequest, "Email and password are required")
	}
	name := strings.TrimSpace(firstName + " " + lastName)

	existing, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.HasPassword() {
		return nil, apperr.New(apperr.Conflict, "User already exists")
	}

	hashed, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		// Google-only account: attach the password to the same record.
		existing.PasswordHash = hashed
		if existing.Name == "" {
			existing.Name = name
		}
		if err := s.save(ctx, existing); err != nil {
			return nil, err
		}
		log.Printf("[SignUp] linked password to existing account %s", existing.ID.Hex())
		return s.session(existing, false)
	}

	user := &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: hashed,
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperr.New(apperr.Conflict, "User already exists")
		}
		return nil, apperr.Wrap(msgSomethingWrong, err)
	}
	return s.session(user, true)
}

// GoogleAuth maps a Google identity that the caller has already verified
// onto exactly one user. Email is the linking key; googleId covers an email
// change at the provider.
func (s *Service) GoogleAuth(ctx context.Context, id GoogleIdentity) (*Session, error) {
	id.Email = normalizeEmail(id.Email)
	if id.Email == "" || id.GoogleID == "" || id.Name == "" {
		return nil, apperr.New(apperr.BadRequest, "Missing required fields: email, googleId, name")
	}

	user, err := s.findByEmail(ctx, id.Email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		changed := false
		if user.GoogleID == "" {
			user.GoogleID = id.GoogleID
			changed = true
		}
		if user.Name == "" {
			user.Name = id.Name
			changed = true
		}
		if changed {
			if err := s.save(ctx, user); err != nil {
				return nil, err
			}
		}
		return s.session(user, false)
	}

	user, err = s.users.FindByGoogleID(ctx, id.GoogleID)
	if err == nil {
		return s.session(user, false)
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, apperr.Wrap(msgSomethingWrong, err)
	}

	user = &models.User{
		Email:     id.Email,
		Name:      id.Name,
		GoogleID:  id.GoogleID,
		CreatedAt: s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if !errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperr.Wrap(msgSomethingWrong, err)
		}
		// Lost a race with a concurrent first login. The conflict may be on
		// either unique index.
		return s.raceWinner(ctx, id)
	}
	return s.session(user, true)
}

// raceWinner loads the user created by a concurrent first Google login,
// matching by email first and then by googleId.
func (s *Service) raceWinner(ctx context.Context, id GoogleIdentity) (*Session, error) {
	user, err := s.findByEmail(ctx, id.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user, err = s.users.FindByGoogleID(ctx, id.GoogleID)
		if errors.Is(err, repositories.ErrNotFound) {
			err = errors.New("duplicate key reported but no user matches email or googleId")
		}
		if err != nil {
			return nil, apperr.Wrap(msgSomethingWrong, err)
		}
	}
	return s.session(user, false)
}

// RequestPasswordSetup answers identically for unknown emails and for
// accounts whose email was sent, so the endpoint does not reveal which
// addresses are registered.
func (s *Service) RequestPasswordSetup(ctx context.Context, email string) (*LinkResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperr.New(apperr.BadRequest, "Email is required")
	}
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return &LinkResult{Message: msgGenericSetup, EmailSent: s.mail.Enabled()}, nil
	}
	if user.HasPassword() {
		return nil, apperr.New(apperr.BadRequest, "Password already set. Please use Sign In or Forgot Password.")
	}

	link, err := s.issueLink(ctx, user, mailer.PasswordSetup)
	if err != nil {
		return nil, err
	}
	link.Message = msgGenericSetup
	return link, nil
}

// ForgotPassword reports unknown emails as NotFound, unlike
// RequestPasswordSetup.
func (s *Service) ForgotPassword(ctx context.Context, email string) (*LinkResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperr.New(apperr.BadRequest, "Email is required")
	}
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.New(apperr.NotFound, "Email does not exist in our system. Please check your email address or sign up first.")
	}

	kind := mailer.PasswordSetup
	message := "Password setup email sent. Please check your inbox."
	if user.HasPassword() {
		kind = mailer.PasswordReset
		message = "Password reset email sent. Please check your inbox."
	}
	link, err := s.issueLink(ctx, user, kind)
	if err != nil {
		return nil, err
	}
	link.Message = message
	return link, nil
}

func (s *Service) VerifyTokenAndSetPassword(ctx context.Context, token, email, password string) (*PasswordSetResult, error) {
	email = normalizeEmail(email)
	if token == "" || email == "" || password == "" {
		return nil, apperr.New(apperr.BadRequest, "Token, email, and password are required")
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return nil, apperr.New(apperr.BadRequest, "Password must be at least 6 characters long")
	}

	user, err := s.users.FindByResetToken(ctx, email, token, s.now())
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperr.New(apperr.BadRequest, "Invalid or expired token. Please request a new password reset link.")
	}
	if err != nil {
		return nil, apperr.Wrap(msgSomethingWrong, err)
	}

	reset := user.HasPassword()
	hashed, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hashed
	user.PasswordResetToken = ""
	user.PasswordResetExpires = nil
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}

	sess, err := s.session(user, false)
	if err != nil {
		return nil, err
	}
	return &PasswordSetResult{Session: sess, Reset: reset}, nil
}

// SetPassword is the token-less flow kept for clients that predate emailed
// links. It is only routed when explicitly enabled.
func (s *Service) SetPassword(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.New(apperr.BadRequest, "Email and password are required")
	}
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.New(apperr.NotFound, "User doesn't exist")
	}
	if user.HasPassword() {
		return nil, apperr.New(apperr.BadRequest, "Password already set. Please use Sign In instead.")
	}

	hashed, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hashed
	user.PasswordResetToken = ""
	user.PasswordResetExpires = nil
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}
	return s.session(user, false)
}

// issueLink stores a fresh one-time token on the user and tries to mail the
// link. Delivery failures are logged, never returned.
func (s *Service) issueLink(ctx context.Context, user *models.User, kind mailer.Kind) (*LinkResult, error) {
	token, err := newOneTimeToken()
	if err != nil {
		return nil, apperr.Wrap(msgSomethingWrong, err)
	}
	expires := s.now().Add(s.opts.ResetTokenTTL)
	user.PasswordResetToken = token
	user.PasswordResetExpires = &expires
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}

	link := mailer.PasswordLink{
		Kind:      kind,
		To:        user.Email,
		Name:      user.Name,
		URL:       s.linkURL(kind, token, user.Email),
		ExpiresIn: s.opts.ResetTokenTTL,
	}

	result := &LinkResult{}
	if !s.mail.Enabled() {
		log.Printf("[PasswordLink] mail delivery not configured, %s link for %s not sent", kind, user.Email)
	} else if err := s.mail.SendPasswordLink(ctx, link); err != nil {
		log.Printf("[PasswordLink] failed to send %s email to %s: %v", kind, user.Email, err)
	} else {
		result.EmailSent = true
	}

	if !result.EmailSent && s.opts.ExposeDevLinks {
		result.DevLink = link.URL
	}
	return result, nil
}

func (s *Service) linkURL(kind mailer.Kind, token, email string) string {
	path := "/auth/set-password"
	if kind == mailer.PasswordReset {
		path = "/auth/reset-password"
	}
	q := url.Values{}
	q.Set("token", token)
	q.Set("email", email)
	return strings.TrimRight(s.opts.FrontendURL, "/") + path + "?" + q.Encode()
}
