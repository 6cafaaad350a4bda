// Package mailer sends the password setup and reset emails over SMTP.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
	htmltemplate "html/template"
	texttemplate "text/template"

	"goodmoments/config"

	"github.com/wneessen/go-mail"
)

type Kind int

const (
	PasswordSetup Kind = iota
	PasswordReset
)

func (k Kind) String() string {
	if k == PasswordReset {
		return "password reset"
	}
	return "password setup"
}

// PasswordLink is one outgoing email.
type PasswordLink struct {
	Kind Kind
	To   string
	Name string
	URL  string
	// ExpiresIn is the token lifetime quoted in the body. Zero means one
	// hour.
	ExpiresIn time.Duration
}

var ErrDisabled = errors.New("mail delivery is not configured")

const senderName = "Good Moments"

type Mailer struct {
	cfg config.Mail
}

func New(cfg config.Mail) *Mailer {
	return &Mailer{cfg: cfg}
}

func (m *Mailer) Enabled() bool {
	return m.cfg.Enabled()
}

func (m *Mailer) SendPasswordLink(ctx context.Context, link PasswordLink) error {
	if !m.Enabled() {
		return ErrDisabled
	}

	msg, err := m.message(link)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.User),
		mail.WithPassword(m.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send %s email: %w", link.Kind, err)
	}
	return nil
}

func (m *Mailer) message(link PasswordLink) (*mail.Msg, error) {
	subject, text, html, err := Render(link)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(senderName, m.cfg.Sender()); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(link.To); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, text)
	msg.AddAlternativeString(mail.TypeTextHTML, html)
	return msg, nil
}

type content struct {
	Title  string
	Intro  string
	Action string
	Footer string
}

var contents = map[Kind]content{
	PasswordSetup: {
		Title:  "Set Password for Your Account",
		Intro:  "You requested to set a password for your account. This will allow you to sign in with your email address.",
		Action: "Set Password",
		Footer: "Note: If you prefer to continue using Google Sign In, you can ignore this email.",
	},
	PasswordReset: {
		Title:  "Reset Your Password",
		Intro:  "You requested to reset your password. Use the link below to create a new password.",
		Action: "Reset Password",
		Footer: "If you didn't request a password reset, your account is still secure. You can safely ignore this email.",
	},
}

type templateData struct {
	Title, Intro, Action, Footer string

	Name    string
	URL     string
	Expires string
}

var htmlBody = htmltemplate.Must(htmltemplate.New("html").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #333;">{{.Title}}</h2>
  <p>Hello {{.Name}},</p>
  <p>{{.Intro}}</p>
  <div style="text-align: center; margin: 30px 0;">
    <a href="{{.URL}}" style="background-color: #1976d2; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">{{.Action}}</a>
  </div>
  <p>Or copy and paste this link into your browser:</p>
  <p style="color: #666; word-break: break-all;">{{.URL}}</p>
  <p style="color: #999; font-size: 12px; margin-top: 30px;">This link will expire in {{.Expires}}. If you didn't request this, please ignore this email.</p>
  <p style="color: #999; font-size: 12px;">{{.Footer}}</p>
</div>
`))

var textBody = texttemplate.Must(texttemplate.New("text").Parse(`{{.Title}}

Hello {{.Name}},

{{.Intro}}

{{.Action}}: {{.URL}}

This link will expire in {{.Expires}}. If you didn't request this, please ignore this email.

{{.Footer}}
`))

// Render returns the subject and both bodies for a link.
func Render(link PasswordLink) (subject, text, html string, err error) {
	c, ok := contents[link.Kind]
	if !ok {
		return "", "", "", fmt.Errorf("unknown email kind %d", link.Kind)
	}
	name := link.Name
	if name == "" {
		name = "User"
	}
	data := templateData{
		Title:  c.Title,
		Intro:  c.Intro,
		Action: c.Action,
		Footer: c.Footer,
		Name:    name,
		URL:     link.URL,
		Expires: describeLifetime(link.ExpiresIn),
	}

	var textBuf, htmlBuf bytes.Buffer
	if err := textBody.Execute(&textBuf, data); err != nil {
		return "", "", "", fmt.Errorf("render text body: %w", err)
	}
	if err := htmlBody.Execute(&htmlBuf, data); err != nil {
		return "", "", "", fmt.Errorf("render html body: %w", err)
	}
	return c.Title, textBuf.String(), htmlBuf.String(), nil
}

// describeLifetime renders whole hours or minutes in words and anything
// else in Go duration syntax.
func describeLifetime(d time.Duration) string {
	if d <= 0 {
		d = time.Hour
	}
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return strconv.FormatInt(n, 10) + " " + unit + "s"
	}
	switch {
	case d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	default:
		return d.String()
	}
}
