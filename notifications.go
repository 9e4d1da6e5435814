package auth

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"
)

// DefaultEmailTimeout bounds a single email dispatch
const DefaultEmailTimeout = 10 * time.Second

var emailTemplates = template.Must(template.New("email").Parse(`
{{define "verify"}}<h2>Welcome, {{.Name}}!</h2>
<p>Please confirm your email address to finish setting up your account.</p>
<p><a href="{{.Link}}">Verify email</a></p>
<p>This link expires in {{.TTL}}. If you did not create an account, ignore this email.</p>{{end}}
{{define "reset"}}<h2>Password reset</h2>
<p>Hi {{.Name}}, we received a request to reset your password.</p>
<p><a href="{{.Link}}">Choose a new password</a></p>
<p>This link expires in {{.TTL}}. If you did not ask for a reset, ignore this email.</p>{{end}}
{{define "welcome"}}<h2>You're all set, {{.Name}}!</h2>
<p>Your email is verified and your account is ready.</p>
<p><a href="{{.Link}}">Open {{.App}}</a></p>{{end}}
`))

type emailData struct {
	App  string
	Name string
	Link string
	TTL  string
}

// Notifier renders and sends the account emails
type Notifier struct {
	mailer      Mailer
	frontendURL string
	appName     string
	timeout     time.Duration
}

// NewNotifier returns a notifier linking into frontendURL
func NewNotifier(mailer Mailer, frontendURL string) *Notifier {
	return &Notifier{
		mailer:      mailer,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		appName:     "CureNova",
		timeout:     DefaultEmailTimeout,
	}
}

// WithAppName sets the product name used in copy
func (n *Notifier) WithAppName(name string) *Notifier {
	if name != "" {
		n.appName = name
	}
	return n
}

// WithTimeout bounds each dispatch
func (n *Notifier) WithTimeout(timeout time.Duration) *Notifier {
	if timeout > 0 {
		n.timeout = timeout
	}
	return n
}

func (n *Notifier) SendVerification(ctx context.Context, account *Account, token string, ttl time.Duration) error {
	return n.send(ctx, account, "verify", "Verify your email address", n.link("/verify-email", token), ttl)
}

func (n *Notifier) SendPasswordReset(ctx context.Context, account *Account, token string, ttl time.Duration) error {
	return n.send(ctx, account, "reset", "Reset your password", n.link("/reset-password", token), ttl)
}

func (n *Notifier) SendWelcome(ctx context.Context, account *Account) error {
	return n.send(ctx, account, "welcome", fmt.Sprintf("Welcome to %s", n.appName), n.frontendURL+"/", 0)
}

func (n *Notifier) link(path, token string) string {
	return n.frontendURL + path + "?token=" + url.QueryEscape(token)
}

func (n *Notifier) send(ctx context.Context, account *Account, tpl, subject, link string, ttl time.Duration) error {
	if n == nil || n.mailer == nil {
		return nil
	}

	data := emailData{
		App:  n.appName,
		Name: account.Name,
		Link: link,
		TTL:  humanDuration(ttl),
	}

	var html bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&html, tpl, data); err != nil {
		return err
	}

	text := fmt.Sprintf("Hi %s,\n\n%s:\n%s\n", account.Name, subject, link)

	// detached from the request so a finished request does not abort delivery
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	return n.mailer.Send(ctx, EmailMessage{
		To:      account.Email,
		Subject: subject,
		Text:    text,
		HTML:    html.String(),
	})
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return ""
	case d%(24*time.Hour) == 0:
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "24 hours"
		}
		return fmt.Sprintf("%d days", days)
	case d%time.Hour == 0:
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	default:
		return d.String()
	}
}
