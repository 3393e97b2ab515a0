package auth

import (
	"context"
	"fmt"
	"io"

	"github.com/johnsto/go-passwordless"
)

// transportName selects how login tokens leave the system. Outside of
// production the token is logged instead of emailed.
func (a *Auth) transportName() string {
	if a.Environment == EnvProduction {
		return "Email"
	}
	return "Log"
}

// Request sends the recipient a one-time login token
func (a *Auth) Request(ctx context.Context, uid, recipient string) error {
	return a.pw.RequestToken(ctx, a.transportName(), uid, recipient)
}

// Verify reports whether the presented login token matches the outstanding
// one for the user. An expired or wrong token is a false result, not an
// error; only transport and store misconfigurations surface as errors.
func (a *Auth) Verify(ctx context.Context, uid, token string) (bool, error) {
	valid, err := a.pw.VerifyToken(ctx, uid, token)
	switch err {
	case passwordless.ErrNoResponseWriter, passwordless.ErrNoStore, passwordless.ErrNoTransport, passwordless.ErrNotValidForContext:
		return valid, err
	default:
		return valid, nil
	}
}

// loginEmailComposer renders the sign-in email around the generated token
func loginEmailComposer(options EmailOption) passwordless.ComposerFunc {
	return func(ctx context.Context, token, uid, recipient string, w io.Writer) error {
		e := &passwordless.Email{
			Subject: fmt.Sprintf("Sign in to %s", options.Name),
			To:      recipient,
		}

		link := options.LinkGenerator(uid, token)

		text := fmt.Sprintf(
			"A sign-in to %s was requested for this address.\n\n"+
				"Your code is %s and expires in 15 minutes. You can also open this link to sign in:\n%s\n\n"+
				"If you did not request this email, you can safely ignore it.",
			options.Name, token, link)
		html := fmt.Sprintf(
			"<!doctype html><html><body>"+
				"<p>A sign-in to %s was requested for this address.</p>"+
				"<p>Your code is <b>%s</b> and expires in 15 minutes, or <a href=%q>sign in directly</a>.</p>"+
				"<p>If you did not request this email, you can safely ignore it.</p>"+
				"</body></html>",
			options.Name, token, link)

		e.AddBody("text/plain", text)
		e.AddBody("text/html", html)

		_, err := e.Write(w)
		return err
	}
}
