package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/goliatone/go-insights/components/commands"
	"github.com/goliatone/go-insights/pkg/client"
)

var errNotSignedIn = errors.New("insightsctl: not signed in (run insightsctl login)")

type loginCmd struct {
	Email    string `required:"" help:"Account email."`
	Password string `env:"INSIGHTS_PASSWORD" help:"Account password (prompted when omitted)."`
}

func (cmd *loginCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.app()
	if err != nil {
		return err
	}
	defer a.close()
	password, err := passwordOrPrompt(cmd.Password)
	if err != nil {
		return err
	}
	login := commands.NewLoginCommand(a.session, commands.NewLogTelemetry(a.log))
	if err := login.Execute(ctx, commands.LoginInput{Email: cmd.Email, Password: password}); err != nil {
		return userError(err)
	}
	return a.signedInAs()
}

type registerCmd struct {
	Name     string `help:"Display name."`
	Email    string `required:"" help:"Account email."`
	Password string `env:"INSIGHTS_PASSWORD" help:"Account password (prompted when omitted)."`
}

func (cmd *registerCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.app()
	if err != nil {
		return err
	}
	defer a.close()
	password, err := passwordOrPrompt(cmd.Password)
	if err != nil {
		return err
	}
	register := commands.NewRegisterCommand(a.session, commands.NewLogTelemetry(a.log))
	if err := register.Execute(ctx, commands.RegisterInput{Name: cmd.Name, Email: cmd.Email, Password: password}); err != nil {
		return userError(err)
	}
	return a.signedInAs()
}

type logoutCmd struct{}

func (cmd *logoutCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.app()
	if err != nil {
		return err
	}
	defer a.close()
	logout := commands.NewLogoutCommand(a.session, commands.NewLogTelemetry(a.log))
	if err := logout.Execute(ctx, commands.LogoutInput{}); err != nil {
		return err
	}
	if a.out.text() {
		a.out.line("Signed out.")
	}
	return nil
}

type whoamiCmd struct{}

func (cmd *whoamiCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.app()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	return a.out.profile(*a.session.State().User, false)
}

type profileCmd struct{}

func (cmd *profileCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.app()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	profile, err := commands.NewProfileQuery(a.api, a.session).Query(ctx, commands.ProfileRequest{WithStats: true})
	if err != nil {
		return userError(err)
	}
	return a.out.profile(profile, true)
}

// requireSession resolves the stored credential. A rejected token is
// discarded by the session manager.
func (a *app) requireSession(ctx context.Context) error {
	if err := a.session.Start(ctx); err != nil {
		a.log.Debug("session verification failed", "error", err)
	}
	if !a.session.State().Authenticated() {
		return errNotSignedIn
	}
	return nil
}

func (a *app) signedInAs() error {
	user := a.session.State().User
	if user == nil {
		return errNotSignedIn
	}
	if a.out.text() {
		a.out.line("Signed in as %s.", user.Email)
		return nil
	}
	_, err := a.out.structured(user)
	return err
}

func passwordOrPrompt(password string) (string, error) {
	if password != "" {
		return password, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	return readPassword(os.Stdin)
}

// readPassword reads without echo from a terminal and falls back to a single
// line for piped input.
func readPassword(in *os.File) (string, error) {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("insightsctl: read password: %w", err)
		}
		return string(raw), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("insightsctl: read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// userError keeps server-supplied messages and hides transport details.
func userError(err error) error {
	var apiErr *client.Error
	if errors.As(err, &apiErr) {
		return errors.New(client.Message(err))
	}
	return err
}
