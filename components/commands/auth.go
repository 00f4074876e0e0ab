package commands

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	gocommand "github.com/goliatone/go-command"
)

var (
	errMissingSession  = errors.New("commands: session is required")
	errMissingEmail    = errors.New("commands: email is required")
	errInvalidEmail    = errors.New("commands: email is invalid")
	errMissingPassword = errors.New("commands: password is required")
)

type sessionAuth interface {
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, name, email, password string) error
	Logout()
}

// LoginInput carries sign-in credentials.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginCommand signs in through the session manager.
type LoginCommand struct {
	session   sessionAuth
	telemetry Telemetry
}

// NewLoginCommand builds a command instance.
func NewLoginCommand(session sessionAuth, telemetry Telemetry) *LoginCommand {
	return &LoginCommand{session: session, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[LoginInput] = (*LoginCommand)(nil)

// Execute validates the credentials and signs in.
func (c *LoginCommand) Execute(ctx context.Context, msg LoginInput) error {
	if c.session == nil {
		return errMissingSession
	}
	email, err := validateCredentials(msg.Email, msg.Password)
	if err != nil {
		return err
	}
	if err := c.session.Login(ctx, email, msg.Password); err != nil {
		c.telemetry.Record(ctx, "auth.login.failed", map[string]any{"email": email})
		return err
	}
	c.telemetry.Record(ctx, "auth.login", map[string]any{"email": email})
	return nil
}

// RegisterInput carries the registration form. Name is optional.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterCommand creates an account and signs in.
type RegisterCommand struct {
	session   sessionAuth
	telemetry Telemetry
}

// NewRegisterCommand builds a command instance.
func NewRegisterCommand(session sessionAuth, telemetry Telemetry) *RegisterCommand {
	return &RegisterCommand{session: session, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[RegisterInput] = (*RegisterCommand)(nil)

// Execute validates the form and registers.
func (c *RegisterCommand) Execute(ctx context.Context, msg RegisterInput) error {
	if c.session == nil {
		return errMissingSession
	}
	email, err := validateCredentials(msg.Email, msg.Password)
	if err != nil {
		return err
	}
	if err := c.session.Register(ctx, msg.Name, email, msg.Password); err != nil {
		c.telemetry.Record(ctx, "auth.register.failed", map[string]any{"email": email})
		return err
	}
	c.telemetry.Record(ctx, "auth.register", map[string]any{"email": email})
	return nil
}

// LogoutInput has no fields; logout always applies to the single session.
type LogoutInput struct{}

// LogoutCommand discards the session locally.
type LogoutCommand struct {
	session   sessionAuth
	telemetry Telemetry
}

// NewLogoutCommand builds a command instance.
func NewLogoutCommand(session sessionAuth, telemetry Telemetry) *LogoutCommand {
	return &LogoutCommand{session: session, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[LogoutInput] = (*LogoutCommand)(nil)

// Execute signs out. It never fails once a session is configured.
func (c *LogoutCommand) Execute(ctx context.Context, _ LogoutInput) error {
	if c.session == nil {
		return errMissingSession
	}
	c.session.Logout()
	c.telemetry.Record(ctx, "auth.logout", nil)
	return nil
}

func validateCredentials(email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", errMissingEmail
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", errInvalidEmail
	}
	if password == "" {
		return "", errMissingPassword
	}
	return email, nil
}
