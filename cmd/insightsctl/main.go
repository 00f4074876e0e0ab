package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

type cli struct {
	Globals

	Login     loginCmd     `cmd:"" help:"Sign in and store the access token."`
	Register  registerCmd  `cmd:"" help:"Create an account and sign in."`
	Logout    logoutCmd    `cmd:"" help:"Discard the stored access token."`
	Whoami    whoamiCmd    `cmd:"" help:"Show the signed-in user."`
	Profile   profileCmd   `cmd:"" help:"Show the user profile with usage counters."`
	Datasets  datasetsCmd  `cmd:"" help:"List datasets, optionally until processing finishes."`
	Upload    uploadCmd    `cmd:"" help:"Upload a CSV, Excel or JSON dataset."`
	Dashboard dashboardCmd `cmd:"" help:"Show the generated dashboard and insights for a dataset."`
	Serve     serveCmd     `cmd:"" help:"Serve an HTML preview of datasets and dashboards."`
}

// Globals are flags shared by every command.
type Globals struct {
	Config   string `short:"c" type:"path" help:"YAML configuration file."`
	EnvFile  string `name:"env-file" default:".env" help:"dotenv file merged before the environment."`
	BaseURL  string `name:"base-url" help:"Backend origin (overrides INSIGHTS_BACKEND_BASE_URL)."`
	LogLevel string `name:"log-level" help:"debug, info, warn or error."`
	Output   string `short:"o" enum:"text,yaml,json" default:"text" help:"Output format (text, yaml, json)."`
	Demo     bool   `help:"Run against an in-memory backend with sample data."`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var root cli
	kctx := kong.Parse(&root,
		kong.Name("insightsctl"),
		kong.Description("Command line client for the dataset insights service."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	err := kctx.Run(&root.Globals)
	kctx.FatalIfErrorf(err)
}
