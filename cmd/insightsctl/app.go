package main

import (
	"fmt"
	"net/http"

	"github.com/goliatone/go-insights/components/session"
	"github.com/goliatone/go-insights/internal/config"
	"github.com/goliatone/go-insights/internal/logger"
	"github.com/goliatone/go-insights/pkg/client"
)

type app struct {
	cfg     config.Config
	log     *logger.Logger
	api     client.API
	session *session.Manager
	out     *printer
}

func (g *Globals) app() (*app, error) {
	cfg, err := config.Load(config.LoadOptions{
		File:    g.Config,
		EnvFile: g.EnvFile,
		Overrides: map[string]string{
			"base_url":  g.BaseURL,
			"log_level": g.LogLevel,
		},
	})
	if err != nil {
		return nil, err
	}
	log, err := logger.New(logger.Options{Mode: cfg.LogMode, Level: cfg.LogLevel})
	if err != nil {
		return nil, err
	}

	var (
		tokens session.TokenStore
		api    client.API
	)
	if g.Demo {
		store := session.NewMemoryTokenStore()
		api = newDemoBackend(store)
		_ = store.Set(demoToken)
		tokens = store
	} else {
		path := cfg.TokenFile
		if path == "" {
			if path, err = session.DefaultTokenPath(); err != nil {
				return nil, err
			}
		}
		opts := []session.FileOption{session.WithLogger(log)}
		if cfg.Sealed() {
			opts = append(opts, session.WithSealing([]byte(cfg.TokenHashKey), []byte(cfg.TokenBlockKey)))
		}
		store, err := session.NewFileTokenStore(path, opts...)
		if err != nil {
			return nil, err
		}
		api, err = client.NewHTTPClient(client.HTTPConfig{
			BaseURL:    cfg.BaseURL,
			Tokens:     store,
			HTTPClient: &http.Client{Timeout: cfg.RequestTimeout.Std()},
			Logger:     log,
			UserAgent:  "insightsctl",
		})
		if err != nil {
			return nil, err
		}
		tokens = store
	}

	manager, err := session.NewManager(session.Options{API: api, Tokens: tokens, Logger: log})
	if err != nil {
		return nil, err
	}
	out, err := newPrinter(g.Output)
	if err != nil {
		return nil, fmt.Errorf("insightsctl: %w", err)
	}
	return &app{cfg: cfg, log: log, api: api, session: manager, out: out}, nil
}

func (a *app) close() {
	a.log.Sync()
}
