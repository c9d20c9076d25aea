package main

import (
	"context"
	"fmt"
	"log/slog"

	"club-registration/internal/api"
	"club-registration/internal/backend"
	"club-registration/internal/coaches"
	"club-registration/internal/config"
	"club-registration/internal/loading"
	"club-registration/internal/metrics"
	"club-registration/internal/registration"
	"club-registration/internal/sessions"
	"club-registration/internal/sheets"
)

// services is everything the commands share.
type services struct {
	api           *api.Client
	options       *sessions.Service
	registrations *registration.Service
	coaches       *coaches.Service
	loading       *loading.Tracker
	metrics       *metrics.Metrics
}

func newBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (backend.Backend, error) {
	switch cfg.Backend {
	case config.BackendSheets:
		return sheets.New(ctx, cfg.GoogleServiceAccountJSON, cfg.SpreadsheetID)
	default:
		return backend.NewWebApp(cfg.APIBaseURL, cfg.APIDeploymentID, cfg.APITimeout, log)
	}
}

func newServices(ctx context.Context, cfg config.Config, log *slog.Logger) (*services, error) {
	be, err := newBackend(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("%s backend: %w", cfg.Backend, err)
	}
	s := &services{
		loading: &loading.Tracker{},
		metrics: metrics.New(),
	}
	s.api = api.New(be, api.Options{
		CacheTTL: cfg.CacheTTL,
		Location: cfg.Location,
		Metrics:  s.metrics,
		Logger:   log,
	})
	s.options = sessions.NewService(s.api, sessions.Config{
		Location:     cfg.Location,
		Fallback:     cfg.Club.FallbackOptions,
		CoachOptions: cfg.Club.CoachOptions,
		Loading:      s.loading,
		Metrics:      s.metrics,
		Logger:       log,
	})
	s.registrations = registration.NewService(s.api, registration.Config{
		Location: cfg.Location,
		Loading:  s.loading,
		Metrics:  s.metrics,
		Logger:   log,
	})
	s.coaches = coaches.NewService(s.api, coaches.NewIssuer(cfg.TokenSecret, coaches.SessionTTL), log)
	return s, nil
}
