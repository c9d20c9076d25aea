package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"club-registration/internal/dates"
	"club-registration/internal/reports"
	"club-registration/internal/server"
	"club-registration/internal/tgbot"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, when TELEGRAM_BOT_TOKEN is set, the Telegram bot",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TokenSecretGenerated {
		logger.Warn("TOKEN_SECRET is not set; sessions and download links end with the process")
	}

	svc, err := newServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	svc.api.Prefetch(ctx)

	httpSrv := server.New(cfg, server.Deps{
		API:           svc.api,
		Options:       svc.options,
		Registrations: svc.registrations,
		Coaches:       svc.coaches,
		Loading:       svc.loading,
		Metrics:       svc.metrics,
		Logger:        logger,
		Club:          cfg.Club,
		ExportSecret:  cfg.TokenSecret,
		CORSOrigins:   cfg.CORSOrigins,
	})

	errs := make(chan error, 2)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr, "backend", cfg.Backend)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()

	if cfg.TelegramToken != "" {
		botApp, err := tgbot.New(cfg, tgbot.Deps{
			API:           svc.api,
			Options:       svc.options,
			Registrations: svc.registrations,
			Club:          cfg.Club,
			Logger:        logger,
		})
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		go func() {
			if err := botApp.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errs <- fmt.Errorf("bot stopped: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errs:
		logger.Error("stopping", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	logger.Info("bye")
	return runErr
}

var optionsDate string

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Print the session options offered on a day",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newServices(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		day := svc.options.Today()
		if optionsDate != "" {
			d, ok := dates.ParseDay(optionsDate, cfg.Location)
			if !ok {
				return fmt.Errorf("invalid --date %q", optionsDate)
			}
			day = d
		}
		for _, opt := range svc.options.OptionsFor(cmd.Context(), day) {
			fmt.Fprintln(cmd.OutOrStdout(), opt)
		}
		return nil
	},
}

var reportCSV bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the participation and coaching hours report",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newServices(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		rep, err := reports.Load(cmd.Context(), svc.api, cfg.Club.AgeGroups, cfg.Club.HoursPerSession)
		if err != nil {
			return err
		}
		if reportCSV {
			return reports.WriteCSV(cmd.OutOrStdout(), rep)
		}
		return printReport(cmd, rep)
	},
}

func init() {
	optionsCmd.Flags().StringVar(&optionsDate, "date", "", "day to resolve (YYYY-MM-DD), default today")
	reportCmd.Flags().BoolVar(&reportCSV, "csv", false, "write the report as CSV")
}

func printReport(cmd *cobra.Command, rep reports.Report) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, g := range rep.Groups {
		fmt.Fprintf(tw, "%s\tpersons\tparticipations\n", g.AgeGroup)
		for _, r := range g.Rows {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", r.Session, r.Persons, r.Participations)
		}
		fmt.Fprintf(tw, "total\t%d\t%d\n\n", g.TotalPersons, g.TotalParticipations)
	}
	fmt.Fprintln(tw, "coach\tsessions\thours")
	for _, c := range rep.Coaches {
		fmt.Fprintf(tw, "%s\t%d\t%g\n", c.Name, len(c.Sessions), c.Hours)
	}
	fmt.Fprintf(tw, "total\t\t%g\n", rep.TotalHours)
	return tw.Flush()
}
