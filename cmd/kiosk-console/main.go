// kiosk-console runs the kiosk in a terminal: the visitor landing page, a
// ticket with its countdown, or the administrator dashboard, all fed by the
// same queue backend as kiosk-service.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"qms/kiosk-service/internal/backend"
	"qms/kiosk-service/internal/catalog"
	"qms/kiosk-service/internal/clock"
	"qms/kiosk-service/internal/config"
	"qms/kiosk-service/internal/console"
	"qms/kiosk-service/internal/logging"
	"qms/kiosk-service/internal/models"
	"qms/kiosk-service/internal/notify"
	"qms/kiosk-service/internal/queuestatus"
	"qms/kiosk-service/internal/ticket"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	var (
		backendURL   string
		adminKey     string
		pollInterval time.Duration
		window       int
		logFile      string
		screenFlag   string
		ticketFlag   string
	)
	flagSet := pflag.NewFlagSet("kiosk-console", pflag.ContinueOnError)
	flagSet.StringVar(&backendURL, "backend", cfg.BackendURL, "queue backend base URL")
	flagSet.StringVar(&adminKey, "admin-key", cfg.AdminAPIKey, "admin credential sent on service changes")
	flagSet.DurationVar(&pollInterval, "poll-interval", cfg.PollInterval, "queue status poll interval")
	flagSet.IntVar(&window, "window", cfg.ChartWindow, "points kept in the wait trend")
	flagSet.StringVar(&logFile, "log-file", "", "write logs to this file (logs are discarded otherwise)")
	flagSet.StringVar(&screenFlag, "screen", string(console.ScreenVisitor), "start screen: visitor, admin or ticket")
	flagSet.StringVar(&ticketFlag, "ticket", "", "ticket id to open with --screen ticket")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	screen, ok := console.ParseScreen(screenFlag)
	if !ok {
		return fmt.Errorf("unknown screen %q", screenFlag)
	}
	if screen == console.ScreenTicket && ticketFlag == "" {
		return fmt.Errorf("--screen ticket needs --ticket")
	}

	// The terminal belongs to the UI; logs only go to a file.
	output := "discard"
	if logFile != "" {
		output = logFile
	}
	logger, closeLog, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: "json", Output: output})
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := backend.New(backend.Options{
		BaseURL:     backendURL,
		AdminAPIKey: adminKey,
		Timeout:     cfg.RequestTimeout,
	})
	notifier := notify.Logger(logger)
	bridge := console.NewBridge()
	defer bridge.Close()

	model := console.NewModel(ctx, console.Deps{
		Catalog: catalog.New(client, notifier),
		Tickets: ticket.NewController(client, notifier, clock.Real()),
		Poller: queuestatus.New(client, queuestatus.Options{
			Interval: pollInterval,
			Timeout:  cfg.RequestTimeout,
			Notifier: notifier,
			Logger:   logger,
		}),
		Notifier: notifier,
		Bridge:   bridge,
		Window:   window,
	}, screen, models.ID(ticketFlag))
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.SetProgram(program)
	_, err = program.Run()
	if err == tea.ErrProgramKilled {
		return nil
	}
	return err
}
