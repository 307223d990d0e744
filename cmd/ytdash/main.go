package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nwchenyw/tw-live-frontend/internal/config"
	"github.com/nwchenyw/tw-live-frontend/internal/dashboard"
	"github.com/nwchenyw/tw-live-frontend/internal/gateway"
	"github.com/nwchenyw/tw-live-frontend/internal/logger"
	"github.com/nwchenyw/tw-live-frontend/internal/tui"
	"github.com/nwchenyw/tw-live-frontend/pkg/version"
)

func main() {
	var (
		configPath  string
		baseURL     string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&baseURL, "url", "", "Backend base URL (overrides dashboard.base_url)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if baseURL != "" {
		cfg.Dashboard.BaseURL = baseURL
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	appLog := logger.FromLogrus(log).WithField("component", "dashboard")

	gw, err := gateway.New(cfg.Dashboard.BaseURL,
		gateway.WithTimeout(cfg.Dashboard.RequestTimeout),
		gateway.WithLogger(appLog),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid backend URL: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	session := dashboard.NewLocalSession()
	queue := dashboard.NewQueue(16)
	updates := make(chan struct{}, 1)

	ctrl := dashboard.New(gw, session,
		dashboard.WithNotifier(queue),
		dashboard.WithNotifier(dashboard.LogNotifier{Logger: appLog}),
		dashboard.WithListener(tui.Forward(updates)),
		dashboard.WithLogger(appLog),
		dashboard.WithReconcileOptions(dashboard.ReconcileOptions{
			Location:   cfg.Dashboard.Location(),
			TimeFormat: cfg.Dashboard.TimeFormat,
		}),
		dashboard.WithViewConfig(dashboard.ViewConfig{
			IntervalSeconds: cfg.Dashboard.IntervalSeconds,
			PageSize:        cfg.Dashboard.PageSize,
		}),
	)
	defer ctrl.Close()

	log.WithFields(logrus.Fields{
		"base_url": gw.BaseURL(),
		"interval": cfg.Dashboard.IntervalSeconds,
	}).Info("Starting dashboard")

	m := tui.New(ctx, ctrl, session,
		tui.WithUpdates(updates),
		tui.WithNotifications(queue.C()),
		tui.WithBaseURL(gw.BaseURL()),
	)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("Dashboard exited with error")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log.Info("Dashboard stopped")
}

// newLogger writes to the configured dashboard log file. Without one, logs
// are discarded since the terminal belongs to the UI.
func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	if cfg.Dashboard.LogFile == "" {
		l := logrus.New()
		l.SetOutput(io.Discard)
		return l, nil
	}
	lc := cfg.Logging
	lc.Output = cfg.Dashboard.LogFile
	return logger.New(&lc)
}
