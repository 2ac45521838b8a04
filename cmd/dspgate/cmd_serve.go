package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/enp6s0/dspgate/pkg/cli"
	"github.com/enp6s0/dspgate/pkg/config"
	"github.com/enp6s0/dspgate/pkg/httpapi"
	"github.com/enp6s0/dspgate/pkg/tesira"
	"github.com/enp6s0/dspgate/pkg/util"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to the device and serve the REST API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(app)
	},
}

func runServe(a *App) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		util.Fatalf("cannot load config: %v", err)
	}

	level := cfg.Log.Level
	if a.verbose {
		level = "debug"
	}
	if err := util.SetLogLevel(level); err != nil {
		util.Warnf("invalid log level %q, keeping default: %v", level, err)
	}
	if cfg.Log.JSON || a.jsonLog {
		util.SetJSONFormat()
	}

	gw := tesira.NewGateway(tesira.GatewayConfig{
		Transport: tesira.TransportConfig{
			Host:     cfg.Connection.Host,
			Port:     cfg.Connection.Port,
			Username: cfg.Connection.Username,
			Password: cfg.Connection.Password,
		},
		Discovery: tesira.DiscoveryConfig{
			AttributeCache: cfg.DSP.AttributeCache,
		},
	})

	util.WithField("host", cfg.Connection.Host).Info("starting gateway")
	if err := gw.Start(); err != nil {
		return err
	}
	defer gw.Close()

	printDiscoverySummary(gw)

	server := httpapi.NewServer(gw, cfg.HTTP.Listen)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		util.Info("shutting down")
		return server.Shutdown(context.Background())
	}
}
