package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oriys/quasar/internal/config"
	"github.com/oriys/quasar/internal/dispatch"
	"github.com/oriys/quasar/internal/logging"
	"github.com/oriys/quasar/internal/metrics"
	"github.com/oriys/quasar/internal/observability"
	"github.com/oriys/quasar/internal/sqlconn"
)

func daemonCmd() *cobra.Command {
	var (
		logLevel    string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the Quasar daemon",
		Long:  "Run the query dispatcher: connections from config, SIGHUP reload, results drained on the main loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if configFile != "" {
				var err error
				cfg, err = config.LoadFromFile(configFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			config.LoadFromEnv(cfg)

			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("metrics") {
				cfg.Metrics.Addr = metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logging.InitStructured(cfg.LogFormat, cfg.LogLevel)

			if err := observability.Init(context.Background(), observability.Config{
				Enabled:     cfg.Tracing.Enabled,
				Exporter:    cfg.Tracing.Exporter,
				Endpoint:    cfg.Tracing.Endpoint,
				ServiceName: cfg.Tracing.ServiceName,
				SampleRate:  cfg.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(context.Background())

			var metricsSrv *http.Server
			if cfg.Metrics.Enabled {
				metrics.Init(cfg.Metrics.Namespace, nil)
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
				go func() {
					if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logging.Op().Error("metrics server failed", "error", err)
					}
				}()
				logging.Op().Info("metrics endpoint started", "addr", cfg.Metrics.Addr)
			}

			coord := dispatch.New(nil)
			coord.Start()
			coord.Reload(connectionConfigs(cfg))

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

			ticker := time.NewTicker(cfg.DrainInterval)
			defer ticker.Stop()

			for {
				select {
				case sig := <-sigCh:
					if sig == syscall.SIGHUP {
						logging.Op().Info("reloading configuration")
						next, err := config.LoadFromFile(configFile)
						if err != nil {
							logging.Op().Error("reload failed, keeping previous config", "error", err)
							continue
						}
						config.LoadFromEnv(next)
						if err := next.Validate(); err != nil {
							logging.Op().Error("reload rejected", "error", err)
							continue
						}
						cfg = next
						coord.Reload(connectionConfigs(cfg))
						continue
					}

					logging.Op().Info("shutdown signal received")
					coord.Shutdown()
					if metricsSrv != nil {
						metricsSrv.Close()
					}
					return nil

				case <-coord.Notifications():
					coord.Drain()

				case <-ticker.C:
					coord.Drain()
				}
			}
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")
	cmd.Flags().StringVar(&metricsAddr, "metrics", ":9100", "Prometheus listen address")

	return cmd
}

func connectionConfigs(cfg *config.Config) []sqlconn.Config {
	out := make([]sqlconn.Config, 0, len(cfg.Connections))
	for _, b := range cfg.Connections {
		out = append(out, sqlconn.Config{
			Name:     b.Name,
			Server:   b.Server,
			Port:     b.Port,
			Database: b.Database,
			Username: b.Username,
			Password: b.Password,
		})
	}
	return out
}
