package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ogulcanaydogan/llm-audit-gate/internal/auditerr"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/config"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/engine"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/metrics"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	cfg := server.DefaultConfig()
	var cfgPath string
	var ceiling float64
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the text scanners over HTTP",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Port < 1 || cfg.Port > 65535 {
				return auditerr.Usage("invalid port %d", cfg.Port)
			}
			if cfgPath != "" {
				c, err := config.Load(cfgPath)
				if err != nil {
					return err
				}
				cfg.Detectors = c.Detectors
			}
			if cmd.Flags().Changed("toxicity-threshold") {
				cfg.ToxicityCeiling = &ceiling
			}

			rec := metrics.NewRecorder()
			eng := engine.New(engine.WithLogger(a.logger), engine.WithMetrics(rec))
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Port),
				Handler:           server.New(cfg, eng, rec, a.logger).Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				a.logger.Info("scan server listening", zap.String("addr", srv.Addr))
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				a.logger.Info("shutting down")
				return srv.Shutdown(ctx)
			}
		},
	}
	cmd.Flags().IntVar(&cfg.Port, "port", cfg.Port, "listen port")
	cmd.Flags().IntVar(&cfg.CacheTTLSeconds, "cache-ttl-seconds", cfg.CacheTTLSeconds, "verdict cache TTL in seconds; 0 disables the cache")
	cmd.Flags().StringVar(&cfgPath, "config", "", "optional configuration whose detectors block overrides the defaults")
	cmd.Flags().Float64Var(&ceiling, "toxicity-threshold", 0.2, "toxicity scanner ceiling")
	return cmd
}
