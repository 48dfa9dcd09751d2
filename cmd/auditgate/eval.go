package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ogulcanaydogan/llm-audit-gate/internal/config"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/engine"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/hash"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/metrics"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/report"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/suite"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/telemetry"
)

func newEvalCommand(a *app) *cobra.Command {
	var (
		cfgPath         string
		output          outputFlags
		workers         int
		caseTimeout     time.Duration
		modelEndpoint   string
		metricsTextfile string
		otlpEndpoint    string
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Run every configured eval category through the model and gate on thresholds",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := output.validate(); err != nil {
				return err
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			envOv, err := config.OverridesFromEnv()
			if err != nil {
				return err
			}
			if err := cfg.Apply(envOv); err != nil {
				return err
			}
			if err := cfg.Apply(config.Overrides{ModelEndpoint: modelEndpoint, Workers: workers, CaseTimeout: caseTimeout}); err != nil {
				return err
			}

			ctx := cmd.Context()
			tel, err := telemetry.Setup(ctx, otlpEndpoint, a.logger)
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tel.Shutdown(sctx); err != nil {
					a.logger.Warn("telemetry shutdown", zap.Error(err))
				}
			}()

			rec := metrics.NewRecorder()
			defer func() {
				if err := rec.WriteTextfile(metricsTextfile); err != nil {
					a.logger.Warn("write metrics textfile", zap.String("path", metricsTextfile), zap.Error(err))
				}
			}()

			plan, paths, err := suite.Eval(cfg, nil, a.logger)
			if err != nil {
				return err
			}
			verdict, err := engine.New(engine.WithLogger(a.logger), engine.WithMetrics(rec)).Run(ctx, plan)
			if err != nil {
				return err
			}

			inputs, err := hash.Subjects(append([]string{cfg.Path}, paths...)...)
			if err != nil {
				return err
			}
			rep, err := report.NewReport("eval", verdict, inputs)
			if err != nil {
				return err
			}
			if err := a.emit(cmd, output, rep); err != nil {
				return err
			}
			return verdictError(verdict)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", config.DefaultPath, "run configuration path")
	output.register(cmd)
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent case evaluations (overrides config and "+config.EnvWorkers+")")
	cmd.Flags().DurationVar(&caseTimeout, "case-timeout", 0, "timeout for one case, model call included")
	cmd.Flags().StringVar(&modelEndpoint, "model-endpoint", "", "OpenAI-compatible endpoint; empty uses the placeholder model")
	cmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this textfile")
	cmd.Flags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC collector (host:port) for traces")
	return cmd
}
