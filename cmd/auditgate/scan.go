package main

import (
	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/llm-audit-gate/internal/cases"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/config"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/detector"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/engine"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/hash"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/report"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/suite"
)

type scanSpec struct {
	scanner string
	short   string
}

var (
	piiSpec       = scanSpec{scanner: suite.PII, short: "List emails, SSNs and phone numbers found in a file"}
	injectionSpec = scanSpec{scanner: suite.Injection, short: "Flag prompt-injection phrases in a file"}
	toxicitySpec  = scanSpec{scanner: suite.Toxicity, short: "Score a file's toxicity against a ceiling"}
)

type scanFlags struct {
	cfgPath string
	output  outputFlags
}

func (f *scanFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.cfgPath, "config", "", "optional configuration whose detectors block overrides the defaults")
	f.output.register(cmd)
}

func (f *scanFlags) settings() (detector.Settings, error) {
	if f.cfgPath == "" {
		return detector.DefaultSettings(), nil
	}
	cfg, err := config.Load(f.cfgPath)
	if err != nil {
		return detector.Settings{}, err
	}
	return cfg.Detectors, nil
}

func newScanCommand(a *app, spec scanSpec) *cobra.Command {
	var flags scanFlags
	var ceiling float64
	cmd := &cobra.Command{
		Use:   spec.scanner + " <file>",
		Short: spec.short,
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts suite.ScanOptions
			if spec.scanner == suite.Toxicity {
				opts.ToxicityCeiling = &ceiling
			}
			src, err := cases.ReadFile(args[0])
			if err != nil {
				return err
			}
			return a.scan(cmd, spec.scanner, flags, src, opts, args[0])
		},
	}
	flags.register(cmd)
	if spec.scanner == suite.Toxicity {
		cmd.Flags().Float64Var(&ceiling, "threshold", suite.DefaultToxicityCeiling, "fail when the score is above this value")
	}
	return cmd
}

func newImbalanceCommand(a *app) *cobra.Command {
	var flags scanFlags
	var lower, upper float64
	cmd := &cobra.Command{
		Use:   "imbalance <csv> <column>",
		Short: "Check that every label of a CSV column stays inside a share band",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts suite.ScanOptions
			if cmd.Flags().Changed("lower") {
				opts.Lower = &lower
			}
			if cmd.Flags().Changed("upper") {
				opts.Upper = &upper
			}
			src, err := cases.CSVColumn(args[0], args[1])
			if err != nil {
				return err
			}
			return a.scan(cmd, suite.Imbalance, flags, src, opts, args[0])
		},
	}
	flags.register(cmd)
	cmd.Flags().Float64Var(&lower, "lower", 0.05, "minimum share of any label")
	cmd.Flags().Float64Var(&upper, "upper", 0.80, "maximum share of any label")
	return cmd
}

func (a *app) scan(cmd *cobra.Command, scanner string, flags scanFlags, src cases.Source, opts suite.ScanOptions, input string) error {
	if err := flags.output.validate(); err != nil {
		return err
	}
	settings, err := flags.settings()
	if err != nil {
		return err
	}
	plan, err := suite.Scan(scanner, settings, src, opts)
	if err != nil {
		return err
	}
	verdict, err := engine.New(engine.WithLogger(a.logger)).Run(cmd.Context(), plan)
	if err != nil {
		return err
	}
	inputs, err := hash.Subjects(input)
	if err != nil {
		return err
	}
	rep, err := report.NewReport(scanner, verdict, inputs)
	if err != nil {
		return err
	}
	if err := a.emit(cmd, flags.output, rep); err != nil {
		return err
	}
	return verdictError(verdict)
}
