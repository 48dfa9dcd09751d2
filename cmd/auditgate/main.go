package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ogulcanaydogan/llm-audit-gate/internal/auditerr"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/config"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/logging"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/report"
	"github.com/ogulcanaydogan/llm-audit-gate/pkg/types"
)

type cliError struct {
	code int
	err  error
}

func (e cliError) Error() string { return e.err.Error() }

func (e cliError) Unwrap() error { return e.err }

var errAuditFailed = errors.New("audit gate failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := newRootCommand()
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitCodeFor(err))
}

// exitCodeFor maps a command error onto the process exit status.
func exitCodeFor(err error) int {
	if err == nil {
		return report.ExitPass
	}
	var ce cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	if auditerr.IsUsage(err) || auditerr.IsLoad(err) {
		return report.ExitUsage
	}
	return report.ExitError
}

// verdictError returns nil for a passing verdict.
func verdictError(v types.Verdict) error {
	if v.Passed {
		return nil
	}
	return cliError{code: report.ExitFail, err: errAuditFailed}
}

type app struct {
	logLevel  string
	logFormat string
	noColor   bool
	logger    *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{logger: zap.NewNop()}
	root := &cobra.Command{
		Use:           "auditgate",
		Short:         "Threshold-gated content audits for LLM inputs, outputs and datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Positional arguments on the root are unknown subcommands.
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			logger, err := logging.New(a.logLevel, a.logFormat)
			if err != nil {
				return auditerr.Usage("%v", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return auditerr.Usage("%v", err)
	})
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", config.EnvDefault(config.EnvLogLevel, "info"), "log level (debug|info|warn|error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", config.EnvDefault(config.EnvLogFormat, logging.FormatConsole), "log format (console|json)")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newEvalCommand(a))
	root.AddCommand(newScanCommand(a, piiSpec))
	root.AddCommand(newScanCommand(a, injectionSpec))
	root.AddCommand(newScanCommand(a, toxicitySpec))
	root.AddCommand(newImbalanceCommand(a))
	root.AddCommand(newReportCommand())
	root.AddCommand(newServeCommand(a))
	return root
}

// usageArgs turns cobra positional-argument errors into usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return auditerr.Usage("%s: %v", cmd.CommandPath(), err)
		}
		return nil
	}
}

type outputFlags struct {
	format string
	out    string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.format, "format", report.FormatText, "output format (text|json|md)")
	cmd.Flags().StringVar(&o.out, "out", "", "write the report to this path instead of stdout")
}

func (o *outputFlags) validate() error {
	if !report.ValidFormat(o.format) {
		return auditerr.Usage("unsupported format %s", o.format)
	}
	return nil
}

// emit writes the report. With --out the chosen format goes to the file and
// the text diagnostic still goes to stdout.
func (a *app) emit(cmd *cobra.Command, o outputFlags, rep types.Report) error {
	stdout := cmd.OutOrStdout()
	colored := a.colored(stdout)
	if o.out == "" {
		return report.Render(stdout, o.format, rep, colored && o.format == report.FormatText)
	}
	if err := report.WriteFile(o.out, o.format, rep); err != nil {
		return err
	}
	if err := report.WriteText(stdout, rep, colored); err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), o.out)
	return nil
}

func (a *app) colored(w io.Writer) bool {
	return !a.noColor && !color.NoColor && w == os.Stdout
}
