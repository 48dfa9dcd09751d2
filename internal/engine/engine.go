// Package engine runs the audit pipeline: load cases, evaluate them with
// each category's detector, aggregate per category, then gate.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ogulcanaydogan/llm-audit-gate/internal/aggregate"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/auditerr"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/cases"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/detector"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/gate"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/metrics"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/model"
	"github.com/ogulcanaydogan/llm-audit-gate/pkg/types"
)

const tracerName = "github.com/ogulcanaydogan/llm-audit-gate/internal/engine"

// Category is one gated check: its detector and whether case inputs go
// through the model before scoring.
type Category struct {
	Name     string
	Detector detector.Detector
	UseModel bool
}

// Plan is everything one run needs.
type Plan struct {
	Categories []Category
	Source     cases.Source
	Policy     types.Policy
	// Model is required when any category has UseModel set.
	Model model.Model
	// Workers bounds concurrent case evaluations. Values below 1 mean 1.
	Workers int
	// CaseTimeout bounds the model call plus detector for one case. Zero
	// disables the timeout.
	CaseTimeout time.Duration
}

type Engine struct {
	logger  *zap.Logger
	metrics *metrics.Recorder
	tracer  trace.Tracer
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = m }
}

func New(opts ...Option) *Engine {
	e := &Engine{logger: zap.NewNop(), tracer: otel.Tracer(tracerName)}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "engine"))
	return e
}

type job struct {
	cat   int
	index int
	c     types.EvaluationCase
}

// Run evaluates plan and returns the verdict. Cases for every category are
// loaded before any detector runs. The first detector failure aborts the
// run; no partial verdict is returned.
func (e *Engine) Run(ctx context.Context, plan Plan) (types.Verdict, error) {
	ctx, span := e.tracer.Start(ctx, "engine.run")
	defer span.End()

	verdict, err := e.run(ctx, plan)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return types.Verdict{}, err
	}
	span.SetAttributes(attribute.Bool("verdict.passed", verdict.Passed))
	return verdict, nil
}

func (e *Engine) run(ctx context.Context, plan Plan) (types.Verdict, error) {
	if err := validate(plan); err != nil {
		return types.Verdict{}, err
	}
	workers := max(1, plan.Workers)

	names := make([]string, len(plan.Categories))
	for i, c := range plan.Categories {
		names[i] = c.Name
	}
	e.logger.Info("run started", zap.Strings("categories", names), zap.Int("workers", workers))

	loaded := make([][]types.EvaluationCase, len(plan.Categories))
	for i, c := range plan.Categories {
		cs, err := plan.Source.Load(c.Name)
		if err != nil {
			return types.Verdict{}, auditerr.Load("", fmt.Errorf("category %s: %w", c.Name, err))
		}
		loaded[i] = cs
		if len(cs) == 0 {
			e.logger.Warn(gate.NoteEmpty, zap.String("category", c.Name))
		}
	}

	findings := make([][]types.Finding, len(plan.Categories))
	for i := range loaded {
		findings[i] = make([]types.Finding, len(loaded[i]))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
dispatch:
	for ci, cs := range loaded {
		for idx, c := range cs {
			if gctx.Err() != nil {
				break dispatch
			}
			j := job{cat: ci, index: idx, c: c}
			g.Go(func() error {
				f, err := e.evaluate(gctx, plan, plan.Categories[j.cat], j)
				if err != nil {
					return err
				}
				findings[j.cat][j.index] = f
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		var de *auditerr.DetectorError
		if errors.As(err, &de) {
			e.metrics.DetectorFailure(de.Detector)
			e.logger.Error("detector failed", zap.String("detector", de.Detector),
				zap.String("category", de.Category), zap.Int("case", de.Index), zap.Error(de.Err))
		}
		return types.Verdict{}, err
	}
	if err := ctx.Err(); err != nil {
		return types.Verdict{}, err
	}

	aggs := make([]types.CategoryAggregate, 0, len(plan.Categories))
	for i, c := range plan.Categories {
		agg, err := aggregate.Aggregate(c.Name, c.Detector.Kind(), findings[i])
		if err != nil {
			return types.Verdict{}, fmt.Errorf("aggregate: %w", err)
		}
		e.logger.Debug("category aggregated",
			zap.String("category", c.Name),
			zap.String("mode", string(agg.Mode)),
			zap.Float64("metric", agg.Metric),
			zap.Int("samples", agg.SampleCount))
		aggs = append(aggs, agg)
	}

	verdict := gate.Decide(aggs, plan.Policy)
	e.metrics.ObserveVerdict(verdict)
	e.logger.Info("verdict", zap.Bool("passed", verdict.Passed), zap.Int("categories", len(verdict.Breakdown)))
	return verdict, nil
}

func (e *Engine) evaluate(ctx context.Context, plan Plan, cat Category, j job) (types.Finding, error) {
	start := time.Now()
	caseCtx := ctx
	if plan.CaseTimeout > 0 {
		var cancel context.CancelFunc
		caseCtx, cancel = context.WithTimeout(ctx, plan.CaseTimeout)
		defer cancel()
	}

	fail := func(err error) (types.Finding, error) {
		if ctx.Err() != nil && !errors.Is(err, context.DeadlineExceeded) {
			// Another case already failed; keep its error.
			return types.Finding{}, ctx.Err()
		}
		if caseCtx.Err() != nil && ctx.Err() == nil {
			err = fmt.Errorf("case timed out after %s: %w", plan.CaseTimeout, context.DeadlineExceeded)
		}
		return types.Finding{}, &auditerr.DetectorError{
			Detector: cat.Detector.Name(),
			Category: cat.Name,
			Index:    j.index,
			Err:      err,
		}
	}

	input := j.c.Input
	if cat.UseModel {
		out, err := plan.Model.Generate(caseCtx, input)
		if err != nil {
			return fail(fmt.Errorf("model: %w", err))
		}
		input = out
	}
	f, err := cat.Detector.Evaluate(caseCtx, input)
	if err != nil {
		return fail(err)
	}
	if caseCtx.Err() != nil {
		return fail(caseCtx.Err())
	}
	e.metrics.ObserveCase(cat.Name, time.Since(start))
	return f, nil
}

func validate(plan Plan) error {
	if plan.Source == nil {
		return errors.New("plan has no case source")
	}
	seen := make(map[string]bool, len(plan.Categories))
	for _, c := range plan.Categories {
		if c.Detector == nil {
			return fmt.Errorf("category %s has no detector", c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("category %s listed twice", c.Name)
		}
		seen[c.Name] = true
		if c.UseModel && plan.Model == nil {
			return fmt.Errorf("category %s needs a model", c.Name)
		}
	}
	return nil
}
