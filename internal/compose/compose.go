// Package compose turns project settings into the merged build
// specifications of one environment.
package compose

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dualpack/dualpack/internal/adapters"
	"github.com/dualpack/dualpack/internal/banner"
	"github.com/dualpack/dualpack/internal/critical"
	"github.com/dualpack/dualpack/internal/engine"
	"github.com/dualpack/dualpack/internal/entries"
	"github.com/dualpack/dualpack/internal/layers"
	"github.com/dualpack/dualpack/internal/metrics"
	"github.com/dualpack/dualpack/internal/offline"
	"github.com/dualpack/dualpack/pkg/logger"
	"github.com/dualpack/dualpack/pkg/merge"
	"github.com/dualpack/dualpack/pkg/types"
	"github.com/dualpack/dualpack/pkg/validation"
)

// Plan is the result of one composition: the legacy and modern
// specifications of an environment plus the artifacts built around them.
type Plan struct {
	ID            string                      `json:"id" yaml:"id"`
	Environment   types.Environment           `json:"environment" yaml:"environment"`
	Specs         []types.BuildSpec           `json:"specs" yaml:"specs"`
	CriticalJobs  []types.CriticalResourceJob `json:"criticalJobs,omitempty" yaml:"criticalJobs,omitempty"`
	ServiceWorker *types.ServiceWorkerSpec    `json:"serviceWorker,omitempty" yaml:"serviceWorker,omitempty"`
	CreatedAt     time.Time                   `json:"createdAt" yaml:"createdAt"`
}

// Spec returns the specification of a target
func (p *Plan) Spec(target types.BuildTarget) (types.BuildSpec, bool) {
	for _, spec := range p.Specs {
		if spec.Target == target {
			return spec, true
		}
	}
	return types.BuildSpec{}, false
}

// Composer builds plans from immutable settings
type Composer struct {
	settings    *types.Settings
	projectRoot string
	registry    *adapters.Registry
	log         logger.Logger
	recorder    metrics.Recorder
	now         func() time.Time
}

// Option configures a Composer
type Option func(*Composer)

// WithRegistry replaces the built-in adapter registry
func WithRegistry(r *adapters.Registry) Option {
	return func(c *Composer) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(c *Composer) {
		if log != nil {
			c.log = log
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Composer) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithClock sets the time source used for plan timestamps and banners
func WithClock(now func() time.Time) Option {
	return func(c *Composer) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Composer. projectRoot anchors every relative path of
// the settings.
func New(settings *types.Settings, projectRoot string, opts ...Option) *Composer {
	c := &Composer{
		settings:    settings,
		projectRoot: projectRoot,
		registry:    adapters.DefaultRegistry(),
		log:         logger.NewNopLogger(),
		recorder:    metrics.NoopRecorder{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose builds the legacy and modern specifications of env. Settings
// and offline rules are checked before any layer is built, so fatal
// configuration errors surface first.
func (c *Composer) Compose(ctx context.Context, env types.Environment) (plan *Plan, err error) {
	start := c.now()
	defer func() {
		c.recorder.ObserveCompose(string(env), c.now().Sub(start), metrics.OutcomeOf(err, errors.Is(err, context.Canceled)))
	}()

	if !env.IsValid() {
		return nil, fmt.Errorf("unknown environment: %q", env)
	}

	sw, err := offline.BuildServiceWorker(c.settings)
	if err != nil {
		return nil, fmt.Errorf("workbox: %w", err)
	}

	result := validation.NewSettingsValidator(c.projectRoot).Validate(c.settings)
	for _, finding := range result.Filter(validation.ValidationLevelWarning) {
		c.log.Warn(finding.Message, logger.WithField("section", finding.Section), logger.WithField("field", finding.Field))
	}
	if err := result.Err(); err != nil {
		return nil, err
	}

	resolved, err := entries.Resolve(c.settings, c.projectRoot)
	if err != nil {
		return nil, err
	}

	in := layers.Inputs{ProjectRoot: c.projectRoot, Entries: resolved}
	plan = &Plan{
		ID:          uuid.NewString(),
		Environment: env,
		CreatedAt:   start,
	}

	if env == types.EnvironmentProduction {
		in.CriticalJobs = critical.PlanCriticalResources(c.settings)
		in.Banner = banner.Render(banner.NewInfo(c.settings, c.projectRoot, start))
		if in.PurgePaths, err = layers.ResolvePurgePaths(c.projectRoot, c.settings.PurgeCSS.Paths); err != nil {
			return nil, err
		}
		if c.settings.Workbox.SwDest != "" {
			in.ServiceWorker = sw
			plan.ServiceWorker = sw
		}
		plan.CriticalJobs = in.CriticalJobs
	}

	targets := types.AllTargets()
	specs := make([]types.BuildSpec, len(targets))

	group, gctx := engine.NewSafeGroup(ctx, c.log)
	for i, target := range targets {
		group.Go(func() error {
			spec, err := c.composeTarget(gctx, target, env, in)
			if err != nil {
				return err
			}
			specs[i] = spec
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	plan.Specs = specs
	c.log.Info("Composed build specifications",
		logger.WithField("environment", env),
		logger.WithField("plan", plan.ID),
		logger.WithField("criticalJobs", len(plan.CriticalJobs)))
	return plan, nil
}

// ComposeAll composes both environments, development first
func (c *Composer) ComposeAll(ctx context.Context) ([]*Plan, error) {
	var plans []*Plan
	for _, env := range types.AllEnvironments() {
		plan, err := c.Compose(ctx, env)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", env, err)
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func (c *Composer) composeTarget(ctx context.Context, target types.BuildTarget, env types.Environment, in layers.Inputs) (types.BuildSpec, error) {
	if err := ctx.Err(); err != nil {
		return types.BuildSpec{}, err
	}

	combo := types.Combination{Target: target, Environment: env}
	log := c.log.WithTarget(string(target))

	merged, err := merge.Merge(
		layers.Target(c.settings, target),
		layers.Base(c.settings, in),
		layers.Environment(c.settings, target, env, in),
	)
	if err != nil {
		return types.BuildSpec{}, fmt.Errorf("%s: %w", combo, err)
	}

	if err := c.registry.Validate(merged); err != nil {
		return types.BuildSpec{}, fmt.Errorf("%s: %w", combo, err)
	}
	spec, err := c.registry.ApplyPlugins(merged)
	if err != nil {
		return types.BuildSpec{}, fmt.Errorf("%s: %w", combo, err)
	}

	c.recorder.ObserveSpec(string(target), string(env), len(spec.Plugins), len(spec.Module.Rules))
	log.Debug("Merged specification",
		logger.WithField("environment", env),
		logger.WithField("plugins", len(spec.Plugins)),
		logger.WithField("rules", len(spec.Module.Rules)))
	return spec, nil
}
