package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/iljarotar/threshold-scaler/internal/cooldown"
	"github.com/iljarotar/threshold-scaler/internal/history"
	"github.com/iljarotar/threshold-scaler/internal/scaling"
)

// DeploymentState is the registry's view of one deployment. MinReplicas and
// MaxReplicas are bounds the deployment declares for itself; zero means not
// declared.
type DeploymentState struct {
	Name        string
	Namespace   string
	Replicas    int32
	MinReplicas int32
	MaxReplicas int32
}

// MetricsSource reports per-pod utilization for a deployment. An empty
// result is legal and means no decision can be made.
type MetricsSource interface {
	PodMetrics(ctx context.Context, namespace, deployment string) ([]scaling.PodMetric, error)
}

// Registry reads and mutates deployments.
type Registry interface {
	ListDeployments(ctx context.Context, namespace string) ([]string, error)
	DeploymentState(ctx context.Context, name, namespace string) (DeploymentState, error)
	SetReplicas(ctx context.Context, name, namespace string, replicas int32) error
}

// Engine evaluates deployments against the configured thresholds and applies
// accepted decisions. Construct one engine per configuration and hand it to
// whatever driver invokes cycles; it holds no global state.
type Engine struct {
	registry   Registry
	metrics    MetricsSource
	thresholds scaling.Thresholds
	overrides  map[string]scaling.Thresholds
	gate       *cooldown.Gate
	ledger     *history.Ledger
	logger     logr.Logger
	now        func() time.Time
}

// Options configures an engine. Now may be set to a fixed clock in tests.
type Options struct {
	Thresholds scaling.Thresholds
	Overrides  map[string]scaling.Thresholds
	Logger     logr.Logger
	Now        func() time.Time
}

// New validates the configuration and builds an engine. Invalid thresholds
// are rejected here, before any cycle can run.
func New(registry Registry, metrics MetricsSource, opts Options) (*Engine, error) {
	if err := opts.Thresholds.Validate(); err != nil {
		return nil, err
	}

	for name, thresholds := range opts.Overrides {
		if err := thresholds.Validate(); err != nil {
			return nil, fmt.Errorf("deployment %s: %w", name, err)
		}
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		registry:   registry,
		metrics:    metrics,
		thresholds: opts.Thresholds,
		overrides:  opts.Overrides,
		gate:       cooldown.NewGate(),
		ledger:     history.NewLedger(),
		logger:     opts.Logger,
		now:        now,
	}, nil
}

// effectiveThresholds resolves the thresholds for one deployment: a
// per-deployment override wins entirely, otherwise bounds the deployment
// declares for itself replace the global ones.
func (e *Engine) effectiveThresholds(state DeploymentState) scaling.Thresholds {
	if thresholds, ok := e.overrides[state.Name]; ok {
		return thresholds
	}

	thresholds := e.thresholds

	if state.MinReplicas > 0 {
		thresholds.MinReplicas = state.MinReplicas
	}
	if state.MaxReplicas > 0 {
		thresholds.MaxReplicas = state.MaxReplicas
	}

	if thresholds.MinReplicas > thresholds.MaxReplicas {
		return e.thresholds
	}

	return thresholds
}

// EvaluateDeployment runs the aggregation and policy for one deployment and
// returns a decision if one passed the cooldown gate. A nil decision means
// the utilization is within the band, the gate suppressed the intent, or no
// metrics were available. Read-only with respect to cluster state.
func (e *Engine) EvaluateDeployment(ctx context.Context, name, namespace string) (*scaling.ScalingDecision, error) {
	var (
		state DeploymentState
		pods  []scaling.PodMetric
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		state, err = e.registry.DeploymentState(groupCtx, name, namespace)
		return err
	})
	group.Go(func() error {
		var err error
		pods, err = e.metrics.PodMetrics(groupCtx, namespace, name)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	avgCPU, avgMemory, err := scaling.AveragePercentages(pods)
	if errors.Is(err, scaling.ErrInsufficientData) {
		e.logger.V(1).Info("no metrics available, skipping", "deployment", name, "namespace", namespace)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	thresholds := e.effectiveThresholds(state)

	intent := scaling.Evaluate(avgCPU, avgMemory, state.Replicas, thresholds)
	if intent == nil {
		return nil, nil
	}

	now := e.now()

	if !e.gate.Allows(name, now, thresholds.Cooldown) {
		e.logger.V(1).Info("scaling suppressed by cooldown",
			"deployment", name, "namespace", namespace, "reason", intent.Reason)
		return nil, nil
	}

	return &scaling.ScalingDecision{
		Deployment:      name,
		Namespace:       namespace,
		CurrentReplicas: state.Replicas,
		TargetReplicas:  intent.TargetReplicas,
		Reason:          intent.Reason,
		CPUPercent:      avgCPU,
		MemoryPercent:   avgMemory,
		Timestamp:       now,
	}, nil
}

// EvaluateAll evaluates every deployment in the namespace, preserving
// discovery order. Per-deployment failures are logged and skipped; they
// never abort the cycle. Cancellation between deployments returns the
// decisions collected so far.
func (e *Engine) EvaluateAll(ctx context.Context, namespace string) ([]scaling.ScalingDecision, error) {
	names, err := e.registry.ListDeployments(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("listing deployments in %s: %w", namespace, err)
	}

	decisions := make([]scaling.ScalingDecision, 0, len(names))

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return decisions, err
		}

		decision, err := e.EvaluateDeployment(ctx, name, namespace)
		if err != nil {
			logger := e.logger.WithValues("deployment", name, "namespace", namespace)

			if apierrors.IsNotFound(err) {
				logger.Info("deployment not found, skipping")
			} else {
				logger.Error(err, "evaluation failed, skipping")
			}

			continue
		}

		if decision != nil {
			decisions = append(decisions, *decision)
		}
	}

	return decisions, nil
}

// Report returns the ledger's aggregate view of all recorded events.
func (e *Engine) Report() history.Report {
	return e.ledger.Report()
}
