package engine

import (
	"context"

	"github.com/iljarotar/threshold-scaler/internal/scaling"
)

// ApplyDecision sets the deployment's replicas to the decision's target. A
// successful apply is recorded in the ledger and stamps the cooldown gate; a
// failed apply is recorded with success=false and leaves the cooldown
// untouched, so the next cycle may retry.
func (e *Engine) ApplyDecision(ctx context.Context, decision scaling.ScalingDecision) bool {
	logger := e.logger.WithValues(
		"deployment", decision.Deployment,
		"namespace", decision.Namespace,
		"from", decision.CurrentReplicas,
		"to", decision.TargetReplicas,
	)

	appliedAt := e.now()

	if err := e.registry.SetReplicas(ctx, decision.Deployment, decision.Namespace, decision.TargetReplicas); err != nil {
		logger.Error(err, "scaling failed")
		e.ledger.Append(decision, appliedAt, false)
		return false
	}

	e.ledger.Append(decision, appliedAt, true)
	e.gate.MarkScaled(decision.Deployment, appliedAt)
	logger.Info("scaled deployment", "reason", decision.Reason)

	return true
}

// RunScalingCycle evaluates all deployments from a single metrics snapshot
// and applies the resulting decisions, returning the number of successful
// applies. Evaluation completes before the first apply, so a scaling action
// applied mid-cycle never affects another deployment's decision in the same
// cycle. Cancellation between iterations abandons the remaining deployments
// and leaves already-applied decisions intact.
func (e *Engine) RunScalingCycle(ctx context.Context, namespace string) (int, error) {
	decisions, err := e.EvaluateAll(ctx, namespace)
	if err != nil {
		return 0, err
	}

	applied := 0

	for _, decision := range decisions {
		if err := ctx.Err(); err != nil {
			return applied, err
		}

		if e.ApplyDecision(ctx, decision) {
			applied++
		}
	}

	return applied, nil
}
