package scaling

import (
	"fmt"
	"time"
)

// Direction of a replica change.
type Direction string

const (
	ScaleUp   Direction = "up"
	ScaleDown Direction = "down"
)

// Intent is a replica change proposed by the policy. It carries no timestamp
// yet; the engine materializes it into a ScalingDecision once the cooldown
// gate lets it pass.
type Intent struct {
	Direction      Direction
	TargetReplicas int32
	Reason         string
}

// ScalingDecision is an accepted intent for one deployment, ready to be
// applied. Immutable once produced.
type ScalingDecision struct {
	Deployment      string
	Namespace       string
	CurrentReplicas int32
	TargetReplicas  int32
	Reason          string
	CPUPercent      float64
	MemoryPercent   float64
	Timestamp       time.Time
}

// Direction reports whether the decision increases or decreases replicas.
func (d ScalingDecision) Direction() Direction {
	if d.TargetReplicas > d.CurrentReplicas {
		return ScaleUp
	}

	return ScaleDown
}

// Evaluate maps the aggregated utilization of one deployment to a scaling
// intent. Scaling up is aggressive: either signal above its upper threshold
// triggers it, with cpu taking reason precedence when both breach. Scaling
// down is conservative: both signals must sit below their lower thresholds.
// The step size is always exactly one replica; a target clamped back to the
// current count produces no intent.
func Evaluate(avgCPU, avgMemory float64, currentReplicas int32, t Thresholds) *Intent {
	if avgCPU > t.CPUScaleUp || avgMemory > t.MemoryScaleUp {
		target := currentReplicas + 1
		if target > t.MaxReplicas {
			target = t.MaxReplicas
		}

		if target <= currentReplicas {
			return nil
		}

		reason := fmt.Sprintf("High CPU usage: %.1f%% > %.1f%%", avgCPU, t.CPUScaleUp)
		if avgCPU <= t.CPUScaleUp {
			reason = fmt.Sprintf("High memory usage: %.1f%% > %.1f%%", avgMemory, t.MemoryScaleUp)
		}

		return &Intent{Direction: ScaleUp, TargetReplicas: target, Reason: reason}
	}

	if avgCPU < t.CPUScaleDown && avgMemory < t.MemoryScaleDown {
		target := currentReplicas - 1
		if target < t.MinReplicas {
			target = t.MinReplicas
		}

		if target >= currentReplicas {
			return nil
		}

		reason := fmt.Sprintf("Low CPU and memory usage: %.1f%% < %.1f%%, %.1f%% < %.1f%%",
			avgCPU, t.CPUScaleDown, avgMemory, t.MemoryScaleDown)

		return &Intent{Direction: ScaleDown, TargetReplicas: target, Reason: reason}
	}

	return nil
}
