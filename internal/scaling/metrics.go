package scaling

import (
	"errors"
	"fmt"
	"math"

	"gopkg.in/inf.v0"
)

// ErrInsufficientData signals that no pod metrics were available for a
// deployment. Callers must treat this as "no decision possible", never as
// zero usage.
var ErrInsufficientData = errors.New("insufficient metrics data")

// PodMetric holds one pod's instantaneous resource usage and configured
// limits. CPU values are millicores, memory values are megabytes.
type PodMetric struct {
	Name        string
	Node        string
	Deployment  string
	CPUUsage    int64
	MemoryUsage int64
	CPULimit    int64
	MemoryLimit int64
}

// CPUPercent returns the pod's cpu usage as a percentage of its limit.
func (p PodMetric) CPUPercent() (float64, error) {
	return percentOfLimit(p.CPUUsage, p.CPULimit, "cpu")
}

// MemoryPercent returns the pod's memory usage as a percentage of its limit.
func (p PodMetric) MemoryPercent() (float64, error) {
	return percentOfLimit(p.MemoryUsage, p.MemoryLimit, "memory")
}

// calculates `percentage = usage / limit * 100`
// percentages above 100 are legal under burst
func percentOfLimit(usage, limit int64, resourceName string) (float64, error) {
	limitDec := inf.NewDec(limit, 0)
	zero := inf.NewDec(0, 0)

	if limitDec.Cmp(zero) <= 0 {
		return 0, fmt.Errorf("%s limit should be greater than zero", resourceName)
	}

	ratio := new(inf.Dec).QuoRound(inf.NewDec(usage, 0), limitDec, 8, inf.RoundHalfUp)
	percentage := new(inf.Dec).Mul(ratio, inf.NewDec(100, 0))

	return DecToFloat64(percentage), nil
}

// AveragePercentages reduces the pod metrics of one deployment to the
// arithmetic means of the per-pod cpu and memory utilization percentages.
func AveragePercentages(pods []PodMetric) (avgCPU, avgMemory float64, err error) {
	if len(pods) == 0 {
		return 0, 0, ErrInsufficientData
	}

	var cpuSum, memorySum float64

	for _, pod := range pods {
		cpu, err := pod.CPUPercent()
		if err != nil {
			return 0, 0, fmt.Errorf("pod %s: %w", pod.Name, err)
		}

		memory, err := pod.MemoryPercent()
		if err != nil {
			return 0, 0, fmt.Errorf("pod %s: %w", pod.Name, err)
		}

		cpuSum += cpu
		memorySum += memory
	}

	count := float64(len(pods))

	return cpuSum / count, memorySum / count, nil
}

// converts `value` to `float64` keeping the decimal scale
func DecToFloat64(value *inf.Dec) float64 {
	scale := value.Scale()
	factor := math.Pow10(-int(scale))

	return float64(value.UnscaledBig().Int64()) * factor
}
