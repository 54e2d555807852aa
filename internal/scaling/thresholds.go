package scaling

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Thresholds configures the utilization band and replica limits for a
// deployment. Scale-down bounds must lie strictly below their scale-up
// counterparts, otherwise the band is empty and the policy would oscillate.
type Thresholds struct {
	CPUScaleUp      float64       `validate:"gt=0"`
	CPUScaleDown    float64       `validate:"gte=0,ltfield=CPUScaleUp"`
	MemoryScaleUp   float64       `validate:"gt=0"`
	MemoryScaleDown float64       `validate:"gte=0,ltfield=MemoryScaleUp"`
	MinReplicas     int32         `validate:"gte=1,ltefield=MaxReplicas"`
	MaxReplicas     int32         `validate:"gte=1"`
	Cooldown        time.Duration `validate:"gte=0"`
}

// Validate checks the ordering invariants. Invalid thresholds must be
// rejected before any scaling cycle runs.
func (t Thresholds) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid scaling thresholds: %w", err)
	}

	return nil
}
