package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/iljarotar/threshold-scaler/internal/scaling"
)

// defaults applied to fields the file leaves unset
const (
	defaultCPUScaleUp      = 70.0
	defaultCPUScaleDown    = 30.0
	defaultMemoryScaleUp   = 80.0
	defaultMemoryScaleDown = 40.0
	defaultMinReplicas     = 1
	defaultMaxReplicas     = 10
	defaultCooldown        = time.Minute
	defaultInterval        = 30 * time.Second
	defaultNamespace       = "default"
)

// Config is the autoscaler's file configuration: the namespace to watch, the
// cycle interval, global thresholds and optional per-deployment overrides.
type Config struct {
	Namespace  string
	Interval   time.Duration
	Thresholds scaling.Thresholds
	Overrides  map[string]scaling.Thresholds
}

type rawConfig struct {
	Namespace   string                   `yaml:"namespace"`
	Interval    string                   `yaml:"interval"`
	Thresholds  rawThresholds            `yaml:"thresholds"`
	Deployments map[string]rawThresholds `yaml:"deployments"`
}

type rawThresholds struct {
	CPUScaleUp      float64 `yaml:"cpu-scale-up"`
	CPUScaleDown    float64 `yaml:"cpu-scale-down"`
	MemoryScaleUp   float64 `yaml:"memory-scale-up"`
	MemoryScaleDown float64 `yaml:"memory-scale-down"`
	MinReplicas     int32   `yaml:"min-replicas"`
	MaxReplicas     int32   `yaml:"max-replicas"`
	Cooldown        string  `yaml:"cooldown"`
}

// Load reads and validates the configuration file. Per-deployment sections
// inherit every field they leave unset from the global thresholds. Invalid
// thresholds are rejected here, before any engine is built.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	raw := &rawConfig{}
	if err := yaml.Unmarshal(data, raw); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	return build(raw)
}

func build(raw *rawConfig) (*Config, error) {
	config := &Config{
		Namespace: raw.Namespace,
		Interval:  defaultInterval,
	}

	if config.Namespace == "" {
		config.Namespace = defaultNamespace
	}

	if raw.Interval != "" {
		interval, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return nil, fmt.Errorf("invalid interval: %w", err)
		}
		config.Interval = interval
	}

	thresholds, err := mergeThresholds(defaultThresholds(), raw.Thresholds)
	if err != nil {
		return nil, err
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	config.Thresholds = thresholds

	if len(raw.Deployments) > 0 {
		config.Overrides = make(map[string]scaling.Thresholds, len(raw.Deployments))

		for name, override := range raw.Deployments {
			merged, err := mergeThresholds(thresholds, override)
			if err != nil {
				return nil, fmt.Errorf("deployment %s: %w", name, err)
			}
			if err := merged.Validate(); err != nil {
				return nil, fmt.Errorf("deployment %s: %w", name, err)
			}

			config.Overrides[name] = merged
		}
	}

	return config, nil
}

func defaultThresholds() scaling.Thresholds {
	return scaling.Thresholds{
		CPUScaleUp:      defaultCPUScaleUp,
		CPUScaleDown:    defaultCPUScaleDown,
		MemoryScaleUp:   defaultMemoryScaleUp,
		MemoryScaleDown: defaultMemoryScaleDown,
		MinReplicas:     defaultMinReplicas,
		MaxReplicas:     defaultMaxReplicas,
		Cooldown:        defaultCooldown,
	}
}

// overlays the set fields of `raw` onto `base`
func mergeThresholds(base scaling.Thresholds, raw rawThresholds) (scaling.Thresholds, error) {
	merged := base

	if raw.CPUScaleUp > 0 {
		merged.CPUScaleUp = raw.CPUScaleUp
	}
	if raw.CPUScaleDown > 0 {
		merged.CPUScaleDown = raw.CPUScaleDown
	}
	if raw.MemoryScaleUp > 0 {
		merged.MemoryScaleUp = raw.MemoryScaleUp
	}
	if raw.MemoryScaleDown > 0 {
		merged.MemoryScaleDown = raw.MemoryScaleDown
	}
	if raw.MinReplicas > 0 {
		merged.MinReplicas = raw.MinReplicas
	}
	if raw.MaxReplicas > 0 {
		merged.MaxReplicas = raw.MaxReplicas
	}

	if raw.Cooldown != "" {
		cooldown, err := time.ParseDuration(raw.Cooldown)
		if err != nil {
			return scaling.Thresholds{}, fmt.Errorf("invalid cooldown: %w", err)
		}
		merged.Cooldown = cooldown
	}

	return merged, nil
}
