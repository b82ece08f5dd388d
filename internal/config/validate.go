package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg against its struct tags (required fields, oneof
// enumerations, numeric bounds) after defaults have been applied.
func Validate(cfg *ClientConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Retry.Custom.MaxAttempts > 0 {
		if cfg.Retry.Custom.InitialDelay <= 0 {
			return fmt.Errorf("retry.custom.initial_delay must be positive when max_attempts is set")
		}
		if cfg.Retry.Custom.Base <= 1 && cfg.Retry.Custom.BackoffStrategy != "constant" {
			return fmt.Errorf("retry.custom.base must be > 1 for non-constant backoff")
		}
	}

	if cfg.Energy.BudgetPerPeriod > cfg.Energy.MaxEnergy {
		return fmt.Errorf("energy.budget_per_period (%d) cannot exceed energy.max_energy (%d)", cfg.Energy.BudgetPerPeriod, cfg.Energy.MaxEnergy)
	}

	return nil
}
