package config

import "testing"

func TestApplyDefaults_CompressionDefaultsToThresholdAndAlgorithms(t *testing.T) {
	cfg := &ClientConfig{}
	ApplyDefaults(cfg)

	if cfg.Compression.ThresholdBytes != 1024 {
		t.Errorf("expected default threshold 1024, got %d", cfg.Compression.ThresholdBytes)
	}
	if len(cfg.Compression.Algorithms) != 2 {
		t.Errorf("expected two default algorithms, got %v", cfg.Compression.Algorithms)
	}
}

func TestApplyDefaults_RetryPresetDefaultsToStandard(t *testing.T) {
	cfg := &ClientConfig{}
	ApplyDefaults(cfg)

	if cfg.Retry.Preset != "standard" {
		t.Errorf("expected default preset 'standard', got %q", cfg.Retry.Preset)
	}
}

func TestApplyDefaults_RetryPresetLeftEmptyWhenCustomSet(t *testing.T) {
	cfg := &ClientConfig{Retry: RetryConfig{Custom: CustomRetryConfig{MaxAttempts: 5}}}
	ApplyDefaults(cfg)

	if cfg.Retry.Preset != "" {
		t.Errorf("expected preset left empty when custom policy set, got %q", cfg.Retry.Preset)
	}
}

func TestApplyDefaults_EnergyBudgetDefaultsToMaxEnergy(t *testing.T) {
	cfg := &ClientConfig{Energy: EnergyConfig{MaxEnergy: 500}}
	ApplyDefaults(cfg)

	if cfg.Energy.BudgetPerPeriod != 500 {
		t.Errorf("expected budget_per_period to default to max_energy, got %d", cfg.Energy.BudgetPerPeriod)
	}
	if cfg.Energy.LowThreshold != 50 {
		t.Errorf("expected low_threshold to default to 10%% of max_energy, got %d", cfg.Energy.LowThreshold)
	}
}

func TestGetDefaultConfig_PassesValidationOnceHostAndDatabaseSet(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Connect.Database = "quickstart_chat"

	if err := Validate(cfg); err != nil {
		t.Fatalf("expected default config to validate once required fields are set, got %v", err)
	}
}
