package config

import "testing"

func TestLoad_DefaultsRequireTargetPackage(t *testing.T) {
	_, err := Load("")
	if err == nil {
		t.Fatal("expected an error when service.target_package_id is unset")
	}
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("SENTINEL_SERVICE_TARGET_PACKAGE_ID", "0xdeadbeef")
	t.Setenv("SENTINEL_ANALYZER_FLASH_LOAN_SCORE_FLOOR", "55")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Service.TargetPackage != "0xdeadbeef" {
		t.Fatalf("target package = %q", cfg.Service.TargetPackage)
	}
	if cfg.Analyzer.FlashLoan.ScoreFloor != 55 {
		t.Fatalf("flash loan score floor = %d, want 55", cfg.Analyzer.FlashLoan.ScoreFloor)
	}
	// Untouched defaults should still be in effect.
	if cfg.Analyzer.Price.ScoreFloor != 25 {
		t.Fatalf("price score floor = %d, want default 25", cfg.Analyzer.Price.ScoreFloor)
	}
}

func TestLoad_AlertEnabledWithoutWebhookIsInvalid(t *testing.T) {
	t.Setenv("SENTINEL_SERVICE_TARGET_PACKAGE_ID", "0xdeadbeef")
	t.Setenv("SENTINEL_ACTION_ALERT_ENABLED", "true")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected an error when the alert sink is enabled without a webhook url")
	}
}

func TestSinkTimeout(t *testing.T) {
	cfg := &Config{}
	cfg.Action.SinkTimeoutMs = 1500
	if got, want := cfg.SinkTimeout().Milliseconds(), int64(1500); got != want {
		t.Fatalf("SinkTimeout() = %dms, want %dms", got, want)
	}
}
