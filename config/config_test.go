package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.DBDriver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", c.DBDriver)
	}
	if c.CancelCutoff != 24*time.Hour {
		t.Errorf("cancel cutoff = %v, want 24h", c.CancelCutoff)
	}
	if c.GatewayTimeout != 15*time.Second {
		t.Errorf("gateway timeout = %v", c.GatewayTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("OVERPAY_TOLERANCE", "2.5")
	t.Setenv("NO_SHOW_WINDOW", "6h")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.DBDriver != "postgres" {
		t.Errorf("driver = %q", c.DBDriver)
	}
	if c.OverpayTolerance != 2.5 {
		t.Errorf("tolerance = %v", c.OverpayTolerance)
	}
	if c.NoShowWindow != 6*time.Hour {
		t.Errorf("no-show window = %v", c.NoShowWindow)
	}
}
