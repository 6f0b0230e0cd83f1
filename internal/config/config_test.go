package config

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TAX_RATE", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8081" {
		t.Errorf("expected default port 8081, got %q", cfg.Port)
	}
	if !cfg.TaxRate.Equal(decimal.RequireFromString("0.10")) {
		t.Errorf("expected default tax rate 0.10, got %s", cfg.TaxRate)
	}
	if cfg.AMQPExchange != "cafe.events" {
		t.Errorf("expected default exchange cafe.events, got %q", cfg.AMQPExchange)
	}
	if !cfg.MigrateOnStart {
		t.Error("expected migrations on start by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TAX_RATE", "0.11")
	t.Setenv("DELIVERY_FEE", "2.50")
	t.Setenv("LOGIN_RATE_PER_MIN", "30")
	t.Setenv("MIGRATE_ON_START", "false")
	t.Setenv("ALLOWED_ORIGINS", "https://pos.example.com, https://admin.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %q", cfg.Port)
	}
	if !cfg.TaxRate.Equal(decimal.RequireFromString("0.11")) {
		t.Errorf("expected tax rate 0.11, got %s", cfg.TaxRate)
	}
	if !cfg.DeliveryFee.Equal(decimal.RequireFromString("2.50")) {
		t.Errorf("expected delivery fee 2.50, got %s", cfg.DeliveryFee)
	}
	if cfg.LoginRatePerMin != 30 {
		t.Errorf("expected login rate 30, got %d", cfg.LoginRatePerMin)
	}
	if cfg.MigrateOnStart {
		t.Error("expected MIGRATE_ON_START=false to be honoured")
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://admin.example.com" {
		t.Errorf("unexpected origins: %v", cfg.AllowedOrigins)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"TAX_RATE", "abc"},
		{"TAX_RATE", "1.5"},
		{"DELIVERY_FEE", "-1"},
		{"DELIVERY_FEE", "2.505"},
		{"LOGIN_RATE_PER_MIN", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
