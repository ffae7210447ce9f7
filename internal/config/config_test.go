package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for missing AUTH_SECRET")
	}
}

func TestLoadFallsBackOnInvalidDurations(t *testing.T) {
	t.Setenv("DRAFT_TTL_MINUTES", "soon")
	t.Setenv("CATALOG_CACHE_TTL_SECONDS", "-4")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "15")

	cfg := Load()
	if cfg.DraftTTL() != 120*time.Minute {
		t.Fatalf("expected default draft ttl, got %s", cfg.DraftTTL())
	}
	if cfg.CatalogCacheTTL() != 30*time.Second {
		t.Fatalf("expected default catalog ttl, got %s", cfg.CatalogCacheTTL())
	}
	if cfg.AccessTokenTTL() != 15*time.Minute {
		t.Fatalf("expected 15m token ttl, got %s", cfg.AccessTokenTTL())
	}
}

func TestValidateAcceptsStrongSecret(t *testing.T) {
	t.Setenv("AUTH_SECRET", strings.Repeat("s", MinAuthSecretLength))

	cfg := Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if cfg.Address() != ":"+cfg.Port {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}
