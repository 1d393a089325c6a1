package main

import (
	"testing"

	"tezgah/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigRejectsWildcardOriginInProduction(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:    "0123456789abcdef0123456789abcdef",
		AppEnv:        "production",
		AllowedOrigin: "*",
	})
	if err == nil {
		t.Fatalf("expected wildcard origin to be rejected in production")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:    "0123456789abcdef0123456789abcdef",
		AppEnv:        "development",
		AllowedOrigin: "*",
	})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}
