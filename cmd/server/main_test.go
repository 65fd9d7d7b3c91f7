package main

import (
	"testing"

	"lojafacil/backend/internal/config"
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
		AllowedOrigin: "*",
		LogMode:       "production",
	})
	if err == nil {
		t.Fatalf("expected wildcard origin to be rejected in production")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:    "0123456789abcdef0123456789abcdef",
		AllowedOrigin: "https://loja.example.com",
		LogMode:       "production",
	})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}
