package config

import (
	"testing"
	"time"
)

func TestLoad_ReportsMissingRequired(t *testing.T) {
	// Ensure a clean env by not setting anything and calling validation directly.
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresWebhookSecrets(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "production", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "gateway", SSLMode: "require"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret", JWTIssuer: "gw", JWTAudience: "ops"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without provider webhook secrets")
	}
}

func TestValidate_LocalAllowsEmptySecretsAndDefaults(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "gateway", SSLMode: ""},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Providers.StripeTolerance != 5*time.Minute {
		t.Fatalf("expected stripe tolerance default, got %v", c.Providers.StripeTolerance)
	}
	if c.Gateway.HandlerTimeout != 10*time.Second {
		t.Fatalf("expected handler timeout default, got %v", c.Gateway.HandlerTimeout)
	}
	if c.Gateway.RedeliveryWindow != 5*time.Minute {
		t.Fatalf("expected redelivery window default, got %v", c.Gateway.RedeliveryWindow)
	}
}
