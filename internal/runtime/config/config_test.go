package config

import (
	"errors"
	"strings"
	"testing"

	errspkg "github.com/drblury/lambdaflow/internal/runtime/errors"
)

func TestFromEnvironment(t *testing.T) {
	tests := []struct {
		name           string
		env            map[string]string
		wantEndpoint   string
		wantSingle     bool
		wantContinuous bool
	}{
		{
			name:       "offline forces single iteration",
			env:        map[string]string{},
			wantSingle: true,
		},
		{
			name:       "offline ignores explicit false",
			env:        map[string]string{EnvSingleLoop: "false"},
			wantSingle: true,
		},
		{
			name:           "endpoint defaults to continuous",
			env:            map[string]string{EnvRuntimeAPI: "localhost:9001"},
			wantEndpoint:   "localhost:9001",
			wantContinuous: true,
		},
		{
			name:         "single loop override",
			env:          map[string]string{EnvRuntimeAPI: "localhost:9001", EnvSingleLoop: "TRUE"},
			wantEndpoint: "localhost:9001",
			wantSingle:   true,
		},
		{
			name:           "non true override keeps continuous",
			env:            map[string]string{EnvRuntimeAPI: "localhost:9001", EnvSingleLoop: "yes"},
			wantEndpoint:   "localhost:9001",
			wantContinuous: true,
		},
		{
			name:           "legacy key fallback",
			env:            map[string]string{EnvLegacyRuntimeAPI: "127.0.0.1:8001"},
			wantEndpoint:   "127.0.0.1:8001",
			wantContinuous: true,
		},
		{
			name:           "primary key wins",
			env:            map[string]string{EnvRuntimeAPI: "a:1", EnvLegacyRuntimeAPI: "b:2"},
			wantEndpoint:   "a:1",
			wantContinuous: true,
		},
		{
			name:           "blank primary falls back",
			env:            map[string]string{EnvRuntimeAPI: "  ", EnvLegacyRuntimeAPI: "b:2"},
			wantEndpoint:   "b:2",
			wantContinuous: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FromEnvironment(MapLookup(tt.env))
			if cfg.Endpoint != tt.wantEndpoint {
				t.Errorf("Endpoint = %q, want %q", cfg.Endpoint, tt.wantEndpoint)
			}
			if cfg.SingleIteration != tt.wantSingle {
				t.Errorf("SingleIteration = %v, want %v", cfg.SingleIteration, tt.wantSingle)
			}
			if cfg.Continuous() != tt.wantContinuous {
				t.Errorf("Continuous() = %v, want %v", cfg.Continuous(), tt.wantContinuous)
			}
			if cfg.Offline() != (tt.wantEndpoint == "") {
				t.Errorf("Offline() = %v for endpoint %q", cfg.Offline(), cfg.Endpoint)
			}
		})
	}
}

func TestFromEnvironmentNilLookupUsesProcessEnv(t *testing.T) {
	t.Setenv(EnvRuntimeAPI, "envhost:7000")
	t.Setenv(EnvSingleLoop, "true")

	cfg := FromEnvironment(nil)
	if cfg.Endpoint != "envhost:7000" || !cfg.SingleIteration {
		t.Fatalf("unexpected config from process env: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantErr  string
	}{
		{name: "offline", endpoint: ""},
		{name: "host and port", endpoint: "localhost:9001"},
		{name: "ipv6", endpoint: "[::1]:9001"},
		{name: "scheme", endpoint: "http://localhost:9001", wantErr: "must not include a scheme"},
		{name: "path", endpoint: "localhost:9001/2018-06-01", wantErr: "must not include a path"},
		{name: "missing port", endpoint: "localhost", wantErr: "missing port"},
		{name: "empty host", endpoint: ":9001", wantErr: "host is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Config{Endpoint: tt.endpoint}.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			var cfgErr errspkg.ConfigValidationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigValidationError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigString(t *testing.T) {
	if got := (Config{SingleIteration: true}).String(); got != "endpoint=offline loop=single" {
		t.Fatalf("unexpected offline string %q", got)
	}
	if got := (Config{Endpoint: "localhost:9001"}).String(); got != "endpoint=localhost:9001 loop=continuous" {
		t.Fatalf("unexpected online string %q", got)
	}
}
