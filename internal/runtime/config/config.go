package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	errspkg "github.com/drblury/lambdaflow/internal/runtime/errors"
)

// Environment keys recognised by the runtime.
const (
	// EnvRuntimeAPI holds the control-plane host:port.
	EnvRuntimeAPI = "RUNTIME_API_ENDPOINT"
	// EnvLegacyRuntimeAPI is consulted when EnvRuntimeAPI is unset.
	EnvLegacyRuntimeAPI = "AWS_LAMBDA_RUNTIME_API"
	// EnvSingleLoop forces exactly one loop iteration when set to "true".
	EnvSingleLoop = "SINGLE_LOOP"
)

// Lookup resolves an environment value by name.
type Lookup func(name string) (string, bool)

// OSLookup reads the process environment.
func OSLookup(name string) (string, bool) {
	return os.LookupEnv(name)
}

// MapLookup serves values from a fixed map.
func MapLookup(env map[string]string) Lookup {
	return func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
}

// Config is the endpoint descriptor and continuation flag, derived once per
// process and never mutated afterwards.
type Config struct {
	// Endpoint is the control-plane host:port. Empty selects offline mode.
	Endpoint string
	// SingleIteration stops the loop after one invocation. Always true offline.
	SingleIteration bool
}

// FromEnvironment builds a Config from lookup.
func FromEnvironment(lookup Lookup) Config {
	if lookup == nil {
		lookup = OSLookup
	}

	endpoint, ok := lookup(EnvRuntimeAPI)
	if !ok || strings.TrimSpace(endpoint) == "" {
		endpoint, _ = lookup(EnvLegacyRuntimeAPI)
	}
	endpoint = strings.TrimSpace(endpoint)

	single, _ := lookup(EnvSingleLoop)
	return Config{
		Endpoint:        endpoint,
		SingleIteration: endpoint == "" || strings.EqualFold(strings.TrimSpace(single), "true"),
	}
}

// Offline reports whether no control-plane endpoint is configured.
func (c Config) Offline() bool {
	return c.Endpoint == ""
}

// Continuous reports whether the loop runs until the process is stopped.
func (c Config) Continuous() bool {
	return !c.Offline() && !c.SingleIteration
}

func (c Config) String() string {
	mode := "continuous"
	if !c.Continuous() {
		mode = "single"
	}
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = "offline"
	}
	return fmt.Sprintf("endpoint=%s loop=%s", endpoint, mode)
}

// Validate checks the endpoint is a bare host:port. An empty endpoint is valid.
func (c Config) Validate() error {
	var errs []error
	errs = append(errs, c.validateEndpoint()...)
	return errspkg.NewConfigValidationError(errors.Join(errs...))
}

func (c Config) validateEndpoint() []error {
	if c.Endpoint == "" {
		return nil
	}
	if strings.Contains(c.Endpoint, "://") {
		return []error{fmt.Errorf("endpoint %q must not include a scheme", c.Endpoint)}
	}
	if strings.ContainsAny(c.Endpoint, "/?#") {
		return []error{fmt.Errorf("endpoint %q must not include a path", c.Endpoint)}
	}
	host, port, err := net.SplitHostPort(c.Endpoint)
	if err != nil {
		return []error{fmt.Errorf("endpoint %q: %w", c.Endpoint, err)}
	}
	var errs []error
	if host == "" {
		errs = append(errs, fmt.Errorf("endpoint %q: host is required", c.Endpoint))
	}
	if port == "" {
		errs = append(errs, fmt.Errorf("endpoint %q: port is required", c.Endpoint))
	}
	return errs
}
