// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Resolve *_FILE variables through the SecretProvider and inject the
//     values back into the environment.
//  4. Use envconfig to process struct tags and populate the Config struct.
//  5. Populate BuildInfo from linker-injected variables.
//  6. Validate the struct using go-playground/validator.
package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is the diagnostic error returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// secretFileSuffix marks a variable whose value is a reference to the secret
// rather than the secret itself. WHATSAPP_BRIDGE_SECRET_FILE=/run/secrets/b
// fills WHATSAPP_BRIDGE_SECRET from that file.
const secretFileSuffix = "_FILE"

const secretResolveTimeout = 10 * time.Second

// loaderDeps holds the injectable OS dependencies of the loader.
type loaderDeps struct {
	lookupEnv  func(key string) (string, bool)
	setEnv     func(key, value string) error
	environ    func() []string
	dotenvFile string
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
	}
}

// LoadConfig loads and validates the configuration. A nil provider is chosen
// by SECRET_PROVIDER: "file" (the default) reads *_FILE references from the
// local filesystem, "env" reads them from other environment variables.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	// godotenv never overrides variables already present in the environment.
	if deps.dotenvFile != "" {
		_ = godotenv.Load(deps.dotenvFile)
	} else {
		_ = godotenv.Load()
	}

	if provider == nil {
		var err error
		if provider, err = selectProvider(deps); err != nil {
			return nil, err
		}
	}
	if err := resolveSecretFiles(provider, deps); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}

// selectProvider picks the SecretProvider named by SECRET_PROVIDER.
func selectProvider(deps loaderDeps) (SecretProvider, error) {
	name, _ := deps.lookupEnv("SECRET_PROVIDER")
	switch name {
	case "", "file":
		return NewFileProvider(), nil
	case "env":
		return &EnvVarProvider{lookupEnv: deps.lookupEnv}, nil
	default:
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: fmt.Sprintf("unknown SECRET_PROVIDER %q (want file or env)", name),
		}
	}
}

// resolveSecretFiles fills every TARGET for which TARGET_FILE is set and
// TARGET is not. A directly set TARGET always wins.
func resolveSecretFiles(provider SecretProvider, deps loaderDeps) error {
	refToTarget := make(map[string]string)
	var refs []string

	for _, entry := range deps.environ() {
		key, ref, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasSuffix(key, secretFileSuffix) || ref == "" {
			continue
		}
		target := strings.TrimSuffix(key, secretFileSuffix)
		if target == "" {
			continue
		}
		if _, exists := deps.lookupEnv(target); exists {
			continue
		}
		refToTarget[ref] = target
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return nil
	}
	sort.Strings(refs)

	ctx, cancel := context.WithTimeout(context.Background(), secretResolveTimeout)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, refs)
	if err != nil {
		return &ConfigError{
			Type:    ErrSecretResolution,
			Message: fmt.Sprintf("failed to resolve %d secret references", len(refs)),
			Err:     err,
		}
	}

	var missing []string
	for _, ref := range refs {
		target := refToTarget[ref]
		value, ok := resolved[ref]
		if !ok {
			missing = append(missing, target)
			continue
		}
		if err := deps.setEnv(target, value); err != nil {
			return &ConfigError{
				Type:    ErrSecretResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", target),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSecretResolution,
			Message: fmt.Sprintf("secret references not found for: %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}
