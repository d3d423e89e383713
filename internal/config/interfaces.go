package config

import "context"

// SecretProvider resolves secret references to plaintext values. The keys
// are provider-specific references (file paths for FileProvider, variable
// names for EnvVarProvider). Missing keys are omitted from the result rather
// than reported as errors; the loader decides what is missing.
type SecretProvider interface {
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
