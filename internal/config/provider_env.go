package config

import (
	"context"
	"os"
)

// EnvVarProvider treats each *_FILE reference as the name of another
// environment variable, so DATABASE_URL_FILE=PG_PRIMARY_DSN copies the value
// of PG_PRIMARY_DSN. Selected with SECRET_PROVIDER=env for hosts that inject
// secrets under their own variable names.
type EnvVarProvider struct {
	lookupEnv func(string) (string, bool)
}

// NewEnvVarProvider creates an EnvVarProvider over the process environment.
func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{lookupEnv: os.LookupEnv}
}

// GetParametersBatch returns the value of every referenced variable that is
// set. Unset references are left out.
func (p *EnvVarProvider) GetParametersBatch(ctx context.Context, refs []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lookup := p.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	out := make(map[string]string, len(refs))
	for _, ref := range refs {
		if val, ok := lookup(ref); ok {
			out[ref] = val
		}
	}
	return out, nil
}
