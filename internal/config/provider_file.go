package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// maxSecretFileSize guards against pointing a *_FILE variable at something
// that is not a secret.
const maxSecretFileSize = 64 * 1024

// FileProvider resolves keys as file paths, the way container orchestrators
// mount secrets. Trailing newlines are trimmed.
type FileProvider struct {
	readFile func(string) ([]byte, error)
}

// NewFileProvider creates a FileProvider reading from the local filesystem.
func NewFileProvider() *FileProvider {
	return &FileProvider{readFile: os.ReadFile}
}

// GetParametersBatch reads each path. A path that does not exist is omitted
// from the result; any other read failure aborts the batch.
func (p *FileProvider) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, path := range keys {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("secret file resolution cancelled: %w", err)
		}
		data, err := p.readFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read secret file %s: %w", path, err)
		}
		if len(data) > maxSecretFileSize {
			return nil, fmt.Errorf("secret file %s exceeds %d bytes", path, maxSecretFileSize)
		}
		result[path] = strings.TrimRight(string(data), "\r\n")
	}
	return result, nil
}
