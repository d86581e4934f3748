// Package secrets resolves the generation API credential from layered sources:
// a TOML secrets file first, then the environment.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// ErrNotFound is returned when no layer holds the secret.
var ErrNotFound = errors.New("secret not found")

// Store looks up secrets by key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
}

// TOMLFile reads secrets from a TOML document. Keys are dotted paths into the
// document, so "llm.api_key" reads api_key from the [llm] table.
type TOMLFile struct {
	path string
}

var _ Store = (*TOMLFile)(nil)

func NewTOMLFile(path string) *TOMLFile {
	return &TOMLFile{path: path}
}

func (f *TOMLFile) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.path == "" {
		return "", fmt.Errorf("%w: no secrets file configured", ErrNotFound)
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: secrets file %s does not exist", ErrNotFound, f.path)
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse secrets file %s: %w", f.path, err)
	}

	var node any = doc
	for _, part := range strings.Split(key, ".") {
		table, ok := node.(map[string]any)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrNotFound, key)
		}
		if node, ok = table[part]; !ok {
			return "", fmt.Errorf("%w: %q", ErrNotFound, key)
		}
	}

	value, ok := node.(string)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return strings.TrimSpace(value), nil
}

// Env reads secrets from environment variables; the key is the variable name.
type Env struct {
	lookup func(string) (string, bool)
}

var _ Store = (*Env)(nil)

func NewEnv() *Env {
	return &Env{lookup: os.LookupEnv}
}

func (e *Env) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	value, ok := e.lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%w: environment variable %s", ErrNotFound, key)
	}
	return strings.TrimSpace(value), nil
}

// Layer binds a store to the key it is queried with.
type Layer struct {
	Name  string
	Store Store
	Key   string
}

// Credential resolves one secret by trying its layers in order.
type Credential struct {
	layers []Layer
}

func NewCredential(layers ...Layer) *Credential {
	return &Credential{layers: layers}
}

// APIKey builds the standard credential chain: the [llm] api_key entry of the
// secrets file, a flat envVar entry in the same file, then the envVar
// environment variable.
func APIKey(secretsFile, envVar string) *Credential {
	file := NewTOMLFile(secretsFile)
	return NewCredential(
		Layer{Name: "secrets-file", Store: file, Key: "llm.api_key"},
		Layer{Name: "secrets-file", Store: file, Key: envVar},
		Layer{Name: "env", Store: NewEnv(), Key: envVar},
	)
}

// Resolve returns the first non-empty value. Lower layers are tried when a
// layer misses or fails; context cancellation stops the chain. When nothing
// resolves the error wraps ErrNotFound.
func (c *Credential) Resolve(ctx context.Context) (string, error) {
	var failures []error
	for _, l := range c.layers {
		value, err := l.Store.Get(ctx, l.Key)
		if err == nil {
			return value, nil
		}
		if shouldSkipFallback(err) {
			return "", err
		}
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("secret layer failed", "layer", l.Name, "key", l.Key, "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", l.Name, err))
		}
	}
	if len(failures) > 0 {
		return "", fmt.Errorf("%w: %w", ErrNotFound, errors.Join(failures...))
	}
	return "", ErrNotFound
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
