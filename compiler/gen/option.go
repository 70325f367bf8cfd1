package gen

import (
	"errors"
	"log/slog"
	"maps"

	"github.com/syssam/storm/dialect"
)

// Option configures code generation.
type Option func(*Config) error

// WithHeader sets the file header comment.
// The header is added at the top of each generated file.
func WithHeader(header string) Option {
	return func(c *Config) error {
		c.Header = header
		return nil
	}
}

// WithPackage sets the output package import path.
// For example: "github.com/org/project/entity".
func WithPackage(pkg string) Option {
	return func(c *Config) error {
		if pkg == "" {
			return NewConfigError("Package", nil, "package cannot be empty")
		}
		c.Package = pkg
		return nil
	}
}

// WithTarget sets the output directory.
// The directory where generated code will be written.
func WithTarget(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return NewConfigError("Target", nil, "target directory cannot be empty")
		}
		c.Target = dir
		return nil
	}
}

// WithDialect sets the storage dialect.
// Supported dialects: "sqlite", "mysql", "postgres".
func WithDialect(name string) Option {
	return func(c *Config) error {
		if !dialect.Valid(name) {
			return NewConfigError("Dialect", name, "unsupported dialect; use sqlite, mysql, or postgres")
		}
		c.Dialect = name
		return nil
	}
}

// WithLanguages sets the output languages, replacing the defaults.
func WithLanguages(langs ...string) Option {
	return func(c *Config) error {
		if len(langs) == 0 {
			return NewConfigError("Languages", nil, "at least one output language is required")
		}
		c.Languages = langs
		return nil
	}
}

// WithTypeOverride maps a host type to a storage type for every field that
// does not declare its own storage type.
func WithTypeOverride(host, storage string) Option {
	return func(c *Config) error {
		if _, err := ParseStorageType(storage); err != nil {
			return NewConfigError("TypeOverrides", host, err.Error())
		}
		if c.TypeOverrides == nil {
			c.TypeOverrides = make(map[string]string)
		}
		c.TypeOverrides[host] = storage
		return nil
	}
}

// WithImport registers the import path of a custom host type package.
func WithImport(name, path string) Option {
	return func(c *Config) error {
		if name == "" || path == "" {
			return NewConfigError("Imports", name, "package name and path are required")
		}
		if c.Imports == nil {
			c.Imports = make(map[string]string)
		}
		c.Imports[name] = path
		return nil
	}
}

// WithImports registers several host type packages at once.
func WithImports(imports map[string]string) Option {
	return func(c *Config) error {
		if c.Imports == nil {
			c.Imports = make(map[string]string)
		}
		maps.Copy(c.Imports, imports)
		return nil
	}
}

// WithRenderers sets the renderers of the run.
// This allows adding output languages without touching the resolver.
func WithRenderers(renderers ...Renderer) Option {
	return func(c *Config) error {
		for _, r := range renderers {
			if r == nil {
				return NewConfigError("Renderers", nil, "renderer cannot be nil")
			}
		}
		c.Renderers = append(c.Renderers, renderers...)
		return nil
	}
}

// WithLogger sets the logger of the run.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) error {
		c.Logger = l
		return nil
	}
}

// Apply applies options to the config.
// It returns the first error encountered.
func (c *Config) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// ApplyAll applies options and collects all errors.
// Returns a joined error if any options failed.
func (c *Config) ApplyAll(opts ...Option) error {
	var errs []error
	for _, opt := range opts {
		if err := opt(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewConfig creates a new Config with the default dialect and languages
// and the given options.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{
		Dialect:   dialect.SQLite,
		Languages: []string{LangGo, LangSQL},
	}
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNewConfig creates a new Config with the given options.
// It panics if any option fails.
func MustNewConfig(opts ...Option) *Config {
	c, err := NewConfig(opts...)
	if err != nil {
		panic(err)
	}
	return c
}
