// Package config loads the storm project configuration.
//
// Values are layered, from lowest to highest precedence: defaults, the
// storm.yaml project file, STORM_* environment variables and command-line
// flags.
//
//	schema:
//	  - schema/*.yaml
//	package: example.com/app/entity
//	target: ./entity
//	dialect: postgres
//	types:
//	  - {host: time.Time, storage: timestamptz}
//	imports:
//	  decimal: github.com/shopspring/decimal
//	database:
//	  driver: postgres
//	  dsn: postgres://localhost/app?sslmode=disable
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/syssam/storm/compiler/gen"
	"github.com/syssam/storm/compiler/load"
	"github.com/syssam/storm/dialect"
)

// File names searched for when no config file is given.
const (
	FileName    = "storm.yaml"
	FileNameAlt = "storm.yml"
)

// EnvPrefix prefixes the environment variables read by Load.
// STORM_DATABASE_DSN sets database.dsn.
const EnvPrefix = "STORM_"

// Config is the project configuration.
type Config struct {
	// Schema lists the declaration files or globs.
	Schema []string `koanf:"schema"`
	// Snapshot is a msgpack declaration snapshot read after Schema.
	Snapshot  string            `koanf:"snapshot"`
	Package   string            `koanf:"package"`
	Target    string            `koanf:"target"`
	Dialect   string            `koanf:"dialect"`
	Languages []string          `koanf:"languages"`
	Header    string            `koanf:"header"`
	Types     []TypeOverride    `koanf:"types"`
	Imports   map[string]string `koanf:"imports"`
	Database  Database          `koanf:"database"`
	Verbose   bool              `koanf:"verbose"`

	// File is the config file that was read, empty when none was found.
	File string `koanf:"-"`
}

// TypeOverride maps a host type to a storage type for the whole project.
// Host types are kept as values since they contain the key delimiter.
type TypeOverride struct {
	Host    string `koanf:"host"`
	Storage string `koanf:"storage"`
}

// Database is the connection used by storm apply.
type Database struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// flagKeys maps flag names to config keys when they differ.
var flagKeys = map[string]string{
	"driver": "database.driver",
	"dsn":    "database.dsn",
}

// Load reads the configuration. An empty path searches dir for storm.yaml
// or storm.yml; a missing file is not an error then. Only flags that were
// set on the command line override the other layers.
func Load(path, dir string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(map[string]any{
		"schema":    []string{"schema/*.yaml"},
		"target":    "entity",
		"dialect":   dialect.SQLite,
		"languages": []string{gen.LangGo, gen.LangSQL},
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	if path == "" {
		path = find(dir)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = f.Name
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("config: load flags: %w", err)
		}
	}
	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	c.File = path
	c.resolve()
	return &c, nil
}

// find returns the project file in dir, or "".
func find(dir string) string {
	for _, name := range []string{FileName, FileNameAlt} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// resolve makes relative paths of a file-based config relative to the
// file's directory.
func (c *Config) resolve() {
	if c.File == "" {
		return
	}
	base := filepath.Dir(c.File)
	rel := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i, p := range c.Schema {
		c.Schema[i] = rel(p)
	}
	c.Snapshot = rel(c.Snapshot)
	c.Target = rel(c.Target)
}

// Validate reports the problems of the configuration that Gen would not.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Schema) == 0 && c.Snapshot == "" {
		errs = append(errs, errors.New("config: schema or snapshot is required"))
	}
	for i, o := range c.Types {
		if o.Host == "" || o.Storage == "" {
			errs = append(errs, fmt.Errorf("config: types[%d] needs both host and storage", i))
		}
	}
	if d := c.Database.Driver; d != "" && !dialect.Valid(d) {
		errs = append(errs, fmt.Errorf("config: unsupported database driver %q", d))
	}
	return errors.Join(errs...)
}

// Gen returns the generator configuration.
func (c *Config) Gen(logger *slog.Logger) (*gen.Config, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	opts := []gen.Option{
		gen.WithTarget(c.Target),
		gen.WithDialect(c.Dialect),
		gen.WithLanguages(c.Languages...),
		gen.WithImports(c.Imports),
		gen.WithLogger(logger),
	}
	if c.Package != "" {
		opts = append(opts, gen.WithPackage(c.Package))
	}
	if c.Header != "" {
		opts = append(opts, gen.WithHeader(c.Header))
	}
	for _, o := range c.Types {
		opts = append(opts, gen.WithTypeOverride(o.Host, o.Storage))
	}
	cfg, err := gen.NewConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyAll(opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Source returns the declaration source of the project.
func (c *Config) Source() load.Source {
	var m load.Multi
	if len(c.Schema) > 0 {
		m = append(m, load.Files(c.Schema...))
	}
	if c.Snapshot != "" {
		m = append(m, load.Snapshot(c.Snapshot))
	}
	return m
}

// Watched returns the directories holding declaration files.
func (c *Config) Watched() []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(p string) {
		d := filepath.Dir(p)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	for _, p := range c.Schema {
		add(p)
	}
	if c.Snapshot != "" {
		add(c.Snapshot)
	}
	return dirs
}
