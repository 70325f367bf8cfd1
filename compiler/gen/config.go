package gen

import (
	"errors"
	"log/slog"
	"path"
	"slices"

	"github.com/syssam/storm/dialect"
)

// Languages supported by the bundled renderers.
const (
	LangGo  = "go"
	LangSQL = "sql"
)

// Config holds the configuration of one generation run.
type Config struct {
	// Package is the import path of the generated Go package,
	// e.g. "example.com/app/entity".
	Package string
	// Target is the directory the artifacts are written to.
	Target string
	// Header is written at the top of every generated file.
	Header string
	// Dialect selects the storage dialect used by the type mapper and the
	// DDL renderer. Defaults to dialect.SQLite.
	Dialect string
	// Languages lists the output languages of the run.
	Languages []string
	// TypeOverrides maps host types to storage types and takes precedence
	// over the built-in mapping table.
	TypeOverrides map[string]string
	// Imports maps the package name of custom host types to their import
	// path, e.g. "decimal" to "github.com/shopspring/decimal".
	Imports map[string]string
	// Renderers render the finalized graph. The pipeline fills them from
	// Languages when empty.
	Renderers []Renderer
	// Logger receives progress and diagnostic messages.
	Logger *slog.Logger
}

// DefaultHeader is the header of generated files when none is configured.
const DefaultHeader = "// Code generated by storm, DO NOT EDIT."

// PackageName returns the name of the generated Go package.
func (c *Config) PackageName() string {
	if c.Package == "" {
		return "entity"
	}
	return path.Base(c.Package)
}

// HeaderText returns the configured header or the default one.
func (c *Config) HeaderText() string {
	if c.Header == "" {
		return DefaultHeader
	}
	return c.Header
}

// Log returns the configured logger, or one that discards everything.
func (c *Config) Log() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// HasLanguage reports whether the run emits the given language.
func (c *Config) HasLanguage(lang string) bool {
	return slices.Contains(c.Languages, lang)
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []error
	if !dialect.Valid(c.Dialect) {
		errs = append(errs, NewConfigError("Dialect", c.Dialect, "unsupported dialect; use sqlite, mysql, or postgres"))
	}
	if len(c.Languages) == 0 && len(c.Renderers) == 0 {
		errs = append(errs, NewConfigError("Languages", nil, "at least one output language is required"))
	}
	if c.HasLanguage(LangGo) && c.Package == "" {
		errs = append(errs, NewConfigError("Package", nil, "the go language requires a package import path"))
	}
	for _, host := range sortedKeys(c.TypeOverrides) {
		if _, err := ParseStorageType(c.TypeOverrides[host]); err != nil {
			errs = append(errs, NewConfigError("TypeOverrides", host, err.Error()))
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// builtinImports are the packages of the host types known to the mapper.
var builtinImports = map[string]string{
	"time":  "time",
	"uuid":  "github.com/google/uuid",
	"json":  "encoding/json",
	"netip": "net/netip",
	"big":   "math/big",
}

// ImportPath returns the import path of the package a host type lives in,
// given its package name.
func (c *Config) ImportPath(pkg string) string {
	if p := c.Imports[pkg]; p != "" {
		return p
	}
	return builtinImports[pkg]
}
