package gen

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/syssam/storm/dialect"
)

// hostType describes a host type the mapper knows natively.
type hostType struct {
	family   Family
	bits     int
	unsigned bool
	nillable bool
	// storage is the default storage type before dialect rewrites.
	storage string
	imp     string
	// conv is the Go type values are converted through when scanning.
	conv string
	// adapter names the runtime adapter of hosts the driver cannot scan
	// or value: Scan<adapter>, <adapter>Value and <adapter>Field.
	adapter string
	// pointer is the form adapter hosts must be declared in.
	pointer bool
}

var hostTypes = map[string]hostType{
	"bool":            {family: FamilyBool, storage: "boolean"},
	"int":             {family: FamilyInteger, bits: 64, storage: "bigint"},
	"int8":            {family: FamilyInteger, bits: 8, storage: "tinyint"},
	"int16":           {family: FamilyInteger, bits: 16, storage: "smallint"},
	"int32":           {family: FamilyInteger, bits: 32, storage: "integer"},
	"int64":           {family: FamilyInteger, bits: 64, storage: "bigint"},
	"uint":            {family: FamilyInteger, bits: 64, unsigned: true, storage: "bigint unsigned"},
	"uint8":           {family: FamilyInteger, bits: 8, unsigned: true, storage: "tinyint unsigned"},
	"uint16":          {family: FamilyInteger, bits: 16, unsigned: true, storage: "smallint unsigned"},
	"uint32":          {family: FamilyInteger, bits: 32, unsigned: true, storage: "integer unsigned"},
	"uint64":          {family: FamilyInteger, bits: 64, unsigned: true, storage: "bigint unsigned"},
	"float32":         {family: FamilyFloat, bits: 32, storage: "real"},
	"float64":         {family: FamilyFloat, bits: 64, storage: "double"},
	"string":          {family: FamilyString, storage: "varchar(255)"},
	"[]byte":          {family: FamilyBinary, nillable: true, storage: "blob"},
	"time.Time":       {family: FamilyTime, storage: "timestamp", imp: "time"},
	"time.Duration":   {family: FamilyInteger, bits: 64, storage: "bigint", imp: "time", conv: "int64"},
	"uuid.UUID":       {family: FamilyUUID, storage: "uuid", imp: "github.com/google/uuid"},
	"json.RawMessage": {family: FamilyJSON, nillable: true, storage: "json", imp: "encoding/json", conv: "[]byte"},
	"netip.Addr":      {family: FamilyBinary, nillable: true, storage: "varbinary(16)", imp: "net/netip", adapter: "Addr"},
	"big.Int":         {family: FamilyBinary, storage: "blob", imp: "math/big", adapter: "BigInt", pointer: true},
}

// dialectStorage rewrites default storage types per dialect.
var dialectStorage = map[string]map[string]string{
	dialect.Postgres: {
		"tinyint":           "smallint",
		"tinyint unsigned":  "smallint",
		"smallint unsigned": "integer",
		"integer unsigned":  "bigint",
		"bigint unsigned":   "numeric(20,0)",
		"double":            "double precision",
		"blob":              "bytea",
		"varbinary(16)":     "bytea",
	},
	dialect.MySQL: {
		"uuid": "char(36)",
	},
	dialect.SQLite: {
		"varbinary(16)": "blob",
	},
}

// compatible lists the storage families each host family may be stored in.
var compatible = map[Family][]Family{
	FamilyBool:    {FamilyBool, FamilyInteger},
	FamilyInteger: {FamilyInteger, FamilyDecimal},
	FamilyFloat:   {FamilyFloat, FamilyDecimal},
	FamilyString:  {FamilyString, FamilyJSON, FamilyUUID},
	FamilyBinary:  {FamilyBinary, FamilyString, FamilyJSON},
	FamilyTime:    {FamilyTime, FamilyString},
	FamilyUUID:    {FamilyUUID, FamilyString, FamilyBinary},
	FamilyJSON:    {FamilyJSON, FamilyString, FamilyBinary},
}

// TypeMapper resolves the storage type of fields. Resolutions are memoized
// per host type and override, so repeated fields resolve once.
type TypeMapper struct {
	cfg  *Config
	mu   sync.Mutex
	memo map[mapKey]mapping
}

type mapKey struct{ host, override string }

type mapping struct {
	storage StorageType
	source  string
	err     error
}

// NewTypeMapper returns a mapper for the configured dialect and overrides.
func NewTypeMapper(cfg *Config) *TypeMapper {
	return &TypeMapper{cfg: cfg, memo: make(map[mapKey]mapping)}
}

// Resolve returns the storage type of a host type with an optional field
// level override. The precedence is: field override, configured override,
// built-in table. ok is false when no rule applies.
func (m *TypeMapper) Resolve(host, override string) (st StorageType, ok bool, err error) {
	r := m.lookup(host, override)
	return r.storage, r.source != "", r.err
}

func (m *TypeMapper) lookup(host, override string) mapping {
	k := mapKey{host, override}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, hit := m.memo[k]
	if !hit {
		r = m.resolve(host, override)
		m.memo[k] = r
	}
	return r
}

func (m *TypeMapper) resolve(host, override string) mapping {
	base := strings.TrimPrefix(host, "*")
	var expr, source string
	switch {
	case override != "":
		expr, source = override, "field"
	case m.cfg.TypeOverrides[host] != "":
		expr, source = m.cfg.TypeOverrides[host], "config"
	case m.cfg.TypeOverrides[base] != "":
		expr, source = m.cfg.TypeOverrides[base], "config"
	default:
		h, ok := hostTypes[base]
		if !ok {
			return mapping{}
		}
		expr, source = h.storage, "builtin"
		if s, ok := dialectStorage[m.cfg.Dialect][expr]; ok {
			expr = s
		}
	}
	st, err := ParseStorageType(expr)
	return mapping{storage: st, source: source, err: err}
}

// mapTypes resolves and checks the storage of every field of the types.
func (m *TypeMapper) mapTypes(types []*Type, rep *Report) {
	for _, t := range types {
		for _, f := range t.Fields {
			m.mapField(t, f, rep)
		}
	}
}

func (m *TypeMapper) mapField(t *Type, f *Field, rep *Report) {
	r := m.lookup(f.HostType, f.override)
	st := r.storage
	switch {
	case r.err != nil:
		rep.Add(&SchemaError{Entity: t.Name, Field: f.Name, Rule: RuleStorageType, Sites: sites(f.Pos), Cause: r.err})
		return
	case r.source == "":
		rep.Add(&UnmappedTypeError{Entity: t.Name, Field: f.Name, HostType: f.HostType, Site: f.Pos})
		return
	}
	if pkg, _, ok := strings.Cut(strings.TrimPrefix(f.BaseType(), "[]"), "."); ok {
		if _, known := hostTypes[f.BaseType()]; !known && m.cfg.Imports[pkg] == "" {
			rep.Add(NewSchemaError(t.Name, f.Name, RuleHostType,
				fmt.Sprintf("package %q of host type %s has no configured import path", pkg, f.HostType), f.Pos))
		}
	}
	f.Storage = st
	// Hosts that can hold nil store it as NULL unless the storage forbids it.
	f.Nullable = f.declNull || st.Null || (f.Nillable() && !f.PK && !st.NotNull)
	switch {
	case st.NotNull && f.declNull:
		rep.Add(NewSchemaError(t.Name, f.Name, RuleNullability,
			fmt.Sprintf("field is declared nullable but its storage is \"%s not null\"", st), f.Pos))
	case f.Nullable && f.PK:
		rep.Add(NewSchemaError(t.Name, f.Name, RuleNullablePK, "primary key fields cannot be nullable", f.Pos))
	case f.Nullable && !f.Nillable():
		rep.Add(NewSchemaError(t.Name, f.Name, RuleNullability,
			fmt.Sprintf("storage %s is nullable but host type %s cannot hold NULL; use *%s", st, f.HostType, f.HostType), f.Pos))
	}
	h, ok := hostTypes[f.BaseType()]
	if !ok {
		return
	}
	if h.adapter != "" {
		m.checkAdapter(t, f, h, rep)
		return
	}
	if f.Default.Kind == DefaultValue {
		if err := h.parseLiteral(f.Default.Value); err != nil {
			rep.Add(NewSchemaError(t.Name, f.Name, RuleDefault,
				fmt.Sprintf("default %q does not fit host type %s", f.Default.Value, f.HostType), f.Pos))
		}
	}
	if sf := st.Family(); sf != FamilyOther && !slices.Contains(compatible[h.family], sf) {
		rep.Add(NewSchemaError(t.Name, f.Name, RuleTypeFamily,
			fmt.Sprintf("host type %s (%s) cannot be stored as %s (%s)", f.HostType, h.family, st, sf), f.Pos))
		return
	}
	// Built-in mappings, dialect rewrites included, hold the whole host range.
	if f.Lossy != "" || r.source == "builtin" {
		return
	}
	if msg := rangeLoss(h, st); msg != "" {
		rep.Warn(&Warning{Entity: t.Name, Field: f.Name, Rule: RuleNumericRange, Site: f.Pos,
			Message: fmt.Sprintf("host type %s stored as %s: %s", f.HostType, st, msg)})
	}
}

// checkAdapter checks the declaration form and storage of a host stored
// through a runtime adapter. Adapters write bytes only.
func (m *TypeMapper) checkAdapter(t *Type, f *Field, h hostType, rep *Report) {
	switch {
	case h.pointer && !f.Pointer():
		rep.Add(NewSchemaError(t.Name, f.Name, RuleHostType,
			fmt.Sprintf("host type %s must be declared as *%s", f.HostType, f.HostType), f.Pos))
	case !h.pointer && f.Pointer():
		rep.Add(NewSchemaError(t.Name, f.Name, RuleHostType,
			fmt.Sprintf("host type %s must be declared as %s; its zero value is stored as NULL", f.HostType, f.BaseType()), f.Pos))
	case f.Default.Kind == DefaultValue:
		rep.Add(NewSchemaError(t.Name, f.Name, RuleDefault,
			fmt.Sprintf("host type %s takes no literal default", f.HostType), f.Pos))
	}
	if sf := f.Storage.Family(); sf != FamilyBinary {
		rep.Add(NewSchemaError(t.Name, f.Name, RuleTypeFamily,
			fmt.Sprintf("host type %s (%s) cannot be stored as %s (%s)", f.HostType, h.family, f.Storage, sf), f.Pos))
	}
}

// rangeLoss describes a width, signedness or precision mismatch between a
// numeric host type and its storage, or returns "".
func rangeLoss(h hostType, st StorageType) string {
	switch h.family {
	case FamilyInteger:
		switch st.Family() {
		case FamilyInteger:
			if st.Bits() != h.bits || st.Unsigned != h.unsigned {
				return fmt.Sprintf("%d-bit %s host, %d-bit %s column", h.bits, sign(h.unsigned), st.Bits(), sign(st.Unsigned))
			}
		case FamilyDecimal:
			if st.Scale > 0 {
				return "integer host in a column with a fractional scale"
			}
			if need := decimalDigits(h.bits, h.unsigned); st.Precision > 0 && st.Precision < need {
				return fmt.Sprintf("precision %d is below the %d digits of the host range", st.Precision, need)
			}
		}
	case FamilyFloat:
		switch st.Family() {
		case FamilyFloat:
			if st.Bits() != h.bits {
				return fmt.Sprintf("%d-bit host, %d-bit column", h.bits, st.Bits())
			}
		case FamilyDecimal:
			return "binary floating point values are rounded to a fixed decimal scale"
		}
	}
	return ""
}

func sign(unsigned bool) string {
	if unsigned {
		return "unsigned"
	}
	return "signed"
}

// parseLiteral checks that a default literal is a valid value of the host.
func (h hostType) parseLiteral(v string) error {
	var err error
	switch h.family {
	case FamilyBool:
		_, err = strconv.ParseBool(v)
	case FamilyInteger:
		if h.unsigned {
			_, err = strconv.ParseUint(v, 10, h.bits)
		} else {
			_, err = strconv.ParseInt(v, 10, h.bits)
		}
	case FamilyFloat:
		_, err = strconv.ParseFloat(v, h.bits)
	}
	return err
}
