package gen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
)

// StorageType is a parsed storage column type, such as "varchar(255)",
// "numeric(10,2)" or "integer unsigned".
type StorageType struct {
	// Name is the lower-cased base type name, e.g. "varchar" or
	// "double precision".
	Name string
	// Size is the length of character and binary types.
	Size int
	// Precision and Scale apply to decimal types. Precision also holds the
	// fractional seconds of time types.
	Precision int
	Scale     int
	Unsigned  bool
	// Null and NotNull record an explicit nullability suffix.
	Null    bool
	NotNull bool
}

// String returns the canonical spelling of the type, without nullability.
func (t StorageType) String() string {
	if t.Name == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(t.Name)
	switch {
	case t.Size > 0:
		fmt.Fprintf(&b, "(%d)", t.Size)
	case t.Precision > 0 && t.Family() == FamilyDecimal:
		fmt.Fprintf(&b, "(%d,%d)", t.Precision, t.Scale)
	case t.Precision > 0:
		fmt.Fprintf(&b, "(%d)", t.Precision)
	}
	if t.Unsigned {
		b.WriteString(" unsigned")
	}
	return b.String()
}

// Family groups storage types by the kind of values they hold.
type Family string

// Storage type families.
const (
	FamilyInteger Family = "integer"
	FamilyFloat   Family = "float"
	FamilyDecimal Family = "decimal"
	FamilyBool    Family = "bool"
	FamilyString  Family = "string"
	FamilyBinary  Family = "binary"
	FamilyTime    Family = "time"
	FamilyUUID    Family = "uuid"
	FamilyJSON    Family = "json"
	FamilyOther   Family = "other"
)

var families = map[string]Family{
	"tinyint":           FamilyInteger,
	"smallint":          FamilyInteger,
	"mediumint":         FamilyInteger,
	"int":               FamilyInteger,
	"integer":           FamilyInteger,
	"bigint":            FamilyInteger,
	"real":              FamilyFloat,
	"float":             FamilyFloat,
	"double":            FamilyFloat,
	"double precision":  FamilyFloat,
	"numeric":           FamilyDecimal,
	"decimal":           FamilyDecimal,
	"bool":              FamilyBool,
	"boolean":           FamilyBool,
	"char":              FamilyString,
	"varchar":           FamilyString,
	"character varying": FamilyString,
	"text":              FamilyString,
	"tinytext":          FamilyString,
	"mediumtext":        FamilyString,
	"longtext":          FamilyString,
	"blob":              FamilyBinary,
	"longblob":          FamilyBinary,
	"bytea":             FamilyBinary,
	"binary":            FamilyBinary,
	"varbinary":         FamilyBinary,
	"timestamp":         FamilyTime,
	"timestamptz":       FamilyTime,
	"datetime":          FamilyTime,
	"date":              FamilyTime,
	"time":              FamilyTime,
	"uuid":              FamilyUUID,
	"json":              FamilyJSON,
	"jsonb":             FamilyJSON,
}

// Family returns the family of the type, or FamilyOther for names the
// generator does not know.
func (t StorageType) Family() Family {
	if f, ok := families[t.Name]; ok {
		return f
	}
	return FamilyOther
}

// Bits returns the width of integer and float types, or 0.
func (t StorageType) Bits() int {
	switch t.Name {
	case "tinyint":
		return 8
	case "smallint":
		return 16
	case "mediumint":
		return 24
	case "int", "integer":
		return 32
	case "bigint":
		return 64
	case "real":
		return 32
	case "float":
		if t.Precision > 0 && t.Precision <= 24 {
			return 32
		}
		return 64
	case "double", "double precision":
		return 64
	}
	return 0
}

// storageExpr is the grammar of a storage type expression.
type storageExpr struct {
	Name      string `parser:"@Ident"`
	Qualifier string `parser:"@( 'precision' | 'varying' )?"`
	Args      []int  `parser:"( '(' @Int ( ',' @Int )? ')' )?"`
	Unsigned  bool   `parser:"@'unsigned'?"`
	NotNull   bool   `parser:"( @'not' 'null'"`
	Null      bool   `parser:"| @'null' )?"`
}

var storageParser = participle.MustBuild[storageExpr](
	participle.CaseInsensitive("Ident"),
)

// ParseStorageType parses a storage type expression.
func ParseStorageType(s string) (StorageType, error) {
	expr, err := storageParser.ParseString("", s)
	if err != nil {
		return StorageType{}, fmt.Errorf("invalid storage type %q: %w", s, err)
	}
	t := StorageType{
		Name:     strings.ToLower(expr.Name),
		Unsigned: expr.Unsigned,
		Null:     expr.Null,
		NotNull:  expr.NotNull,
	}
	if expr.Qualifier != "" {
		t.Name += " " + strings.ToLower(expr.Qualifier)
	}
	switch f := t.Family(); {
	case len(expr.Args) == 0:
	case f == FamilyDecimal:
		t.Precision = expr.Args[0]
		if len(expr.Args) > 1 {
			t.Scale = expr.Args[1]
		}
	case len(expr.Args) > 1:
		return StorageType{}, fmt.Errorf("invalid storage type %q: %s takes a single argument", s, t.Name)
	case f == FamilyTime || f == FamilyFloat:
		t.Precision = expr.Args[0]
	default:
		t.Size = expr.Args[0]
	}
	if t.Scale > t.Precision {
		return StorageType{}, fmt.Errorf("invalid storage type %q: scale %d exceeds precision %d", s, t.Scale, t.Precision)
	}
	return t, nil
}

// MustParseStorageType is like ParseStorageType but panics on error.
func MustParseStorageType(s string) StorageType {
	t, err := ParseStorageType(s)
	if err != nil {
		panic(err)
	}
	return t
}

// decimalDigits returns the number of decimal digits needed to hold every
// value of an integer of the given width.
func decimalDigits(bits int, unsigned bool) int {
	shift := 65 - bits
	if unsigned {
		shift = 64 - bits
	}
	return len(strconv.FormatUint(^uint64(0)>>shift, 10))
}
