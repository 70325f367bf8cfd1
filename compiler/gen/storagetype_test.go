package gen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStorageType(t *testing.T) {
	tests := []struct {
		input  string
		want   StorageType
		canon  string
		family Family
	}{
		{"varchar(255)", StorageType{Name: "varchar", Size: 255}, "varchar(255)", FamilyString},
		{"VARCHAR(64) NOT NULL", StorageType{Name: "varchar", Size: 64, NotNull: true}, "varchar(64)", FamilyString},
		{"numeric(10,2)", StorageType{Name: "numeric", Precision: 10, Scale: 2}, "numeric(10,2)", FamilyDecimal},
		{"decimal(20)", StorageType{Name: "decimal", Precision: 20}, "decimal(20,0)", FamilyDecimal},
		{"integer unsigned", StorageType{Name: "integer", Unsigned: true}, "integer unsigned", FamilyInteger},
		{"double precision", StorageType{Name: "double precision"}, "double precision", FamilyFloat},
		{"character varying(40)", StorageType{Name: "character varying", Size: 40}, "character varying(40)", FamilyString},
		{"text null", StorageType{Name: "text", Null: true}, "text", FamilyString},
		{"timestamp(6)", StorageType{Name: "timestamp", Precision: 6}, "timestamp(6)", FamilyTime},
		{"citext", StorageType{Name: "citext"}, "citext", FamilyOther},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			st, err := ParseStorageType(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, st)
			assert.Equal(t, tt.canon, st.String())
			assert.Equal(t, tt.family, st.Family())
		})
	}
}

func TestParseStorageType_Errors(t *testing.T) {
	for _, input := range []string{
		"",
		"varchar(",
		"varchar(10,2)",
		"numeric(2,5)",
		"123",
		"text not",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseStorageType(input)
			assert.Error(t, err)
		})
	}
	assert.Panics(t, func() { MustParseStorageType("(") })
}

func TestStorageType_Bits(t *testing.T) {
	assert.Equal(t, 8, MustParseStorageType("tinyint").Bits())
	assert.Equal(t, 16, MustParseStorageType("smallint").Bits())
	assert.Equal(t, 32, MustParseStorageType("int").Bits())
	assert.Equal(t, 64, MustParseStorageType("bigint unsigned").Bits())
	assert.Equal(t, 32, MustParseStorageType("float(24)").Bits())
	assert.Equal(t, 64, MustParseStorageType("double precision").Bits())
	assert.Equal(t, 0, MustParseStorageType("text").Bits())
}

func TestDecimalDigits(t *testing.T) {
	assert.Equal(t, 3, decimalDigits(8, false))
	assert.Equal(t, 3, decimalDigits(8, true))
	assert.Equal(t, 10, decimalDigits(32, false))
	assert.Equal(t, 19, decimalDigits(64, false))
	assert.Equal(t, 20, decimalDigits(64, true))
}
