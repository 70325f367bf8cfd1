package sql

import (
	"database/sql/driver"
	"fmt"
	"math/big"
	"net/netip"
)

// Addr stores a netip.Addr as its 4 or 16 byte form. The zero Addr is
// stored as NULL and zones are dropped.
type Addr struct{ P *netip.Addr }

// ScanAddr returns a scan destination writing to p.
func ScanAddr(p *netip.Addr) Addr { return Addr{P: p} }

// AddrValue returns the column value of a.
func AddrValue(a netip.Addr) Addr { return Addr{P: &a} }

// Scan implements the sql.Scanner interface.
func (a Addr) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("sql: scan %T into netip.Addr", src)
	}
	if len(b) == 0 {
		*a.P = netip.Addr{}
		return nil
	}
	addr, ok := netip.AddrFromSlice(b)
	if !ok {
		return fmt.Errorf("sql: scan netip.Addr: %d bytes is neither IPv4 nor IPv6", len(b))
	}
	*a.P = addr
	return nil
}

// Value implements the driver.Valuer interface.
func (a Addr) Value() (driver.Value, error) {
	if a.P == nil || !a.P.IsValid() {
		return nil, nil
	}
	return a.P.AsSlice(), nil
}

// BigInt stores a *big.Int as big-endian two's complement bytes of minimal
// length. A nil pointer is stored as NULL.
type BigInt struct{ P **big.Int }

// ScanBigInt returns a scan destination writing to p.
func ScanBigInt(p **big.Int) BigInt { return BigInt{P: p} }

// BigIntValue returns the column value of x.
func BigIntValue(x *big.Int) BigInt { return BigInt{P: &x} }

// Scan implements the sql.Scanner interface.
func (b BigInt) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*b.P = nil
	case []byte:
		*b.P = decodeInt(v)
	case string:
		*b.P = decodeInt([]byte(v))
	default:
		return fmt.Errorf("sql: scan %T into *big.Int", src)
	}
	return nil
}

// Value implements the driver.Valuer interface.
func (b BigInt) Value() (driver.Value, error) {
	if b.P == nil || *b.P == nil {
		return nil, nil
	}
	return encodeInt(*b.P), nil
}

func encodeInt(x *big.Int) []byte {
	if x.Sign() >= 0 {
		return x.FillBytes(make([]byte, x.BitLen()/8+1))
	}
	// A negative x of n bytes is written as 2^(8n) + x.
	n := new(big.Int).Not(x).BitLen()/8 + 1
	m := new(big.Int).Lsh(big.NewInt(1), uint(8*n))
	return m.Add(m, x).FillBytes(make([]byte, n))
}

func decodeInt(b []byte) *big.Int {
	x := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		x.Sub(x, new(big.Int).Lsh(big.NewInt(1), uint(8*len(b))))
	}
	return x
}

var (
	_ driver.Valuer = Addr{}
	_ driver.Valuer = BigInt{}
)
