package sql

import (
	"context"
	"math/big"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/storm"
)

func TestBigInt_Encoding(t *testing.T) {
	tests := []struct {
		in   string
		want []byte
	}{
		{"0", []byte{0x00}},
		{"1", []byte{0x01}},
		{"127", []byte{0x7f}},
		{"128", []byte{0x00, 0x80}},
		{"-1", []byte{0xff}},
		{"-128", []byte{0x80}},
		{"-129", []byte{0xff, 0x7f}},
		{"65535", []byte{0x00, 0xff, 0xff}},
		{"-170141183460469231731687303715884105728", append([]byte{0x80}, make([]byte, 15)...)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			x, ok := new(big.Int).SetString(tt.in, 10)
			require.True(t, ok)
			v, err := BigIntValue(x).Value()
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)

			var got *big.Int
			require.NoError(t, ScanBigInt(&got).Scan(tt.want))
			assert.Equal(t, 0, x.Cmp(got), "decoded %s", got)
		})
	}

	v, err := BigIntValue(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)
	got := big.NewInt(1)
	require.NoError(t, ScanBigInt(&got).Scan(nil))
	assert.Nil(t, got)
	assert.Error(t, ScanBigInt(&got).Scan(int64(1)))
}

func TestAddr_Encoding(t *testing.T) {
	v4 := netip.MustParseAddr("192.168.1.10")
	v, err := AddrValue(v4).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte{192, 168, 1, 10}, v)

	v6 := netip.MustParseAddr("2001:db8::1")
	v, err = AddrValue(v6).Value()
	require.NoError(t, err)
	assert.Len(t, v, 16)

	v, err = AddrValue(netip.Addr{}).Value()
	require.NoError(t, err)
	assert.Nil(t, v, "the zero Addr is NULL")

	var got netip.Addr
	require.NoError(t, ScanAddr(&got).Scan(v6.AsSlice()))
	assert.Equal(t, v6, got)
	require.NoError(t, ScanAddr(&got).Scan(nil))
	assert.False(t, got.IsValid())
	assert.ErrorContains(t, ScanAddr(&got).Scan([]byte{1, 2, 3}), "neither IPv4 nor IPv6")
}

type host struct {
	ID      int64
	Addr    netip.Addr
	Balance *big.Int
}

var hostInfo = &storm.EntityInfo{
	Name:  "Host",
	Table: "hosts",
	Columns: []storm.ColumnInfo{
		{Field: "ID", Column: "id", Type: "bigint", PrimaryKey: true},
		{Field: "Addr", Column: "addr", Type: "blob", Nullable: true},
		{Field: "Balance", Column: "balance", Type: "blob", Nullable: true},
	},
}

type hostMapper struct{}

func (hostMapper) Columns() []string { return []string{"id", "addr", "balance"} }

func (hostMapper) Dest(e *host) []any {
	return []any{&e.ID, ScanAddr(&e.Addr), ScanBigInt(&e.Balance)}
}

func (hostMapper) Values(e *host) []any {
	return []any{e.ID, AddrValue(e.Addr), BigIntValue(e.Balance)}
}

func TestAdapters_SQLite(t *testing.T) {
	ctx := context.Background()
	drv := openSQLite(t)
	require.NoError(t, NewAdmin(drv).Apply(ctx,
		"CREATE TABLE `hosts` (`id` bigint NOT NULL, `addr` blob NULL, `balance` blob NULL, PRIMARY KEY (`id`));"))
	hosts := NewTable(drv, hostInfo, hostMapper{})

	huge, _ := new(big.Int).SetString("-98765432109876543210987654321", 10)
	want := []*host{
		{ID: 1, Addr: netip.MustParseAddr("10.0.0.1"), Balance: huge},
		{ID: 2, Addr: netip.MustParseAddr("fe80::1"), Balance: big.NewInt(42)},
		{ID: 3},
	}
	require.NoError(t, hosts.InsertBatch(ctx, want))

	all, err := hosts.All(ctx, hosts.Select().OrderBy(Asc("id")))
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, want[0].Addr, all[0].Addr)
	assert.Equal(t, 0, huge.Cmp(all[0].Balance))
	assert.Equal(t, want[1].Addr, all[1].Addr)
	assert.Equal(t, int64(42), all[1].Balance.Int64())
	assert.False(t, all[2].Addr.IsValid())
	assert.Nil(t, all[2].Balance)

	var (
		addr    = AddrField("addr")
		balance = BigIntField("balance")
	)
	got, err := hosts.Only(ctx, hosts.Select().Where(addr.EQ(netip.MustParseAddr("fe80::1"))))
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ID)

	got, err = hosts.Only(ctx, hosts.Select().Where(balance.EQ(huge)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)

	n, err := hosts.Count(ctx, addr.In(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("fe80::1")))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = hosts.Count(ctx, balance.IsNull())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
