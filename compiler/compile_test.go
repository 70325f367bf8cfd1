package compiler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"

	"github.com/syssam/storm/compiler/load"
)

// accounts covers the host types with conversions and adapters, default
// nullability of pointer hosts and both sides of a relation.
func accounts() load.Static {
	return load.Static{
		{
			Name: "Owner",
			Fields: []*load.Field{
				{Name: "id", Type: "int64", PrimaryKey: true},
				{Name: "name", Type: "string", Unique: true},
				{Name: "bio", Type: "*string", Storage: "text"},
				{Name: "addr", Type: "netip.Addr"},
				{Name: "balance", Type: "*big.Int"},
			},
			Relations: []*load.Relation{{Name: "accounts", Kind: load.OneToMany, Target: "Account", Inverse: "owner"}},
		},
		{
			Name: "Account",
			Fields: []*load.Field{
				{Name: "id", Type: "int64", PrimaryKey: true},
				{Name: "ownerId", Type: "int64", Ref: "Owner.id"},
				{Name: "label", Type: "string", Default: "main"},
				{Name: "ttl", Type: "time.Duration"},
				{Name: "data", Type: "json.RawMessage"},
			},
		},
	}
}

const accountsMain = `package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/netip"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/syssam/storm/dialect/sql"

	"example.com/app/entity"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("round trip ok")
}

func run(ctx context.Context) error {
	client, err := entity.Open("sqlite", "file:app.db")
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.CreateSchema(ctx); err != nil {
		return err
	}
	balance, _ := new(big.Int).SetString("-123456789012345678901234567890", 10)
	owner, err := client.Owner.Create().
		SetID(1).
		SetName("Shevek").
		SetAddr(netip.MustParseAddr("2001:db8::7")).
		SetBalance(balance).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("create owner: %w", err)
	}
	for i, ttl := range []time.Duration{time.Second, time.Minute} {
		_, err := client.Account.Create().
			SetID(int64(i + 1)).
			SetOwnerID(owner.ID).
			SetTTL(ttl).
			SetData(json.RawMessage(` + "`" + `{"n":1}` + "`" + `)).
			Save(ctx)
		if err != nil {
			return fmt.Errorf("create account: %w", err)
		}
	}

	got, err := client.Account.Query().
		Where(entity.AccountFields.TTL.EQ(time.Minute)).
		WithOwner().
		Only(ctx)
	if err != nil {
		return fmt.Errorf("query account: %w", err)
	}
	o := got.Edges.Owner
	switch {
	case got.ID != 2 || got.Label != "main" || string(got.Data) != ` + "`" + `{"n":1}` + "`" + `:
		return fmt.Errorf("account mismatch: %v", got)
	case o == nil || o.Name != owner.Name || o.Bio != nil:
		return fmt.Errorf("owner mismatch: %v", o)
	case o.Addr != owner.Addr || o.Balance.Cmp(balance) != 0:
		return fmt.Errorf("owner adapters mismatch: %v", o)
	}

	n, err := client.Account.Query().Order(entity.AccountFields.ID.Asc()).Limit(1).Offset(1).Count(ctx)
	if err != nil || n != 1 {
		return fmt.Errorf("count page: %d, %v", n, err)
	}
	var groups int
	err = client.Account.Query().GroupBy(ctx, []string{entity.AccountFields.OwnerID.Name()}, []string{"COUNT(*)"}, func(rows sql.ColumnScanner) error {
		for rows.Next() {
			var id, count int64
			if err := rows.Scan(&id, &count); err != nil {
				return err
			}
			if count != 2 {
				return fmt.Errorf("owner %d has %d accounts", id, count)
			}
			groups++
		}
		return rows.Err()
	})
	if err != nil || groups != 1 {
		return fmt.Errorf("group by: %d groups, %v", groups, err)
	}
	found, err := client.Owner.Query().Where(entity.OwnerFields.Addr.EQ(owner.Addr), entity.OwnerFields.Bio.IsNull()).Exist(ctx)
	if err != nil || !found {
		return fmt.Errorf("query by address: %v, %v", found, err)
	}
	return nil
}
`

// scratchModule generates schemas into the entity package of a module
// that resolves this module from disk, and returns its directory and the
// environment of go commands run in it.
func scratchModule(t *testing.T, schemas load.Static) (string, []string) {
	t.Helper()
	if testing.Short() {
		t.Skip("builds a module with the go tool")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go tool not found")
	}
	root, err := filepath.Abs("..")
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, Generate(context.Background(), config(t, filepath.Join(dir, "entity")), schemas))

	own, err := os.ReadFile(filepath.Join(root, "go.mod"))
	require.NoError(t, err)
	goLine := "go 1.24"
	for _, line := range strings.Split(string(own), "\n") {
		if strings.HasPrefix(line, "go ") {
			goLine = line
		}
	}
	gomod := fmt.Sprintf("module example.com/app\n\n%s\n\nrequire github.com/syssam/storm v0.0.0\n\nreplace github.com/syssam/storm => %s\n", goLine, root)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte(gomod), 0o644))
	if sum, err := os.ReadFile(filepath.Join(root, "go.sum")); err == nil {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "go.sum"), sum, 0o644))
	}
	return dir, append(os.Environ(), "GOFLAGS=-mod=mod", "GOWORK=off")
}

func typeCheck(t *testing.T, dir string, env []string, patterns ...string) []*packages.Package {
	t.Helper()
	pkgs, err := packages.Load(&packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo,
		Dir:  dir,
		Env:  env,
	}, patterns...)
	require.NoError(t, err)
	for _, p := range pkgs {
		for _, e := range p.Errors {
			t.Errorf("%s: %v", p.PkgPath, e)
		}
	}
	return pkgs
}

func TestGenerate_TypeChecks(t *testing.T) {
	dir, env := scratchModule(t, library())
	pkgs := typeCheck(t, dir, env, "./entity")
	require.Len(t, pkgs, 1)
	assert.Equal(t, "entity", pkgs[0].Types.Name())
	assert.NotNil(t, pkgs[0].Types.Scope().Lookup("NewClient"))
}

func TestGenerate_RoundTrip(t *testing.T) {
	dir, env := scratchModule(t, accounts())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(accountsMain), 0o644))
	require.Len(t, typeCheck(t, dir, env, "./..."), 2)
	if t.Failed() {
		return
	}

	run := exec.Command("go", "run", ".")
	run.Dir, run.Env = dir, env
	out, err := run.CombinedOutput()
	require.NoError(t, err, "%s", out)
	assert.Contains(t, string(out), "round trip ok")
}
