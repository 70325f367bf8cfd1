// Package dialect defines the database dialect names and the driver
// abstraction the runtime query engine executes against.
//
// # Supported Dialects
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// The dialect only changes identifier quoting, placeholder style and the
// handful of statements that differ between engines (e.g. insert-or-ignore).
// Negotiating a dialect is left to the caller: it is a configuration value.
//
// # Driver Interface
//
//	type Driver interface {
//	    ExecQuerier
//	    Close() error
//	    Dialect() string
//	}
//
// The package dialect/sql provides the implementation on top of database/sql:
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
package dialect
