package db

import "database/sql"

// DB wraps *sql.DB so callers depend on this package, not the driver.
type DB struct {
	*sql.DB
}
