package db

import (
	"context"
	"database/sql"
)

const accountsMigration = `
CREATE EXTENSION IF NOT EXISTS "pgcrypto";

CREATE TABLE IF NOT EXISTS users (
    id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    username text NOT NULL,
    email text NOT NULL,
    password_hash text NOT NULL DEFAULT '',
    last_username_change timestamptz,
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS users_username_lower_unique
ON users (LOWER(username));

CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_unique
ON users (LOWER(email));
`

// RunAccountsMigration creates the accounts schema if it does not
// exist yet.
func RunAccountsMigration(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, accountsMigration)
	return err
}
