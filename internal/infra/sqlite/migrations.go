package sqlite

import "database/sql"

// schema contains the SQL statements to set up the local database.
// These run on startup to ensure tables exist.
const schema = `
CREATE TABLE IF NOT EXISTS bills (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    amount REAL,
    currency TEXT NOT NULL DEFAULT '',
    due_date TEXT NOT NULL,
    frequency TEXT NOT NULL,
    interval_months INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    last_paid_date TEXT,
    transaction_ref TEXT NOT NULL DEFAULT '',
    proof_image TEXT NOT NULL DEFAULT '',
    payment_link TEXT NOT NULL DEFAULT '',
    require_proof INTEGER NOT NULL DEFAULT 1,
    is_disputed INTEGER NOT NULL DEFAULT 0,
    waiver_amount REAL NOT NULL DEFAULT 0,
    admin_notes TEXT NOT NULL DEFAULT '',
    last_notified_at TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
    uid TEXT PRIMARY KEY,
    email TEXT NOT NULL DEFAULT '',
    display_name TEXT NOT NULL DEFAULT '',
    phone_number TEXT NOT NULL DEFAULT '',
    is_anonymous INTEGER NOT NULL DEFAULT 0,
    entitlement TEXT NOT NULL DEFAULT 'FREE',
    currency TEXT NOT NULL DEFAULT 'NGN'
);

CREATE TABLE IF NOT EXISTS system_config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bills_user_id ON bills(user_id);
CREATE INDEX IF NOT EXISTS idx_bills_due_date ON bills(due_date);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
