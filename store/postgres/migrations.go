package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Leasing store.
var Migrations = migrate.NewGroup("leasing")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_leasing_leases",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS leasing_leases (
    id              TEXT PRIMARY KEY,
    address         TEXT NOT NULL DEFAULT '',
    capacity_amount BIGINT NOT NULL DEFAULT 0,
    payment_ref     TEXT NOT NULL DEFAULT '',
    paid_sun        BIGINT NOT NULL DEFAULT 0,
    grant_ref       TEXT NOT NULL DEFAULT '',
    reclaim_ref     TEXT NOT NULL DEFAULT '',
    usage_ref       TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT 'pending',
    expires_at      TIMESTAMPTZ NOT NULL,
    metadata        JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_leasing_leases_open_address
    ON leasing_leases (address) WHERE status IN ('pending', 'active');
CREATE UNIQUE INDEX IF NOT EXISTS idx_leasing_leases_payment_ref
    ON leasing_leases (payment_ref) WHERE payment_ref != 'manual_operation';
CREATE INDEX IF NOT EXISTS idx_leasing_leases_status_expiry
    ON leasing_leases (status, expires_at);
CREATE INDEX IF NOT EXISTS idx_leasing_leases_address
    ON leasing_leases (address);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS leasing_leases`)
				return err
			},
		},
	)
}
