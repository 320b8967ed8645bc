package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

// Enrollments created by the first schema have no started_at column.
func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `ALTER TABLE enrollments ADD COLUMN IF NOT EXISTS started_at timestamptz`)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `ALTER TABLE enrollments DROP COLUMN IF EXISTS started_at`)
			return err
		},
	)
}
