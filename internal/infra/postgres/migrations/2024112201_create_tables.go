package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"quizzer/internal/infra/postgres"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return postgres.CreateSchema(ctx, db)
		},
		func(ctx context.Context, db *bun.DB) error {
			return postgres.DropSchema(ctx, db)
		},
	)
}
