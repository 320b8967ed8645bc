package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"quizzer/internal/infra/postgres"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return postgres.CreateIndexes(ctx, db)
		},
		func(ctx context.Context, db *bun.DB) error {
			for _, name := range []string{"courses_author_id_idx", "quizzes_course_id_idx", "enrollments_course_id_idx"} {
				if _, err := db.NewDropIndex().Index(name).IfExists().Exec(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	)
}
