package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed create_quizzes.sql
var createQuizzesSQL string

func init() {
	Quizzes.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createQuizzesSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS quiz_results, answers, questions, quizzes`)
			return err
		},
	)
}
