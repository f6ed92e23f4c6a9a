package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed create_users.sql
var createUsersSQL string

func init() {
	Accounts.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createUsersSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS users`)
			return err
		},
	)
}
