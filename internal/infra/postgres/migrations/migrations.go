package migrations

import "github.com/uptrace/bun/migrate"

var (
	// Accounts migrates the account service database.
	Accounts = migrate.NewMigrations()
	// Quizzes migrates the quiz service database.
	Quizzes = migrate.NewMigrations()
)
