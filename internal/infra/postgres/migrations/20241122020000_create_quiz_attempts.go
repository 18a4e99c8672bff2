package migrations

import _ "embed"

//go:embed 0002_create_quiz_attempts.sql
var createQuizAttemptsSQL string

func init() {
	Migrations.MustRegister(
		execSQL(createQuizAttemptsSQL),
		execSQL(`DROP TABLE IF EXISTS quiz_attempts`),
	)
}
