// Package repotest opens throwaway sqlite databases carrying the
// application schema.
package repotest

import (
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/catchbot/core/database"
)

// Schema mirrors migrations/000001_init.up.sql in sqlite syntax.
const Schema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tg_id BIGINT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	role TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE invites (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	token TEXT NOT NULL UNIQUE,
	role TEXT NOT NULL,
	name TEXT NOT NULL,
	expired BOOLEAN NOT NULL DEFAULT FALSE,
	created_by BIGINT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE animals (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	animal_type TEXT NOT NULL,
	sex TEXT NOT NULL,
	breed TEXT NOT NULL,
	color TEXT NOT NULL,
	features TEXT,
	chip_id TEXT,
	medical_photo TEXT,
	catch_photo TEXT,
	is_sterilized BOOLEAN NOT NULL DEFAULT FALSE,
	is_vaccinated BOOLEAN NOT NULL DEFAULT FALSE,
	catch_date TIMESTAMP NOT NULL,
	catch_place TEXT NOT NULL,
	transfer_date TIMESTAMP,
	transfer_photo TEXT,
	return_date TIMESTAMP,
	return_place TEXT,
	euthanasia_date TIMESTAMP,
	comment TEXT,
	created_by BIGINT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

// Open returns an in-memory database with Schema applied, closed when the test ends.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}
